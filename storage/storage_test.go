package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tolelom/qorachain/core"
	"github.com/tolelom/qorachain/internal/testutil"
	"github.com/tolelom/qorachain/storage"
)

const addr = "QaliceAddress"

func begin(t *testing.T, s *storage.Store) core.Repository {
	t.Helper()
	repo, err := s.Begin(context.Background())
	require.NoError(t, err)
	return repo
}

func TestSavepointsNest(t *testing.T) {
	repo := testutil.NewRepository(t)
	accounts := repo.AccountRepository()

	require.NoError(t, accounts.SetBalance(addr, 0, core.MustAmount("1")))
	outer := repo.Savepoint()
	require.NoError(t, accounts.SetBalance(addr, 0, core.MustAmount("2")))
	inner := repo.Savepoint()
	require.NoError(t, accounts.SetBalance(addr, 0, core.MustAmount("3")))

	require.NoError(t, repo.RollbackTo(inner))
	require.Equal(t, "2", testutil.Balance(t, repo, addr, 0))
	require.NoError(t, repo.RollbackTo(outer))
	require.Equal(t, "1", testutil.Balance(t, repo, addr, 0))
	require.Error(t, repo.RollbackTo(inner))
}

func TestSaveAndDiscard(t *testing.T) {
	s := testutil.NewStore()
	repo := begin(t, s)
	require.NoError(t, repo.AccountRepository().SetBalance(addr, 0, core.MustAmount("5")))
	require.NoError(t, repo.SaveChanges())
	require.NoError(t, repo.AccountRepository().SetBalance(addr, 1, core.MustAmount("7")))
	require.NoError(t, repo.DiscardChanges())
	require.NoError(t, repo.Close())
	require.ErrorIs(t, repo.SaveChanges(), core.ErrReadOnly)

	repo = begin(t, s)
	defer repo.Close()
	require.Equal(t, "5", testutil.Balance(t, repo, addr, 0))
	require.Equal(t, "0", testutil.Balance(t, repo, addr, 1))
}

func TestDeletedRowsHideCommittedValues(t *testing.T) {
	s := testutil.NewStore()
	repo := begin(t, s)
	require.NoError(t, repo.AccountRepository().SetBalance(addr, 0, core.MustAmount("5")))
	require.NoError(t, repo.SaveChanges())

	require.NoError(t, repo.AccountRepository().DeleteBalance(addr, 0))
	require.Equal(t, "0", testutil.Balance(t, repo, addr, 0))
	balances, err := repo.AccountRepository().GetAssetBalances(0)
	require.NoError(t, err)
	require.Empty(t, balances)
	require.NoError(t, repo.Close())
}

func TestBeginIsExclusive(t *testing.T) {
	s := testutil.NewStore()
	first := begin(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Begin(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, first.Close())
	require.NoError(t, first.Close())
	second := begin(t, s)
	require.NoError(t, second.Close())
}

func TestAssetIDsRewindOnDelete(t *testing.T) {
	repo := testutil.NewRepository(t)
	testutil.IssueAsset(t, repo, 0, "QORA", true)
	testutil.IssueAsset(t, repo, 1, "GOLD", false)
	assets := repo.AssetRepository()

	next, err := assets.NextAssetID()
	require.NoError(t, err)
	require.Equal(t, int64(2), next)

	require.NoError(t, assets.DeleteAsset(1))
	next, err = assets.NextAssetID()
	require.NoError(t, err)
	require.Equal(t, int64(1), next)
	exists, err := assets.AssetNameExists("GOLD")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestOpenOrdersSortByPriceThenTime(t *testing.T) {
	repo := testutil.NewRepository(t)
	assets := repo.AssetRepository()
	save := func(id string, price string, ts int64, closed bool) {
		require.NoError(t, assets.SaveOrder(&core.OrderData{
			OrderID:     []byte(id),
			HaveAssetID: 1,
			WantAssetID: 0,
			Amount:      core.MustAmount("10"),
			Fulfilled:   core.MustAmount("0"),
			Price:       core.MustAmount(price),
			Timestamp:   ts,
			IsClosed:    closed,
		}))
	}
	save("c", "2", 100, false)
	save("b", "1.5", 300, false)
	save("a", "1.5", 200, false)
	save("d", "0.5", 50, true)

	orders, err := assets.GetOpenOrders(1, 0)
	require.NoError(t, err)
	var ids []string
	for _, o := range orders {
		ids = append(ids, string(o.OrderID))
	}
	require.Equal(t, []string{"a", "b", "c"}, ids)

	other, err := assets.GetOpenOrders(0, 1)
	require.NoError(t, err)
	require.Empty(t, other)
}

func TestLevelDBPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	db, err := storage.NewLevelDB(dir)
	require.NoError(t, err)

	repo := begin(t, storage.NewStore(db))
	blocks := repo.BlockRepository()
	require.NoError(t, blocks.Save(&core.BlockData{Height: 1, Timestamp: 42, GeneratorSignature: []byte("g")}))
	require.NoError(t, repo.AccountRepository().SetBalance(addr, 0, core.MustAmount("12.5")))
	require.NoError(t, repo.SaveChanges())
	require.NoError(t, repo.Close())
	require.NoError(t, db.Close())

	db, err = storage.NewLevelDB(dir)
	require.NoError(t, err)
	defer db.Close()
	repo = begin(t, storage.NewStore(db))
	defer repo.Close()

	height, err := repo.BlockRepository().GetBlockchainHeight()
	require.NoError(t, err)
	require.Equal(t, 1, height)
	last, err := repo.BlockRepository().GetLastBlock()
	require.NoError(t, err)
	require.Equal(t, int64(42), last.Timestamp)
	require.Equal(t, "12.5", testutil.Balance(t, repo, addr, 0))

	require.NoError(t, repo.Rebuild())
	height, err = repo.BlockRepository().GetBlockchainHeight()
	require.NoError(t, err)
	require.Zero(t, height)
}

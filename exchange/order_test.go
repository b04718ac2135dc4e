package exchange_test

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tolelom/qorachain/core"
	"github.com/tolelom/qorachain/crypto"
	"github.com/tolelom/qorachain/exchange"
	"github.com/tolelom/qorachain/internal/testutil"
)

const goldID = 5

func newOrder(creator crypto.PublicKey, id string, have, want int64, amount, price string, ts int64) *core.OrderData {
	orderID := sha256.Sum256([]byte(id))
	return &core.OrderData{
		OrderID:          orderID[:],
		CreatorPublicKey: creator,
		HaveAssetID:      have,
		WantAssetID:      want,
		Amount:           core.MustAmount(amount),
		Fulfilled:        core.MustAmount("0"),
		Price:            core.MustAmount(price),
		Timestamp:        ts,
	}
}

func loadOrder(t *testing.T, repo core.Repository, id []byte) *core.OrderData {
	t.Helper()
	order, err := repo.AssetRepository().FromOrderID(id)
	require.NoError(t, err)
	return order
}

// TestScenarioGoldForQora places Bob's QORA-for-GOLD order, then lets Alice's
// GOLD-for-QORA order match it at Bob's price.
func TestScenarioGoldForQora(t *testing.T) {
	repo := testutil.NewRepository(t)
	testutil.IssueAsset(t, repo, core.NativeAssetID, "QORA", true)
	testutil.IssueAsset(t, repo, goldID, "GOLD", true)
	_, alice := testutil.Key(t, "alice")
	_, bob := testutil.Key(t, "bob")
	testutil.SetBalance(t, repo, alice.Address(), goldID, "10000")
	testutil.SetBalance(t, repo, bob.Address(), core.NativeAssetID, "40")
	before := testutil.Dump(t, repo)

	bobOrder := newOrder(bob, "bob", core.NativeAssetID, goldID, "40", "486", 1000)
	trades, err := exchange.NewOrder(repo, bobOrder).Process()
	require.NoError(t, err)
	require.Empty(t, trades)

	aliceOrder := newOrder(alice, "alice", goldID, core.NativeAssetID, "10000", "0.002", 2000)
	trades, err = exchange.NewOrder(repo, aliceOrder).Process()
	require.NoError(t, err)
	require.Len(t, trades, 1)

	// 1/486 rounds down to 0.00205761, so Alice can take 20.5761 QORA,
	// paying 20.5761 * 486 GOLD.
	trade := trades[0]
	require.Equal(t, aliceOrder.OrderID, trade.Initiator)
	require.Equal(t, bobOrder.OrderID, trade.Target)
	require.Equal(t, "20.5761", trade.InitiatorAmount.String())
	require.Equal(t, "9999.9846", trade.TargetAmount.String())
	require.Equal(t, int64(2000), trade.Timestamp)

	require.Equal(t, "0", testutil.Balance(t, repo, alice.Address(), goldID))
	require.Equal(t, "20.5761", testutil.Balance(t, repo, alice.Address(), core.NativeAssetID))
	require.Equal(t, "0", testutil.Balance(t, repo, bob.Address(), core.NativeAssetID))
	require.Equal(t, "9999.9846", testutil.Balance(t, repo, bob.Address(), goldID))

	gotAlice := loadOrder(t, repo, aliceOrder.OrderID)
	require.Equal(t, "9999.9846", gotAlice.Fulfilled.String())
	require.False(t, gotAlice.IsFulfilled)
	gotBob := loadOrder(t, repo, bobOrder.OrderID)
	require.Equal(t, "20.5761", gotBob.Fulfilled.String())
	require.False(t, gotBob.IsFulfilled)

	// Orphan newest first restores the ledger exactly.
	require.NoError(t, exchange.NewOrder(repo, gotAlice).Orphan())
	gotBob = loadOrder(t, repo, bobOrder.OrderID)
	require.True(t, gotBob.Fulfilled.IsZero())
	require.NoError(t, exchange.NewOrder(repo, gotBob).Orphan())
	require.Equal(t, before, testutil.Dump(t, repo))
}

func TestMatchingPricePriority(t *testing.T) {
	repo := testutil.NewRepository(t)
	testutil.IssueAsset(t, repo, core.NativeAssetID, "QORA", true)
	testutil.IssueAsset(t, repo, goldID, "GOLD", true)

	prices := []string{"0.5", "0.3", "0.8"}
	sellers := make([]*core.OrderData, len(prices))
	for i, price := range prices {
		_, seller := testutil.Key(t, "seller"+price)
		testutil.SetBalance(t, repo, seller.Address(), goldID, "10")
		sellers[i] = newOrder(seller, "sell"+price, goldID, core.NativeAssetID, "10", price, int64(i))
		trades, err := exchange.NewOrder(repo, sellers[i]).Process()
		require.NoError(t, err)
		require.Empty(t, trades)
	}

	_, buyer := testutil.Key(t, "buyer")
	testutil.SetBalance(t, repo, buyer.Address(), core.NativeAssetID, "100")
	buy := newOrder(buyer, "buy", core.NativeAssetID, goldID, "100", "1.5", 10)
	trades, err := exchange.NewOrder(repo, buy).Process()
	require.NoError(t, err)

	// 0.3 first, then 0.5; 0.8 is worse than 1/1.5 and never touched.
	require.Len(t, trades, 2)
	require.Equal(t, sellers[1].OrderID, trades[0].Target)
	require.Equal(t, "10", trades[0].InitiatorAmount.String())
	require.Equal(t, "3", trades[0].TargetAmount.String())
	require.Equal(t, sellers[0].OrderID, trades[1].Target)
	require.Equal(t, "5", trades[1].TargetAmount.String())

	require.True(t, loadOrder(t, repo, sellers[1].OrderID).IsFulfilled)
	require.True(t, loadOrder(t, repo, sellers[0].OrderID).IsFulfilled)
	require.True(t, loadOrder(t, repo, sellers[2].OrderID).Fulfilled.IsZero())

	got := loadOrder(t, repo, buy.OrderID)
	require.Equal(t, "8", got.Fulfilled.String())
	require.True(t, got.IsOpen())
	require.Equal(t, "20", testutil.Balance(t, repo, buyer.Address(), goldID))
	require.Equal(t, "0", testutil.Balance(t, repo, buyer.Address(), core.NativeAssetID))

	open, err := repo.AssetRepository().GetOpenOrders(goldID, core.NativeAssetID)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, sellers[2].OrderID, open[0].OrderID)
}

func TestMatchingIndivisibleGranularity(t *testing.T) {
	repo := testutil.NewRepository(t)
	qora := testutil.IssueAsset(t, repo, core.NativeAssetID, "QORA", true)
	gold := testutil.IssueAsset(t, repo, goldID, "GOLD", false)
	_, alice := testutil.Key(t, "alice")
	_, bob := testutil.Key(t, "bob")
	testutil.SetBalance(t, repo, alice.Address(), goldID, "10000")
	testutil.SetBalance(t, repo, bob.Address(), core.NativeAssetID, "40")

	_, err := exchange.NewOrder(repo, newOrder(bob, "bob", core.NativeAssetID, goldID, "40", "486", 1)).Process()
	require.NoError(t, err)
	trades, err := exchange.NewOrder(repo, newOrder(alice, "alice", goldID, core.NativeAssetID, "10000", "0.002", 2)).Process()
	require.NoError(t, err)
	require.Len(t, trades, 1)

	increment := exchange.CalculateAmountGranularity(gold, qora, core.MustAmount("486"))
	require.Equal(t, "0.5", increment.String())
	require.True(t, trades[0].InitiatorAmount.Mod(increment).IsZero())
	require.Equal(t, "20.5", trades[0].InitiatorAmount.String())
	require.Equal(t, "9963", trades[0].TargetAmount.String())
	require.False(t, core.HasFraction(trades[0].TargetAmount))
}

func TestCancelAndReopen(t *testing.T) {
	repo := testutil.NewRepository(t)
	testutil.IssueAsset(t, repo, core.NativeAssetID, "QORA", true)
	testutil.IssueAsset(t, repo, goldID, "GOLD", true)
	_, alice := testutil.Key(t, "alice")
	testutil.SetBalance(t, repo, alice.Address(), goldID, "10")

	data := newOrder(alice, "alice", goldID, core.NativeAssetID, "10", "2", 1)
	order := exchange.NewOrder(repo, data)
	_, err := order.Process()
	require.NoError(t, err)

	require.NoError(t, order.Cancel())
	require.True(t, loadOrder(t, repo, data.OrderID).IsClosed)
	open, err := repo.AssetRepository().GetOpenOrders(goldID, core.NativeAssetID)
	require.NoError(t, err)
	require.Empty(t, open)

	require.NoError(t, order.Reopen())
	require.False(t, loadOrder(t, repo, data.OrderID).IsClosed)
	open, err = repo.AssetRepository().GetOpenOrders(goldID, core.NativeAssetID)
	require.NoError(t, err)
	require.Len(t, open, 1)
}

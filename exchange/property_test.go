package exchange_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tolelom/qorachain/core"
	"github.com/tolelom/qorachain/crypto"
	"github.com/tolelom/qorachain/exchange"
	"github.com/tolelom/qorachain/internal/testutil"
	"pgregory.net/rapid"
)

var bookPrices = []string{"0.002", "0.25", "0.5", "1", "2", "3", "4", "486"}

// TestOrderBookProperties places random orders on one asset pair and checks
// fulfilment bounds, monotonicity, conservation of each asset including
// escrow, and that orphaning everything newest first restores the ledger.
func TestOrderBookProperties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		repo, err := testutil.NewStore().Begin(context.Background())
		require.NoError(rt, err)
		defer repo.Close()

		testutil.IssueAsset(rt, repo, core.NativeAssetID, "QORA", true)
		testutil.IssueAsset(rt, repo, goldID, "GOLD", rapid.Bool().Draw(rt, "goldDivisible"))

		traders := make([]crypto.PublicKey, 3)
		for i := range traders {
			_, traders[i] = testutil.Key(rt, fmt.Sprintf("trader%d", i))
			testutil.SetBalance(rt, repo, traders[i].Address(), core.NativeAssetID, "1000000")
			testutil.SetBalance(rt, repo, traders[i].Address(), goldID, "1000000")
		}
		before := testutil.Dump(rt, repo)
		supply := map[int64]decimal.Decimal{
			core.NativeAssetID: core.MustAmount("3000000"),
			goldID:             core.MustAmount("3000000"),
		}

		var placed []*core.OrderData
		fulfilled := map[string]decimal.Decimal{}

		n := rapid.IntRange(1, 12).Draw(rt, "orders")
		for i := 0; i < n; i++ {
			have, want := int64(core.NativeAssetID), int64(goldID)
			if rapid.Bool().Draw(rt, "sellGold") {
				have, want = want, have
			}
			amount := fmt.Sprint(rapid.IntRange(1, 1000).Draw(rt, "amount"))
			price := rapid.SampledFrom(bookPrices).Draw(rt, "price")
			creator := traders[rapid.IntRange(0, len(traders)-1).Draw(rt, "creator")]

			data := newOrder(creator, fmt.Sprintf("order%d", i), have, want, amount, price, int64(i))
			_, err := exchange.NewOrder(repo, data).Process()
			require.NoError(rt, err)
			placed = append(placed, data)

			for _, o := range placed {
				got, err := repo.AssetRepository().FromOrderID(o.OrderID)
				require.NoError(rt, err)
				require.True(rt, got.Fulfilled.Sign() >= 0)
				require.True(rt, got.Fulfilled.Cmp(got.Amount) <= 0)
				require.Equal(rt, got.Fulfilled.Equal(got.Amount), got.IsFulfilled)

				key := string(o.OrderID)
				if prev, ok := fulfilled[key]; ok {
					require.True(rt, got.Fulfilled.Cmp(prev) >= 0)
				}
				fulfilled[key] = got.Fulfilled
			}

			for assetID, total := range supply {
				require.True(rt, total.Equal(heldPlusEscrow(rt, repo, placed, assetID)), "asset %d not conserved", assetID)
			}
		}

		for i := len(placed) - 1; i >= 0; i-- {
			got, err := repo.AssetRepository().FromOrderID(placed[i].OrderID)
			require.NoError(rt, err)
			require.NoError(rt, exchange.NewOrder(repo, got).Orphan())
		}
		require.Equal(rt, before, testutil.Dump(rt, repo))
	})
}

func heldPlusEscrow(t require.TestingT, repo core.Repository, orders []*core.OrderData, assetID int64) decimal.Decimal {
	balances, err := repo.AccountRepository().GetAssetBalances(assetID)
	require.NoError(t, err)
	total := decimal.Zero
	for _, b := range balances {
		total = total.Add(b.Balance)
	}
	for _, o := range orders {
		if o.HaveAssetID != assetID {
			continue
		}
		got, err := repo.AssetRepository().FromOrderID(o.OrderID)
		require.NoError(t, err)
		total = total.Add(got.AmountLeft())
	}
	return total
}

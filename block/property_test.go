package block_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tolelom/qorachain/core"
	"github.com/tolelom/qorachain/internal/testutil"
	"github.com/tolelom/qorachain/transaction"
	"pgregory.net/rapid"
)

// TestBlockSequenceProperties applies a random run of blocks mixing payments,
// order placements and cancellations. Every asset's supply must be accounted
// for by balances plus open-order escrow after each block, and orphaning back
// to genesis must restore the ledger exactly.
func TestBlockSequenceProperties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		repo, err := testutil.NewStore().Begin(context.Background())
		require.NoError(rt, err)
		defer repo.Close()

		c := newChainOn(rt, repo)
		accounts := []actor{c.alice, c.bob, c.forger}
		genesis := testutil.Dump(rt, c.repo)

		// keep trial-processes tx on top of the block built so far and leaves
		// its effects in place only if it validates.
		keep := func(tx *core.TransactionData) bool {
			tip := c.tip(rt)
			ctx := &transaction.Context{Repo: repo, BlockTimestamp: tip.Timestamp + c.params.MaxBlockTime, BlockHeight: tip.Height + 1}
			trial, err := transaction.FromData(tx)
			require.NoError(rt, err)
			res, err := transaction.Validate(ctx, trial)
			require.NoError(rt, err)
			if res != core.OK {
				return false
			}
			require.NoError(rt, trial.Process(ctx))
			return true
		}
		build := func(draw func() []*core.TransactionData) {
			start := repo.Savepoint()
			txs := draw()
			require.NoError(rt, repo.RollbackTo(start))
			c.apply(rt, c.child(rt, c.forger, txs...))
		}

		var gold int64
		build(func() []*core.TransactionData {
			issue := c.signed(rt, c.alice, nil, core.TxIssueAsset, "1", core.IssueAssetPayload{
				Owner: c.alice.addr(), Name: "GOLD", Description: "test", Quantity: core.MustAmount("1000000"), IsDivisible: true,
			})
			require.True(rt, keep(issue))
			asset, err := repo.AssetRepository().FromAssetReference(issue.Signature)
			require.NoError(rt, err)
			gold = asset.AssetID

			fund := c.payment(rt, c.alice, nil, c.bob.addr(), "5000")
			require.True(rt, keep(fund))
			return []*core.TransactionData{issue, fund}
		})
		supply := map[int64]decimal.Decimal{
			core.NativeAssetID: core.MustAmount("1010000"),
			gold:               core.MustAmount("1000000"),
		}

		openOrders := func() []*core.OrderData {
			var all []*core.OrderData
			for _, pair := range [][2]int64{{core.NativeAssetID, gold}, {gold, core.NativeAssetID}} {
				orders, err := repo.AssetRepository().GetOpenOrders(pair[0], pair[1])
				require.NoError(rt, err)
				all = append(all, orders...)
			}
			return all
		}
		owner := func(pub []byte) actor {
			for _, a := range accounts {
				if bytes.Equal(a.pub, pub) {
					return a
				}
			}
			rt.Fatalf("order creator %x is not a test account", pub)
			return actor{}
		}

		blocks := rapid.IntRange(1, 6).Draw(rt, "blocks")
		for i := 0; i < blocks; i++ {
			build(func() []*core.TransactionData {
				var txs []*core.TransactionData
				n := rapid.IntRange(0, 4).Draw(rt, "txs")
				for j := 0; j < n; j++ {
					from := accounts[rapid.IntRange(0, len(accounts)-1).Draw(rt, "from")]
					var tx *core.TransactionData
					switch rapid.IntRange(0, 2).Draw(rt, "kind") {
					case 0:
						to := accounts[rapid.IntRange(0, len(accounts)-1).Draw(rt, "to")]
						if from.addr() == to.addr() {
							continue
						}
						amount := fmt.Sprint(rapid.IntRange(1, 500).Draw(rt, "amount"))
						tx = c.payment(rt, from, nil, to.addr(), amount)
					case 1:
						have, want := core.NativeAssetID, gold
						if rapid.Bool().Draw(rt, "sell gold") {
							have, want = want, have
						}
						amount := core.MustAmount(fmt.Sprint(rapid.IntRange(1, 200).Draw(rt, "order amount")))
						price := decimal.New(int64(rapid.IntRange(1, 4).Draw(rt, "half price")), 0).Div(decimal.New(2, 0))
						tx = c.signed(rt, from, nil, core.TxCreateOrder, "1", core.CreateOrderPayload{
							HaveAssetID: have, WantAssetID: want, Amount: amount, Price: price,
						})
					case 2:
						open := openOrders()
						if len(open) == 0 {
							continue
						}
						o := open[rapid.IntRange(0, len(open)-1).Draw(rt, "cancel")]
						tx = c.signed(rt, owner(o.CreatorPublicKey), nil, core.TxCancelOrder, "1", core.CancelOrderPayload{OrderID: o.OrderID})
					}
					if keep(tx) {
						txs = append(txs, tx)
					}
				}
				return txs
			})

			for assetID, want := range supply {
				total := decimal.Zero
				for _, a := range accounts {
					bal, err := repo.AccountRepository().GetBalance(a.addr(), assetID)
					require.NoError(rt, err)
					require.True(rt, bal.Sign() >= 0)
					total = total.Add(bal)
				}
				for _, o := range openOrders() {
					require.True(rt, o.AmountLeft().Sign() > 0)
					if o.HaveAssetID == assetID {
						total = total.Add(o.AmountLeft())
					}
				}
				require.True(rt, want.Equal(total), "asset %d supply %s, got %s", assetID, want, total)
			}
		}

		for i := 0; i < blocks+1; i++ {
			c.orphanTip(rt)
		}
		require.Equal(rt, 1, c.tip(rt).Height)
		require.Equal(rt, genesis, testutil.Dump(rt, c.repo))
	})
}

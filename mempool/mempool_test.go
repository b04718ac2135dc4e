package mempool_test

import (
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
	"github.com/tolelom/qorachain/core"
	"github.com/tolelom/qorachain/internal/testutil"
	"github.com/tolelom/qorachain/mempool"
)

var start = time.UnixMilli(1_700_000_000_000)

func payment(t *testing.T, name string, ts int64, fee string) *core.TransactionData {
	t.Helper()
	priv, pub := testutil.Key(t, name)
	_, to := testutil.Key(t, "recipient")
	tx, err := core.NewTransaction(core.TxPayment, pub, ts, []byte("ref"), core.MustAmount(fee),
		core.PaymentPayload{Recipient: to.Address(), Amount: core.MustAmount("1")})
	require.NoError(t, err)
	tx.Sign(priv)
	return tx
}

func TestAddRejects(t *testing.T) {
	clk := clock.NewTestClock(start)
	pool := mempool.New(clk)
	now := start.UnixMilli()

	tx := payment(t, "alice", now, "1")
	require.NoError(t, pool.Add(tx))
	require.ErrorIs(t, pool.Add(tx), mempool.ErrDuplicate)

	tampered := payment(t, "bob", now, "1")
	tampered.Fee = core.MustAmount("2")
	require.Error(t, pool.Add(tampered))

	require.ErrorIs(t, pool.Add(payment(t, "carol", now+int64(time.Hour/time.Millisecond), "1")), mempool.ErrFuture)
	require.ErrorIs(t, pool.Add(payment(t, "dave", now-core.MaxTxLifetime, "1")), mempool.ErrExpired)

	genesis, err := core.NewTransaction(core.TxGenesis, nil, now, nil, core.MustAmount("0"), core.GenesisPayload{})
	require.NoError(t, err)
	require.ErrorIs(t, pool.Add(genesis), mempool.ErrUnsupported)

	require.Equal(t, 1, pool.Size())
	got, ok := pool.Get(tx.SignatureHex())
	require.True(t, ok)
	require.Equal(t, tx, got)
}

func TestPendingOrder(t *testing.T) {
	clk := clock.NewTestClock(start)
	pool := mempool.New(clk)
	now := start.UnixMilli()

	cheap := payment(t, "alice", now-10, "1")
	rich := payment(t, "bob", now, "5")
	older := payment(t, "carol", now-20, "1")
	later := payment(t, "dave", now+1000, "9")
	for _, tx := range []*core.TransactionData{cheap, rich, older, later} {
		require.NoError(t, pool.Add(tx))
	}

	require.Equal(t, []*core.TransactionData{rich, older, cheap}, pool.Pending(now))
	require.Equal(t, []*core.TransactionData{later, rich, older, cheap}, pool.Pending(now+1000))

	pool.Remove([][]byte{rich.Signature, later.Signature})
	require.Equal(t, []*core.TransactionData{older, cheap}, pool.Pending(now+1000))
}

func TestPrune(t *testing.T) {
	clk := clock.NewTestClock(start)
	pool := mempool.New(clk)
	now := start.UnixMilli()

	old := payment(t, "alice", now-core.MaxTxLifetime+1000, "1")
	fresh := payment(t, "bob", now, "1")
	require.NoError(t, pool.Add(old))
	require.NoError(t, pool.Add(fresh))

	require.Equal(t, 0, pool.Prune())
	clk.SetTime(start.Add(time.Second))
	require.Equal(t, 1, pool.Prune())
	_, ok := pool.Get(fresh.SignatureHex())
	require.True(t, ok)
}

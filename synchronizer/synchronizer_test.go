package synchronizer_test

import (
	"context"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
	"github.com/tolelom/qorachain/block"
	"github.com/tolelom/qorachain/chain"
	"github.com/tolelom/qorachain/consensus"
	"github.com/tolelom/qorachain/core"
	"github.com/tolelom/qorachain/crypto"
	"github.com/tolelom/qorachain/internal/testutil"
	"github.com/tolelom/qorachain/mempool"
	"github.com/tolelom/qorachain/storage"
	"github.com/tolelom/qorachain/synchronizer"
)

var params = consensus.DefaultParams()

type node struct {
	store *storage.Store
	chain *chain.Chain
}

type keys struct {
	alice, bob, forger crypto.PrivateKey
}

func newKeys(t *testing.T) keys {
	var k keys
	k.alice, _ = testutil.Key(t, "alice")
	k.bob, _ = testutil.Key(t, "bob")
	k.forger, _ = testutil.Key(t, "forger")
	return k
}

func newNode(t *testing.T, k keys, aliceFunds string) *node {
	t.Helper()
	n := &node{store: testutil.NewStore()}
	n.chain = chain.New(n.store, chain.Config{
		Params: params,
		Allocations: []block.Allocation{
			{Recipient: k.alice.Public().Address(), Amount: core.MustAmount(aliceFunds)},
			{Recipient: k.forger.Public().Address(), Amount: core.MustAmount("10000")},
		},
	})
	require.NoError(t, n.chain.Init(context.Background()))
	return n
}

// extend forges a block on the node's tip at the latest allowed slot.
func (n *node) extend(t *testing.T, generator crypto.PrivateKey, txs ...*core.TransactionData) *block.Block {
	t.Helper()
	ctx := context.Background()
	repo, err := n.chain.Begin(ctx)
	require.NoError(t, err)
	tip, err := n.chain.Tip(repo)
	require.NoError(t, err)
	b, err := block.NewCandidate(params, repo, tip, generator.Public(), tip.Timestamp+params.MaxBlockTime)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	for _, tx := range txs {
		require.True(t, b.AddTransaction(tx))
	}
	b.Sign(generator)
	require.NoError(t, n.chain.ImportBlock(ctx, b, b.Data().Timestamp))
	return b
}

func (n *node) dump(t *testing.T) map[string]string {
	t.Helper()
	repo, err := n.store.Begin(context.Background())
	require.NoError(t, err)
	defer repo.Close()
	return testutil.Dump(t, repo)
}

func (n *node) reference(t *testing.T, key crypto.PrivateKey) []byte {
	t.Helper()
	repo, err := n.store.Begin(context.Background())
	require.NoError(t, err)
	defer repo.Close()
	ref, err := repo.AccountRepository().GetLastReference(key.Public().Address())
	require.NoError(t, err)
	return ref
}

func payment(t *testing.T, from crypto.PrivateKey, ref []byte, to, amount string) *core.TransactionData {
	t.Helper()
	tx, err := core.NewTransaction(core.TxPayment, from.Public(), params.GenesisTimestamp+1000, ref,
		core.MustAmount("1"), core.PaymentPayload{Recipient: to, Amount: core.MustAmount(amount)})
	require.NoError(t, err)
	tx.Sign(from)
	return tx
}

func testClock() *clock.TestClock {
	return clock.NewTestClock(time.UnixMilli(params.GenesisTimestamp).Add(time.Hour))
}

func TestSyncAppendsPeerBlocks(t *testing.T) {
	k := newKeys(t)
	local, remote := newNode(t, k, "1000000"), newNode(t, k, "1000000")
	remote.extend(t, k.forger, payment(t, k.alice, remote.reference(t, k.alice), k.bob.Public().Address(), "10"))
	remote.extend(t, k.forger)

	syncer := synchronizer.New(local.chain, nil, testClock(), nil, nil)
	res, err := syncer.Synchronize(context.Background(), synchronizer.NewStorePeer("remote", remote.store))
	require.NoError(t, err)
	require.Equal(t, synchronizer.Result{CommonHeight: 1, Applied: 2}, res)
	require.Equal(t, remote.dump(t), local.dump(t))
}

func TestSyncReorganisesAndRequeues(t *testing.T) {
	k := newKeys(t)
	local, remote := newNode(t, k, "1000000"), newNode(t, k, "1000000")

	tx := payment(t, k.alice, local.reference(t, k.alice), k.bob.Public().Address(), "10")
	local.extend(t, k.forger, tx)
	remote.extend(t, k.forger)
	remote.extend(t, k.forger)

	clk := testClock()
	pool := mempool.New(clk)
	syncer := synchronizer.New(local.chain, pool, clk, nil, nil)
	res, err := syncer.Synchronize(context.Background(), synchronizer.NewStorePeer("remote", remote.store))
	require.NoError(t, err)
	require.Equal(t, synchronizer.Result{CommonHeight: 1, Orphaned: 1, Applied: 2}, res)
	require.Equal(t, remote.dump(t), local.dump(t))

	_, ok := pool.Get(tx.SignatureHex())
	require.True(t, ok)
}

func TestSyncIgnoresShorterPeer(t *testing.T) {
	k := newKeys(t)
	local, remote := newNode(t, k, "1000000"), newNode(t, k, "1000000")
	local.extend(t, k.forger)
	before := local.dump(t)

	syncer := synchronizer.New(local.chain, nil, testClock(), nil, nil)
	res, err := syncer.Synchronize(context.Background(), synchronizer.NewStorePeer("remote", remote.store))
	require.NoError(t, err)
	require.Equal(t, synchronizer.Result{CommonHeight: 2}, res)
	require.Equal(t, before, local.dump(t))
}

// tamperingPeer corrupts the generator signature of one block.
type tamperingPeer struct {
	synchronizer.Peer
	height int
}

func (p tamperingPeer) BlockAt(ctx context.Context, height int) (*core.BlockData, []*core.TransactionData, error) {
	data, txs, err := p.Peer.BlockAt(ctx, height)
	if err == nil && height == p.height {
		data.GeneratorSignature[0] ^= 0xff
	}
	return data, txs, err
}

func TestSyncRollsBackOnInvalidPeerBlock(t *testing.T) {
	k := newKeys(t)
	local, remote := newNode(t, k, "1000000"), newNode(t, k, "1000000")
	local.extend(t, k.forger, payment(t, k.alice, local.reference(t, k.alice), k.bob.Public().Address(), "10"))
	remote.extend(t, k.forger)
	remote.extend(t, k.forger)
	remote.extend(t, k.forger)
	before := local.dump(t)

	peer := tamperingPeer{Peer: synchronizer.NewStorePeer("remote", remote.store), height: 3}
	syncer := synchronizer.New(local.chain, nil, testClock(), nil, nil)
	_, err := syncer.Synchronize(context.Background(), peer)

	var invalid *chain.InvalidBlockError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, block.GeneratorSignatureInvalid, invalid.Result)
	require.Equal(t, before, local.dump(t))
}

// watchingPeer runs onFetch before serving each block.
type watchingPeer struct {
	synchronizer.Peer
	onFetch func(height int)
}

func (p watchingPeer) BlockAt(ctx context.Context, height int) (*core.BlockData, []*core.TransactionData, error) {
	p.onFetch(height)
	return p.Peer.BlockAt(ctx, height)
}

func TestSyncLeavesStoreFreeWhileFetching(t *testing.T) {
	k := newKeys(t)
	local, remote := newNode(t, k, "1000000"), newNode(t, k, "1000000")
	remote.extend(t, k.forger)
	remote.extend(t, k.forger)

	fetches := 0
	peer := watchingPeer{
		Peer: synchronizer.NewStorePeer("remote", remote.store),
		onFetch: func(int) {
			fetches++
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			repo, err := local.store.Begin(ctx)
			require.NoError(t, err)
			require.NoError(t, repo.Close())
		},
	}
	syncer := synchronizer.New(local.chain, nil, testClock(), nil, nil)
	res, err := syncer.Synchronize(context.Background(), peer)
	require.NoError(t, err)
	require.Equal(t, 2, res.Applied)
	require.Equal(t, 3, fetches)
	require.Equal(t, remote.dump(t), local.dump(t))
}

func TestSyncSkipsWhenLocalChainGrewMeanwhile(t *testing.T) {
	k := newKeys(t)
	local, remote := newNode(t, k, "1000000"), newNode(t, k, "1000000")
	remote.extend(t, k.forger)

	grown := false
	peer := watchingPeer{
		Peer: synchronizer.NewStorePeer("remote", remote.store),
		onFetch: func(height int) {
			if height == 2 && !grown {
				grown = true
				local.extend(t, k.forger)
				local.extend(t, k.forger)
			}
		},
	}
	syncer := synchronizer.New(local.chain, nil, testClock(), nil, nil)
	res, err := syncer.Synchronize(context.Background(), peer)
	require.NoError(t, err)
	require.Equal(t, synchronizer.Result{CommonHeight: 3}, res)
}

func TestSyncNeedsCommonGenesis(t *testing.T) {
	k := newKeys(t)
	local, remote := newNode(t, k, "1000000"), newNode(t, k, "2000000")
	remote.extend(t, k.forger)

	syncer := synchronizer.New(local.chain, nil, testClock(), nil, nil)
	_, err := syncer.Synchronize(context.Background(), synchronizer.NewStorePeer("remote", remote.store))
	require.ErrorIs(t, err, synchronizer.ErrNoCommonBlock)
}

func TestRunSyncsEachRound(t *testing.T) {
	k := newKeys(t)
	local, remote := newNode(t, k, "1000000"), newNode(t, k, "1000000")
	remote.extend(t, k.forger)

	tick := make(chan time.Duration, 16)
	clk := clock.NewTestClockWithTickSignal(time.UnixMilli(params.GenesisTimestamp).Add(time.Hour), tick)
	syncer := synchronizer.New(local.chain, nil, clk, nil, nil)
	peer := synchronizer.NewStorePeer("remote", remote.store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- syncer.Run(ctx, []synchronizer.Peer{peer}, time.Minute) }()

	// The first round ran once Run waits on the clock.
	require.Equal(t, time.Minute, <-tick)
	require.Equal(t, remote.dump(t), local.dump(t))

	remote.extend(t, k.forger)
	clk.SetTime(clk.Now().Add(time.Minute))
	require.Equal(t, time.Minute, <-tick)
	require.Equal(t, remote.dump(t), local.dump(t))

	cancel()
	require.NoError(t, <-done)
}

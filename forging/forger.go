// Package forging produces blocks for local accounts when the distance-based
// schedule says one of them may forge.
package forging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/sirupsen/logrus"
	"github.com/tolelom/qorachain/block"
	"github.com/tolelom/qorachain/chain"
	"github.com/tolelom/qorachain/consensus"
	"github.com/tolelom/qorachain/core"
	"github.com/tolelom/qorachain/crypto"
	"github.com/tolelom/qorachain/events"
	"github.com/tolelom/qorachain/internal/logging"
	"github.com/tolelom/qorachain/ledger"
	"github.com/tolelom/qorachain/mempool"
	"github.com/tolelom/qorachain/transaction"
)

// DefaultInterval is how often Run checks whether a local key may forge.
const DefaultInterval = time.Second

// Forger builds, signs and commits blocks for its keys.
type Forger struct {
	chain    *chain.Chain
	pool     *mempool.Pool
	clock    clock.Clock
	keys     []crypto.PrivateKey
	emitter  *events.Emitter
	log      logrus.FieldLogger
	interval time.Duration
}

// Config wires a Forger. Zero Interval means DefaultInterval.
type Config struct {
	Keys     []crypto.PrivateKey
	Interval time.Duration
	Emitter  *events.Emitter
	Log      logrus.FieldLogger
}

// New creates a Forger. clk should be the network-adjusted clock.
func New(c *chain.Chain, pool *mempool.Pool, clk clock.Clock, cfg Config) *Forger {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Forger{
		chain:    c,
		pool:     pool,
		clock:    clk,
		keys:     cfg.Keys,
		emitter:  cfg.Emitter,
		log:      logging.OrDiscard(cfg.Log),
		interval: interval,
	}
}

// Run checks for a forging opportunity every interval until ctx is done.
func (f *Forger) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-f.clock.TickAfter(f.interval):
			if _, err := f.TryForge(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				f.log.WithError(err).Warn("Forging attempt failed")
			}
			if n := f.pool.Prune(); n > 0 {
				f.log.WithField("expired", n).Debug("Pruned mempool")
			}
		}
	}
}

type slot struct {
	key       crypto.PrivateKey
	timestamp int64
}

// bestSlot picks the eligible key with the earliest allowed timestamp on top
// of parent. ok is false when no key holds the minimum forging balance.
func (f *Forger) bestSlot(repo core.Repository, params consensus.Params, parent *core.BlockData) (slot, bool, error) {
	var best slot
	found := false
	for _, key := range f.keys {
		pub := key.Public()
		balance, err := ledger.NewPublicKeyAccount(repo, pub).ConfirmedBalance(core.NativeAssetID)
		if err != nil {
			return slot{}, false, err
		}
		if balance.Cmp(params.MinForgingBalance) < 0 {
			continue
		}
		ts := consensus.CalcMinTimestamp(params, parent, pub)
		if !found || ts < best.timestamp {
			best, found = slot{key: key, timestamp: ts}, true
		}
	}
	return best, found, nil
}

// TryForge forges one block if a local key's slot has arrived. It returns
// nil without error when there is nothing to do yet.
func (f *Forger) TryForge(ctx context.Context) (*block.Block, error) {
	repo, err := f.chain.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer repo.Close()

	params := f.chain.Params()
	parent, err := f.chain.Tip(repo)
	if err != nil {
		return nil, err
	}
	s, ok, err := f.bestSlot(repo, params, parent)
	if err != nil || !ok {
		return nil, err
	}
	now := f.clock.Now().UnixMilli()
	if now < s.timestamp {
		return nil, nil
	}

	candidate, err := block.NewCandidate(params, repo, parent, s.key.Public(), s.timestamp)
	if err != nil {
		return nil, err
	}
	if err := f.fill(repo, candidate, parent.Height+1); err != nil {
		_ = repo.DiscardChanges()
		return nil, err
	}
	candidate.Sign(s.key)

	if err := f.chain.Apply(ctx, repo, candidate, now); err != nil {
		_ = repo.DiscardChanges()
		var invalid *chain.InvalidBlockError
		if errors.As(err, &invalid) {
			return nil, fmt.Errorf("forged candidate rejected: %w", err)
		}
		return nil, err
	}
	if err := f.chain.Commit(repo, nil, []*block.Block{candidate}); err != nil {
		return nil, err
	}

	sigs := make([][]byte, 0, candidate.Data().TransactionCount)
	for _, tx := range candidate.Transactions() {
		sigs = append(sigs, tx.Signature)
	}
	f.pool.Remove(sigs)

	data := candidate.Data()
	f.log.WithFields(logrus.Fields{
		"height":    data.Height,
		"generator": crypto.ToAddress(data.GeneratorPublicKey),
		"txs":       len(sigs),
	}).Info("Forged block")
	f.emitter.Emit(events.Event{
		Type:        events.EventBlockForged,
		Signature:   data.SignatureHex(),
		BlockHeight: data.Height,
		Data:        map[string]any{"generator": crypto.ToAddress(data.GeneratorPublicKey)},
	})
	return candidate, nil
}

// fill adds pending transactions to candidate, highest fee first, keeping
// each one only if it validates on top of those already kept. A processing
// failure is a storage fault and aborts the attempt. All trial effects are
// rolled back before returning. Transactions that are
// already confirmed are dropped from the pool.
func (f *Forger) fill(repo core.Repository, candidate *block.Block, height int) error {
	ts := candidate.Data().Timestamp
	txCtx := &transaction.Context{Repo: repo, BlockTimestamp: ts, BlockHeight: height}
	start := repo.Savepoint()

	var confirmed [][]byte
	for _, data := range f.pool.Pending(ts) {
		if _, err := repo.TransactionRepository().FromSignature(data.Signature); err == nil {
			confirmed = append(confirmed, data.Signature)
			continue
		} else if !errors.Is(err, core.ErrNotFound) {
			return err
		}

		tx, err := transaction.FromData(data)
		if err != nil {
			continue
		}
		sp := repo.Savepoint()
		result, err := transaction.Validate(txCtx, tx)
		if err != nil {
			return err
		}
		if result != core.OK {
			f.log.WithFields(logrus.Fields{"tx": data.SignatureHex()[:16], "result": result}).Debug("Skipping transaction")
			if err := repo.RollbackTo(sp); err != nil {
				return err
			}
			continue
		}
		if err := tx.Process(txCtx); err != nil {
			return fmt.Errorf("trial process %s: %w", data.SignatureHex()[:16], err)
		}
		if !candidate.AddTransaction(data) {
			if err := repo.RollbackTo(sp); err != nil {
				return err
			}
		}
	}
	f.pool.Remove(confirmed)
	return repo.RollbackTo(start)
}

// Package chain owns the canonical block sequence: it creates the genesis
// block, applies and orphans blocks on an open repository and publishes
// events once changes are committed.
package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/tolelom/qorachain/at"
	"github.com/tolelom/qorachain/block"
	"github.com/tolelom/qorachain/consensus"
	"github.com/tolelom/qorachain/core"
	"github.com/tolelom/qorachain/events"
	"github.com/tolelom/qorachain/internal/logging"
)

var (
	// ErrNoGenesis is returned when the chain has not been initialised.
	ErrNoGenesis = errors.New("chain has no genesis block")
	// ErrOrphanGenesis is returned when asked to orphan the genesis block.
	ErrOrphanGenesis = errors.New("cannot orphan the genesis block")
)

// InvalidBlockError reports a block that failed validation.
type InvalidBlockError struct {
	Result block.ValidationResult
	// TxResult is set when Result is TransactionInvalid.
	TxResult core.ValidationResult
}

func (e *InvalidBlockError) Error() string {
	if e.Result == block.TransactionInvalid {
		return fmt.Sprintf("invalid block: %s (%s)", e.Result, e.TxResult)
	}
	return fmt.Sprintf("invalid block: %s", e.Result)
}

// Config wires a Chain.
type Config struct {
	Params      consensus.Params
	Allocations []block.Allocation
	// Engine runs ATs; nil means at.NopEngine.
	Engine  at.Engine
	Emitter *events.Emitter
	Log     logrus.FieldLogger
}

// Chain applies blocks to repositories handed out by its store.
type Chain struct {
	store   core.RepositoryFactory
	params  consensus.Params
	allocs  []block.Allocation
	engine  at.Engine
	emitter *events.Emitter
	log     logrus.FieldLogger
}

// New returns a Chain over store. Call Init before use.
func New(store core.RepositoryFactory, cfg Config) *Chain {
	engine := cfg.Engine
	if engine == nil {
		engine = at.NopEngine{}
	}
	return &Chain{
		store:   store,
		params:  cfg.Params,
		allocs:  cfg.Allocations,
		engine:  engine,
		emitter: cfg.Emitter,
		log:     logging.OrDiscard(cfg.Log),
	}
}

func (c *Chain) Params() consensus.Params { return c.params }

// Begin opens the single repository transaction. Callers must Close it.
func (c *Chain) Begin(ctx context.Context) (core.Repository, error) {
	return c.store.Begin(ctx)
}

// Init applies and commits the genesis block if the store is empty.
func (c *Chain) Init(ctx context.Context) error {
	repo, err := c.Begin(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	height, err := repo.BlockRepository().GetBlockchainHeight()
	if err != nil {
		return fmt.Errorf("get height: %w", err)
	}
	if height > 0 {
		c.log.WithField("height", height).Info("Loaded existing chain")
		return nil
	}

	genesis, err := block.Genesis(c.params, c.allocs)
	if err != nil {
		return fmt.Errorf("build genesis: %w", err)
	}
	if err := genesis.Process(ctx, repo, c.engine); err != nil {
		return fmt.Errorf("process genesis: %w", err)
	}
	if err := c.Commit(repo, nil, []*block.Block{genesis}); err != nil {
		return err
	}
	c.log.WithFields(logrus.Fields{
		"signature":   genesis.Data().SignatureHex()[:16],
		"allocations": len(c.allocs),
	}).Info("Created genesis block")
	return nil
}

// Tip returns the last block of repo's chain.
func (c *Chain) Tip(repo core.Repository) (*core.BlockData, error) {
	tip, err := repo.BlockRepository().GetLastBlock()
	if errors.Is(err, core.ErrNotFound) {
		return nil, ErrNoGenesis
	}
	return tip, err
}

// Apply validates b against repo's tip at network time now and processes it.
// Nothing is committed. An invalid block yields *InvalidBlockError and leaves
// repo untouched; after any other error the caller must discard changes.
func (c *Chain) Apply(ctx context.Context, repo core.Repository, b *block.Block, now int64) error {
	result, err := b.IsValid(repo, now)
	if err != nil {
		return fmt.Errorf("validate block: %w", err)
	}
	if result != block.OK {
		_, txResult := b.InvalidTransaction()
		return &InvalidBlockError{Result: result, TxResult: txResult}
	}
	if err := b.Process(ctx, repo, c.engine); err != nil {
		return fmt.Errorf("process block: %w", err)
	}
	return nil
}

// OrphanTip orphans repo's tip block and returns it with its signed
// transactions. Nothing is committed.
func (c *Chain) OrphanTip(repo core.Repository) (*block.Block, error) {
	tip, err := c.Tip(repo)
	if err != nil {
		return nil, err
	}
	if tip.Height <= 1 {
		return nil, ErrOrphanGenesis
	}
	b, err := block.Load(c.params, repo, tip)
	if err != nil {
		return nil, fmt.Errorf("load tip: %w", err)
	}
	if err := b.Orphan(repo); err != nil {
		return nil, fmt.Errorf("orphan block %d: %w", tip.Height, err)
	}
	return b, nil
}

// Commit saves repo's changes, then publishes events for the orphaned blocks
// (newest first) and the applied blocks (oldest first).
func (c *Chain) Commit(repo core.Repository, orphaned, applied []*block.Block) error {
	if err := repo.SaveChanges(); err != nil {
		return fmt.Errorf("save changes: %w", err)
	}

	for _, b := range orphaned {
		c.log.WithFields(logrus.Fields{
			"height":    b.Data().Height,
			"signature": b.Data().SignatureHex()[:16],
		}).Info("Orphaned block")
		c.emitter.Emit(events.Event{
			Type:        events.EventBlockOrphaned,
			Signature:   b.Data().SignatureHex(),
			BlockHeight: b.Data().Height,
			Data:        map[string]any{"txs": len(b.Transactions())},
		})
	}
	for _, b := range applied {
		data := b.Data()
		txs, err := repo.BlockRepository().GetTransactionsFromSignature(b.Signature())
		if err != nil {
			return err
		}
		c.log.WithFields(logrus.Fields{
			"height": data.Height,
			"txs":    len(txs),
			"fees":   data.TotalFees.String(),
		}).Info("Processed block")
		c.emitter.Emit(events.Event{
			Type:        events.EventBlockProcessed,
			Signature:   data.SignatureHex(),
			BlockHeight: data.Height,
			Data: map[string]any{
				"txs":        len(txs),
				"ats":        data.ATCount,
				"total_fees": data.TotalFees.String(),
			},
		})
		for _, tx := range txs {
			c.emitter.Emit(events.Event{
				Type:        events.EventTxProcessed,
				Signature:   tx.SignatureHex(),
				BlockHeight: data.Height,
				Data:        map[string]any{"type": string(tx.Type)},
			})
		}
	}
	return nil
}

// ImportBlock applies a single block in its own repository transaction and
// commits it.
func (c *Chain) ImportBlock(ctx context.Context, b *block.Block, now int64) error {
	repo, err := c.Begin(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := c.Apply(ctx, repo, b, now); err != nil {
		_ = repo.DiscardChanges()
		return err
	}
	return c.Commit(repo, nil, []*block.Block{b})
}

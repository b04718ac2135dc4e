// Package synchronizer brings the local chain in line with a peer's longer
// chain: it finds the common block, orphans local blocks back to it and
// applies the peer's blocks, committing only if every block applies.
package synchronizer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/sirupsen/logrus"
	"github.com/tolelom/qorachain/block"
	"github.com/tolelom/qorachain/chain"
	"github.com/tolelom/qorachain/core"
	"github.com/tolelom/qorachain/events"
	"github.com/tolelom/qorachain/internal/logging"
	"github.com/tolelom/qorachain/mempool"
)

// MaxBlocksPerSync caps how many peer blocks one Synchronize call applies.
const MaxBlocksPerSync = 500

var (
	// ErrNoCommonBlock is returned when the peer does not share our genesis.
	ErrNoCommonBlock = errors.New("no common block with peer")
	// ErrChainMoved is returned when the common block was orphaned locally
	// while peer blocks were being fetched. The next round retries.
	ErrChainMoved = errors.New("local chain changed during synchronization")
)

// Result summarises one synchronisation.
type Result struct {
	CommonHeight int
	Orphaned     int
	Applied      int
}

// Synchronizer reconciles the local chain with peers.
type Synchronizer struct {
	chain   *chain.Chain
	pool    *mempool.Pool
	clock   clock.Clock
	emitter *events.Emitter
	log     logrus.FieldLogger
}

// New creates a Synchronizer. pool receives the transactions of orphaned
// blocks that the peer's chain does not carry; it may be nil.
func New(c *chain.Chain, pool *mempool.Pool, clk clock.Clock, emitter *events.Emitter, log logrus.FieldLogger) *Synchronizer {
	return &Synchronizer{
		chain:   c,
		pool:    pool,
		clock:   clk,
		emitter: emitter,
		log:     logging.OrDiscard(log),
	}
}

// Synchronize adopts peer's chain if it is longer than ours. Peer blocks are
// fetched before the repository transaction is opened, so the store is only
// held while blocks are orphaned and applied. On any failure every change,
// orphans included, is discarded.
func (s *Synchronizer) Synchronize(ctx context.Context, peer Peer) (Result, error) {
	peerHeight, err := peer.ChainHeight(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("peer %s height: %w", peer.ID(), err)
	}
	localHeight, err := s.localHeight(ctx)
	if err != nil {
		return Result{}, err
	}
	if peerHeight <= localHeight {
		return Result{CommonHeight: localHeight}, nil
	}

	common, commonSig, err := s.commonBlock(ctx, peer, localHeight)
	if err != nil {
		return Result{}, err
	}
	log := s.log.WithFields(logrus.Fields{"peer": peer.ID(), "common": common})

	var fetched []*block.Block
	for h := common + 1; h <= peerHeight && len(fetched) < MaxBlocksPerSync; h++ {
		data, txs, err := peer.BlockAt(ctx, h)
		if err != nil {
			return Result{}, fmt.Errorf("peer %s block %d: %w", peer.ID(), h, err)
		}
		b, err := block.New(s.chain.Params(), data, txs)
		if err != nil {
			return Result{}, fmt.Errorf("peer %s block %d: %w", peer.ID(), h, err)
		}
		fetched = append(fetched, b)
	}

	repo, err := s.chain.Begin(ctx)
	if err != nil {
		return Result{}, err
	}
	defer repo.Close()

	// The local chain may have moved while the store was free.
	localHeight, err = repo.BlockRepository().GetBlockchainHeight()
	if err != nil {
		return Result{}, err
	}
	if common+len(fetched) <= localHeight {
		return Result{CommonHeight: localHeight}, nil
	}
	local, err := repo.BlockRepository().FromHeight(common)
	if err != nil {
		return Result{}, fmt.Errorf("local block %d: %w", common, err)
	}
	if !bytes.Equal(local.Signature(), commonSig) {
		return Result{}, ErrChainMoved
	}

	orphaned, err := s.orphanTo(repo, common)
	if err != nil {
		_ = repo.DiscardChanges()
		return Result{}, err
	}

	var applied []*block.Block
	for _, b := range fetched {
		if err := s.chain.Apply(ctx, repo, b, s.clock.Now().UnixMilli()); err != nil {
			_ = repo.DiscardChanges()
			h := common + len(applied) + 1
			log.WithError(err).WithField("height", h).Warn("Rejected peer block")
			return Result{}, fmt.Errorf("peer %s block %d: %w", peer.ID(), h, err)
		}
		applied = append(applied, b)
	}

	if err := s.chain.Commit(repo, orphaned, applied); err != nil {
		return Result{}, err
	}
	s.requeue(orphaned, applied)

	res := Result{CommonHeight: common, Orphaned: len(orphaned), Applied: len(applied)}
	log.WithFields(logrus.Fields{"orphaned": res.Orphaned, "applied": res.Applied}).Info("Synchronized with peer")
	s.emitter.Emit(events.Event{
		Type:        events.EventSyncCompleted,
		BlockHeight: common + len(applied),
		Data:        map[string]any{"peer": peer.ID(), "orphaned": res.Orphaned, "applied": res.Applied},
	})
	return res, nil
}

func (s *Synchronizer) localHeight(ctx context.Context) (int, error) {
	repo, err := s.chain.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer repo.Close()
	return repo.BlockRepository().GetBlockchainHeight()
}

func (s *Synchronizer) localSignature(ctx context.Context, height int) ([]byte, error) {
	repo, err := s.chain.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer repo.Close()
	local, err := repo.BlockRepository().FromHeight(height)
	if err != nil {
		return nil, fmt.Errorf("local block %d: %w", height, err)
	}
	return local.Signature(), nil
}

// Run synchronizes with each peer in turn, then waits interval, until ctx is
// done. Failures are logged and the peer is retried next round.
func (s *Synchronizer) Run(ctx context.Context, peers []Peer, interval time.Duration) error {
	for {
		for _, peer := range peers {
			if ctx.Err() != nil {
				return nil
			}
			if _, err := s.Synchronize(ctx, peer); err != nil && ctx.Err() == nil {
				s.log.WithError(err).WithField("peer", peer.ID()).Warn("Synchronization failed")
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-s.clock.TickAfter(interval):
		}
	}
}

// commonBlock walks down from height until both chains carry the same
// block and returns its height and signature. The store is taken only for
// each local lookup.
func (s *Synchronizer) commonBlock(ctx context.Context, peer Peer, from int) (int, []byte, error) {
	for h := from; h >= 1; h-- {
		remote, _, err := peer.BlockAt(ctx, h)
		if err != nil {
			return 0, nil, fmt.Errorf("peer %s block %d: %w", peer.ID(), h, err)
		}
		local, err := s.localSignature(ctx, h)
		if err != nil {
			return 0, nil, err
		}
		if bytes.Equal(local, remote.Signature()) {
			return h, local, nil
		}
	}
	return 0, nil, ErrNoCommonBlock
}

// orphanTo orphans blocks until height is the tip, newest first.
func (s *Synchronizer) orphanTo(repo core.Repository, height int) ([]*block.Block, error) {
	var orphaned []*block.Block
	for {
		tip, err := s.chain.Tip(repo)
		if err != nil {
			return nil, err
		}
		if tip.Height <= height {
			return orphaned, nil
		}
		b, err := s.chain.OrphanTip(repo)
		if err != nil {
			return nil, err
		}
		orphaned = append(orphaned, b)
	}
}

// requeue returns orphaned transactions the new chain does not carry to the
// pool. Ones that no longer fit the pool's time window are dropped.
func (s *Synchronizer) requeue(orphaned, applied []*block.Block) {
	if s.pool == nil {
		return
	}
	included := make(map[string]bool)
	for _, b := range applied {
		for _, tx := range b.Transactions() {
			included[tx.SignatureHex()] = true
		}
	}
	for _, b := range orphaned {
		for _, tx := range b.Transactions() {
			if included[tx.SignatureHex()] {
				continue
			}
			if err := s.pool.Add(tx); err != nil {
				s.log.WithError(err).WithField("tx", tx.SignatureHex()[:16]).Debug("Dropped orphaned transaction")
			}
		}
	}
	if len(applied) > 0 {
		var sigs [][]byte
		for _, b := range applied {
			for _, tx := range b.Transactions() {
				sigs = append(sigs, tx.Signature)
			}
		}
		s.pool.Remove(sigs)
	}
}

// Package mempool holds signed transactions waiting to be forged.
package mempool

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/tolelom/qorachain/core"
)

const (
	maxPoolSize = 10_000
	maxTxFuture = int64(5 * time.Minute / time.Millisecond)
)

var (
	ErrFull        = errors.New("mempool full")
	ErrDuplicate   = errors.New("transaction already in pool")
	ErrExpired     = errors.New("transaction expired")
	ErrFuture      = errors.New("transaction timestamp too far in the future")
	ErrUnsupported = errors.New("transaction kind cannot be submitted")
)

// Pool is a thread-safe pending-transaction pool keyed by signature.
type Pool struct {
	mu    sync.RWMutex
	clock clock.Clock
	txs   map[string]*core.TransactionData
}

// New creates an empty pool reading time from clk.
func New(clk clock.Clock) *Pool {
	return &Pool{clock: clk, txs: make(map[string]*core.TransactionData)}
}

func (p *Pool) now() int64 { return p.clock.Now().UnixMilli() }

// Add verifies the signature and timestamp window and inserts tx. Ledger
// validity is not checked here; the forger drops transactions that no longer
// apply.
func (p *Pool) Add(tx *core.TransactionData) error {
	if tx.Type == core.TxGenesis || tx.Type == core.TxAT {
		return fmt.Errorf("%w: %s", ErrUnsupported, tx.Type)
	}
	if err := tx.Verify(); err != nil {
		return fmt.Errorf("invalid tx signature: %w", err)
	}
	now := p.now()
	if now >= tx.Deadline() {
		return ErrExpired
	}
	if tx.Timestamp-now > maxTxFuture {
		return ErrFuture
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	sig := tx.SignatureHex()
	if _, exists := p.txs[sig]; exists {
		return ErrDuplicate
	}
	if len(p.txs) >= maxPoolSize {
		return ErrFull
	}
	p.txs[sig] = tx
	return nil
}

// Get returns a transaction by hex signature.
func (p *Pool) Get(signatureHex string) (*core.TransactionData, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	tx, ok := p.txs[signatureHex]
	return tx, ok
}

// Pending returns the transactions a block stamped blockTimestamp may carry,
// highest fee first, then oldest, then by signature.
func (p *Pool) Pending(blockTimestamp int64) []*core.TransactionData {
	p.mu.RLock()
	out := make([]*core.TransactionData, 0, len(p.txs))
	for _, tx := range p.txs {
		if tx.Timestamp <= blockTimestamp && blockTimestamp < tx.Deadline() {
			out = append(out, tx)
		}
	}
	p.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Fee.Cmp(out[j].Fee); c != 0 {
			return c > 0
		}
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return bytes.Compare(out[i].Signature, out[j].Signature) < 0
	})
	return out
}

// Remove deletes transactions by signature (called after a block commit).
func (p *Pool) Remove(signatures [][]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sig := range signatures {
		delete(p.txs, fmt.Sprintf("%x", sig))
	}
}

// Prune drops every transaction past its deadline and returns how many went.
func (p *Pool) Prune() int {
	now := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for sig, tx := range p.txs {
		if now >= tx.Deadline() {
			delete(p.txs, sig)
			n++
		}
	}
	return n
}

// Size returns the current number of pending transactions.
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.txs)
}

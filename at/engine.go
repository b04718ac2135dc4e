// Package at defines the contract between block processing and the external
// automated-transaction VM.
package at

import (
	"context"
	"encoding/binary"

	"github.com/shopspring/decimal"
	"github.com/tolelom/qorachain/core"
	"github.com/tolelom/qorachain/crypto"
)

// Payment is one transfer an AT asked for during execution.
type Payment struct {
	Recipient string
	AssetID   int64
	Amount    decimal.Decimal
	Message   []byte
}

// Result is the outcome of one execution. Fee is charged to the AT's native
// coin balance and credited to the block generator.
type Result struct {
	State      []byte
	Payments   []Payment
	Fee        decimal.Decimal
	IsFinished bool
}

// Engine runs an AT against its current state blob. Implementations must be
// deterministic: every node runs the same AT at the same height.
type Engine interface {
	Execute(ctx context.Context, at *core.ATData, state []byte, blockTimestamp int64) (*Result, error)
}

// NopEngine leaves every AT untouched and charges nothing.
type NopEngine struct{}

func (NopEngine) Execute(_ context.Context, _ *core.ATData, state []byte, _ int64) (*Result, error) {
	return &Result{State: state, Fee: decimal.Zero}, nil
}

// StateHash is the digest stored alongside a state snapshot.
func StateHash(state []byte) []byte {
	return crypto.Digest(state)
}

// TransactionSignature derives the deterministic 64-byte signature that
// identifies the sequence-th AT-generated transaction of a block.
func TransactionSignature(atAddress string, height, sequence int) []byte {
	buf := make([]byte, 0, len(atAddress)+16)
	buf = append(buf, atAddress...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(height))
	buf = binary.BigEndian.AppendUint64(buf, uint64(sequence))
	first := crypto.Digest(buf)
	return append(first, crypto.Digest(first)...)
}

package core

import (
	"encoding/hex"

	"github.com/shopspring/decimal"
)

// BlockSignatureLength is the size of Signature: generator signature followed
// by transactions signature.
const BlockSignatureLength = 128

// BlockData is the persisted block row. Height is zero until the block has
// been applied and is never part of the signed payload.
type BlockData struct {
	Version               int             `json:"version"`
	Reference             []byte          `json:"reference"`
	Timestamp             int64           `json:"timestamp"`
	GeneratingBalance     decimal.Decimal `json:"generating_balance"`
	GeneratorPublicKey    []byte          `json:"generator"`
	GeneratorSignature    []byte          `json:"generator_signature"`
	TransactionsSignature []byte          `json:"transactions_signature"`
	TransactionCount      int             `json:"transaction_count"`
	TotalFees             decimal.Decimal `json:"total_fees"`
	ATCount               int             `json:"at_count"`
	ATFees                decimal.Decimal `json:"at_fees"`
	Height                int             `json:"height"`
}

// Signature returns GeneratorSignature ‖ TransactionsSignature.
func (b *BlockData) Signature() []byte {
	sig := make([]byte, 0, len(b.GeneratorSignature)+len(b.TransactionsSignature))
	sig = append(sig, b.GeneratorSignature...)
	return append(sig, b.TransactionsSignature...)
}

// SignatureHex is the hex form of Signature, used as a storage key and in logs.
func (b *BlockData) SignatureHex() string {
	return hex.EncodeToString(b.Signature())
}

// BlockTransactionData links a transaction to its block position.
type BlockTransactionData struct {
	BlockSignature       []byte `json:"block_signature"`
	Sequence             int    `json:"sequence"`
	TransactionSignature []byte `json:"transaction_signature"`
}

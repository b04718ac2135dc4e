package block

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/tolelom/qorachain/consensus"
	"github.com/tolelom/qorachain/core"
	"github.com/tolelom/qorachain/crypto"
	"github.com/tolelom/qorachain/transaction"
)

// Allocation is one genesis credit of native coin.
type Allocation struct {
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
}

// Genesis builds the deterministic first block. It has no generator key, so
// its signatures are digests rather than ed25519 signatures; every node
// derives the same block from the same params and allocations. Allocations
// are ordered by recipient then amount.
func Genesis(params consensus.Params, allocs []Allocation) (*Block, error) {
	sorted := append([]Allocation(nil), allocs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Recipient != sorted[j].Recipient {
			return sorted[i].Recipient < sorted[j].Recipient
		}
		return sorted[i].Amount.LessThan(sorted[j].Amount)
	})

	txs := make([]*core.TransactionData, 0, len(sorted))
	for i, alloc := range sorted {
		if !crypto.IsValidAddress(alloc.Recipient) {
			return nil, fmt.Errorf("genesis allocation %d: invalid address %q", i, alloc.Recipient)
		}
		tx, err := core.NewTransaction(core.TxGenesis, nil, params.GenesisTimestamp, nil, decimal.Zero,
			core.GenesisPayload{Recipient: alloc.Recipient, Amount: alloc.Amount})
		if err != nil {
			return nil, err
		}
		seed := binary.BigEndian.AppendUint32(tx.SigningBytes(), uint32(i))
		tx.Signature = digest64(seed)
		txs = append(txs, tx)
	}

	data := &core.BlockData{
		Version:            1,
		Reference:          make([]byte, crypto.SignatureLength),
		Timestamp:          params.GenesisTimestamp,
		GeneratingBalance:  params.GenesisGeneratingBalance,
		GeneratorPublicKey: make([]byte, crypto.PublicKeyLength),
		TotalFees:          decimal.Zero,
		ATFees:             decimal.Zero,
	}
	b := &Block{params: params, data: data, seen: make(map[string]bool)}
	for _, tx := range txs {
		decoded, err := transaction.FromData(tx)
		if err != nil {
			return nil, err
		}
		b.append(decoded)
	}
	data.GeneratorSignature = digest64(b.generatorSigningBytes())
	data.TransactionsSignature = digest64(b.transactionsSigningBytes())
	return b, nil
}

// IsGenesis reports whether the block is a first block: it references the
// all-zero signature.
func (b *Block) IsGenesis() bool {
	return len(b.data.Reference) == crypto.SignatureLength &&
		bytes.Equal(b.data.Reference, make([]byte, crypto.SignatureLength))
}

func digest64(data []byte) []byte {
	first := crypto.Digest(data)
	return append(first, crypto.Digest(first)...)
}

package consensus

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"github.com/tolelom/qorachain/core"
)

// maxHash is 2^256, one past the largest SHA-256 value.
var maxHash = new(big.Int).Lsh(big.NewInt(1), 256)

func heightHash(height int, data []byte) *big.Int {
	buf := make([]byte, 8, 8+len(data))
	binary.BigEndian.PutUint64(buf, uint64(height))
	sum := sha256.Sum256(append(buf, data...))
	return new(big.Int).SetBytes(sum[:])
}

// CalcKeyDistance measures how far publicKey lands from the ideal point chosen
// by the parent block: |SHA256(h ‖ parentSig) − SHA256(h+1 ‖ publicKey)| as
// unsigned 256-bit integers, h being the parent height.
func CalcKeyDistance(parentHeight int, parentSignature, publicKey []byte) *big.Int {
	ideal := heightHash(parentHeight, parentSignature)
	perturbed := heightHash(parentHeight+1, publicKey)
	return new(big.Int).Abs(ideal.Sub(ideal, perturbed))
}

// CalcMinTimestamp is the earliest timestamp publicKey may stamp on a child of
// parent: MinBlockTime after the parent plus the key's distance scaled onto
// the window up to MaxBlockTime.
func CalcMinTimestamp(p Params, parent *core.BlockData, publicKey []byte) int64 {
	distance := CalcKeyDistance(parent.Height, parent.Signature(), publicKey)
	window := big.NewInt(p.MaxBlockTime - p.MinBlockTime)
	offset := distance.Mul(distance, window)
	offset.Quo(offset, maxHash)
	return parent.Timestamp + p.MinBlockTime + offset.Int64()
}

// BlockTimeFor is the expected spacing in milliseconds for a generating
// balance: the maximum block time at MinBalance shrinking linearly to the
// minimum at MaxBalance.
func BlockTimeFor(p Params, generatingBalance decimal.Decimal) decimal.Decimal {
	span := p.MaxBalance.Sub(p.MinBalance)
	share, _ := generatingBalance.Sub(p.MinBalance).QuoRem(span, core.AmountScale)
	window := decimal.NewFromInt(p.MaxBlockTime - p.MinBlockTime)
	return decimal.NewFromInt(p.MaxBlockTime).Sub(core.RoundDown(window.Mul(share)))
}

// NextGeneratingBalance returns the generating balance a child of parent must
// carry. It only changes on retarget heights, where the parent's balance is
// scaled by expected over actual spacing across the last interval and clamped
// to [MinBalance, MaxBalance]. A nil parent yields the genesis balance.
func NextGeneratingBalance(p Params, blocks core.BlockRepository, parent *core.BlockData) (decimal.Decimal, error) {
	if parent == nil {
		return p.GenesisGeneratingBalance, nil
	}
	if p.RetargetInterval <= 1 || (parent.Height+1)%p.RetargetInterval != 0 {
		return parent.GeneratingBalance, nil
	}

	firstHeight := parent.Height - p.RetargetInterval + 1
	if firstHeight < 1 {
		firstHeight = 1
	}
	intervals := parent.Height - firstHeight
	if intervals <= 0 {
		return parent.GeneratingBalance, nil
	}
	first, err := blocks.FromHeight(firstHeight)
	if err != nil {
		return decimal.Zero, fmt.Errorf("retarget block %d: %w", firstHeight, err)
	}

	actual := parent.Timestamp - first.Timestamp
	if actual < 1 {
		actual = 1
	}
	expected := BlockTimeFor(p, parent.GeneratingBalance).Mul(decimal.NewFromInt(int64(intervals)))
	multiplier, _ := expected.QuoRem(decimal.NewFromInt(actual), core.AmountScale)

	next := core.RoundDown(parent.GeneratingBalance.Mul(multiplier))
	if next.Cmp(p.MinBalance) < 0 {
		next = p.MinBalance
	}
	if next.Cmp(p.MaxBalance) > 0 {
		next = p.MaxBalance
	}
	return next, nil
}

// Package consensus holds the chain's consensus schedule: block versions,
// the distance-based forging timing and the generating balance retarget.
package consensus

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tolelom/qorachain/core"
)

// Params is the consensus schedule every node must agree on. Times are unix
// milliseconds or millisecond durations.
type Params struct {
	MinBlockTime     int64 `json:"min_block_time_ms"`
	MaxBlockTime     int64 `json:"max_block_time_ms"`
	MaxFutureDrift   int64 `json:"max_future_drift_ms"`
	MaxBlockBytes    int   `json:"max_block_bytes"`
	RetargetInterval int   `json:"retarget_interval"`
	// MaxATsPerBlock caps how many ATs run in one block. MaxATBytes caps the
	// total size of the states they leave behind.
	MaxATsPerBlock int `json:"max_ats_per_block"`
	MaxATBytes     int `json:"max_at_bytes"`

	MinBalance        decimal.Decimal `json:"min_generating_balance"`
	MaxBalance        decimal.Decimal `json:"max_generating_balance"`
	MinForgingBalance decimal.Decimal `json:"min_forging_balance"`

	GenesisTimestamp         int64           `json:"genesis_timestamp"`
	GenesisGeneratingBalance decimal.Decimal `json:"genesis_generating_balance"`
	ATActivationTimestamp    int64           `json:"at_activation_timestamp"`
	NativeAssetName          string          `json:"native_asset_name"`
}

// DefaultParams returns the main network schedule.
func DefaultParams() Params {
	return Params{
		MinBlockTime:             int64(60 * time.Second / time.Millisecond),
		MaxBlockTime:             int64(300 * time.Second / time.Millisecond),
		MaxFutureDrift:           int64(15 * time.Second / time.Millisecond),
		MaxBlockBytes:            1 << 20,
		RetargetInterval:         10,
		MaxATsPerBlock:           100,
		MaxATBytes:               256 << 10,
		MinBalance:               core.MustAmount("1"),
		MaxBalance:               core.MustAmount("10000000000"),
		MinForgingBalance:        core.MustAmount("1"),
		GenesisTimestamp:         1400247274336,
		GenesisGeneratingBalance: core.MustAmount("10000000"),
		ATActivationTimestamp:    1439902800000,
		NativeAssetName:          "QORA",
	}
}

// VersionAt returns the block version required for a block stamped timestamp.
func (p Params) VersionAt(timestamp int64) int {
	if timestamp < p.ATActivationTimestamp {
		return 1
	}
	return 2
}

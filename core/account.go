package core

import "github.com/shopspring/decimal"

// AccountData is the persisted part of an account other than its balances.
// LastReference is the signature of the most recent transaction the account
// issued (or, for a fresh account, the first native-coin payment it received).
type AccountData struct {
	Address       string `json:"address"`
	PublicKey     []byte `json:"public_key,omitempty"`
	LastReference []byte `json:"last_reference,omitempty"`
}

// AccountBalanceData is one (address, assetId) balance row.
type AccountBalanceData struct {
	Address string          `json:"address"`
	AssetID int64           `json:"asset_id"`
	Balance decimal.Decimal `json:"balance"`
}

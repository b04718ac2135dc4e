package core

import "github.com/shopspring/decimal"

// ATData is a deployed automated transaction. State is its current opaque
// state blob as last produced by the AT engine.
type ATData struct {
	ATAddress         string `json:"at_address"`
	CreatorPublicKey  []byte `json:"creator"`
	CreationTimestamp int64  `json:"creation_timestamp"`
	Name              string `json:"name"`
	Description       string `json:"description"`
	AssetID           int64  `json:"asset_id"`
	CreationBytes     []byte `json:"creation_bytes"`
	State             []byte `json:"state"`
	IsFinished        bool   `json:"is_finished"`
}

// ATStateData snapshots an AT after it ran in the block at Height.
type ATStateData struct {
	ATAddress  string          `json:"at_address"`
	Height     int             `json:"height"`
	State      []byte          `json:"state"`
	StateHash  []byte          `json:"state_hash"`
	Fees       decimal.Decimal `json:"fees"`
	IsFinished bool            `json:"is_finished"`
}

package core

import "github.com/shopspring/decimal"

// AssetData describes a user-issued asset, or the native coin for id 0.
// Reference is the signature of the transaction that issued it.
type AssetData struct {
	AssetID     int64           `json:"asset_id"`
	Owner       string          `json:"owner"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	IsDivisible bool            `json:"is_divisible"`
	Reference   []byte          `json:"reference"`
}

// OrderData is an open, closed or fulfilled asset order. Price is in units of
// the want asset per unit of the have asset. OrderID is the signature of the
// transaction that created the order.
type OrderData struct {
	OrderID          []byte          `json:"order_id"`
	CreatorPublicKey []byte          `json:"creator"`
	HaveAssetID      int64           `json:"have_asset_id"`
	WantAssetID      int64           `json:"want_asset_id"`
	Amount           decimal.Decimal `json:"amount"`
	Fulfilled        decimal.Decimal `json:"fulfilled"`
	Price            decimal.Decimal `json:"price"`
	Timestamp        int64           `json:"timestamp"`
	IsClosed         bool            `json:"is_closed"`
	IsFulfilled      bool            `json:"is_fulfilled"`
}

// AmountLeft is the unfilled part of the order in have-asset units.
func (o *OrderData) AmountLeft() decimal.Decimal {
	return o.Amount.Sub(o.Fulfilled)
}

// IsOpen reports whether the order can still be matched.
func (o *OrderData) IsOpen() bool {
	return !o.IsClosed && !o.IsFulfilled
}

// Copy returns an independent snapshot of o.
func (o *OrderData) Copy() *OrderData {
	cp := *o
	cp.OrderID = append([]byte(nil), o.OrderID...)
	cp.CreatorPublicKey = append([]byte(nil), o.CreatorPublicKey...)
	return &cp
}

// TradeData is an immutable settlement between two orders.
// InitiatorAmount is what the initiating order's creator receives (in its want
// asset); TargetAmount is what the target order's creator receives.
type TradeData struct {
	Initiator       []byte          `json:"initiator"`
	Target          []byte          `json:"target"`
	InitiatorAmount decimal.Decimal `json:"initiator_amount"`
	TargetAmount    decimal.Decimal `json:"target_amount"`
	Timestamp       int64           `json:"timestamp"`
}

// Package exchange implements the on-chain asset order book: escrow-by-debit
// orders matched at price/time priority into immutable trades.
package exchange

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tolelom/qorachain/core"
	"github.com/tolelom/qorachain/ledger"
)

var one = decimal.NewFromInt(1)

// IsFulfilled reports whether the order's fulfilled amount has reached its amount.
func IsFulfilled(order *core.OrderData) bool {
	return order.Fulfilled.Cmp(order.Amount) >= 0
}

// Order processes, orphans, cancels and reopens one order.
type Order struct {
	repo core.Repository
	data *core.OrderData
}

// NewOrder wraps data for use against repo.
func NewOrder(repo core.Repository, data *core.OrderData) *Order {
	return &Order{repo: repo, data: data}
}

// Data returns the order as last seen by this Order.
func (o *Order) Data() *core.OrderData { return o.data }

// Process escrows the order amount by debiting the creator, stores the order,
// then matches it against the inverse book best price first. Trades execute
// at the target order's price. It returns the trades it created.
func (o *Order) Process() ([]*core.TradeData, error) {
	assetRepo := o.repo.AssetRepository()

	haveAsset, err := assetRepo.FromAssetID(o.data.HaveAssetID)
	if err != nil {
		return nil, fmt.Errorf("have asset %d: %w", o.data.HaveAssetID, err)
	}
	wantAsset, err := assetRepo.FromAssetID(o.data.WantAssetID)
	if err != nil {
		return nil, fmt.Errorf("want asset %d: %w", o.data.WantAssetID, err)
	}

	creator := ledger.NewPublicKeyAccount(o.repo, o.data.CreatorPublicKey)
	if err := creator.Debit(o.data.HaveAssetID, o.data.Amount); err != nil {
		return nil, err
	}
	if err := assetRepo.SaveOrder(o.data); err != nil {
		return nil, err
	}

	// Inverse pair, lowest price first.
	candidates, err := assetRepo.GetOpenOrders(o.data.WantAssetID, o.data.HaveAssetID)
	if err != nil {
		return nil, err
	}

	ourPrice := o.data.Price
	var trades []*core.TradeData
	for _, theirs := range candidates {
		// Rounded down so their buying price is never better than advertised.
		theirBuyingPrice, _ := one.QuoRem(theirs.Price, core.AmountScale)

		// Sorted list: every later candidate is at least as bad.
		if theirBuyingPrice.Cmp(ourPrice) < 0 {
			break
		}

		ourAmountLeft := core.RoundDown(o.data.AmountLeft().Mul(theirBuyingPrice))
		matched := decimal.Min(ourAmountLeft, theirs.AmountLeft())

		increment := CalculateAmountGranularity(haveAsset, wantAsset, theirs.Price)
		matched = matched.Sub(matched.Mod(increment))
		if matched.Sign() <= 0 {
			continue
		}

		trade := &core.TradeData{
			Initiator:       o.data.OrderID,
			Target:          theirs.OrderID,
			InitiatorAmount: matched,
			TargetAmount:    core.RoundDown(matched.Mul(theirs.Price)),
			Timestamp:       o.data.Timestamp,
		}
		if err := NewTrade(o.repo, trade).Process(); err != nil {
			return nil, fmt.Errorf("trade against %x: %w", theirs.OrderID, err)
		}
		trades = append(trades, trade)

		// Trade.Process advanced our stored fulfilment; pick it up.
		if o.data, err = assetRepo.FromOrderID(o.data.OrderID); err != nil {
			return nil, err
		}
		if o.data.AmountLeft().Sign() <= 0 {
			break
		}
	}
	return trades, nil
}

// Orphan reverses Process: trades this order initiated are orphaned newest
// first, the order row is deleted and the escrowed amount returned.
func (o *Order) Orphan() error {
	assetRepo := o.repo.AssetRepository()
	trades, err := assetRepo.GetOrdersTrades(o.data.OrderID)
	if err != nil {
		return err
	}
	for i := len(trades) - 1; i >= 0; i-- {
		if !bytes.Equal(trades[i].Initiator, o.data.OrderID) {
			continue
		}
		if err := NewTrade(o.repo, trades[i]).Orphan(); err != nil {
			return fmt.Errorf("orphan trade against %x: %w", trades[i].Target, err)
		}
	}
	if err := assetRepo.DeleteOrder(o.data.OrderID); err != nil {
		return err
	}
	return ledger.NewPublicKeyAccount(o.repo, o.data.CreatorPublicKey).
		Credit(o.data.HaveAssetID, o.data.Amount)
}

// Cancel closes the order. Fulfilment and price are kept for orphaning.
func (o *Order) Cancel() error {
	return o.setClosed(true)
}

// Reopen undoes Cancel.
func (o *Order) Reopen() error {
	return o.setClosed(false)
}

func (o *Order) setClosed(closed bool) error {
	assetRepo := o.repo.AssetRepository()
	current, err := assetRepo.FromOrderID(o.data.OrderID)
	if err != nil {
		return err
	}
	current.IsClosed = closed
	o.data = current
	return assetRepo.SaveOrder(current)
}

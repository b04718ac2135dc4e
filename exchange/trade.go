package exchange

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tolelom/qorachain/core"
	"github.com/tolelom/qorachain/ledger"
)

// Trade settles one match between an initiating and a target order.
type Trade struct {
	repo core.Repository
	data *core.TradeData
}

// NewTrade wraps data for processing or orphaning against repo.
func NewTrade(repo core.Repository, data *core.TradeData) *Trade {
	return &Trade{repo: repo, data: data}
}

// Data returns the trade row.
func (t *Trade) Data() *core.TradeData { return t.data }

// Process stores the trade, advances both orders' fulfilment and pays both
// creators: the initiator receives InitiatorAmount of its want asset, the
// target receives TargetAmount of its want asset.
func (t *Trade) Process() error {
	assetRepo := t.repo.AssetRepository()
	if err := assetRepo.SaveTrade(t.data); err != nil {
		return err
	}

	initiating, err := t.adjustOrder(t.data.Initiator, t.data.TargetAmount)
	if err != nil {
		return err
	}
	target, err := t.adjustOrder(t.data.Target, t.data.InitiatorAmount)
	if err != nil {
		return err
	}

	if err := ledger.NewPublicKeyAccount(t.repo, initiating.CreatorPublicKey).
		Credit(initiating.WantAssetID, t.data.InitiatorAmount); err != nil {
		return err
	}
	return ledger.NewPublicKeyAccount(t.repo, target.CreatorPublicKey).
		Credit(target.WantAssetID, t.data.TargetAmount)
}

// Orphan reverses Process exactly and deletes the trade row.
func (t *Trade) Orphan() error {
	initiating, err := t.adjustOrder(t.data.Initiator, t.data.TargetAmount.Neg())
	if err != nil {
		return err
	}
	target, err := t.adjustOrder(t.data.Target, t.data.InitiatorAmount.Neg())
	if err != nil {
		return err
	}

	if err := ledger.NewPublicKeyAccount(t.repo, initiating.CreatorPublicKey).
		Debit(initiating.WantAssetID, t.data.InitiatorAmount); err != nil {
		return err
	}
	if err := ledger.NewPublicKeyAccount(t.repo, target.CreatorPublicKey).
		Debit(target.WantAssetID, t.data.TargetAmount); err != nil {
		return err
	}
	return t.repo.AssetRepository().DeleteTrade(t.data)
}

// adjustOrder adds delta to the order's fulfilled amount and recomputes its
// fulfilled flag.
func (t *Trade) adjustOrder(orderID []byte, delta decimal.Decimal) (*core.OrderData, error) {
	assetRepo := t.repo.AssetRepository()
	order, err := assetRepo.FromOrderID(orderID)
	if err != nil {
		return nil, fmt.Errorf("load order %x: %w", orderID, err)
	}
	order.Fulfilled = order.Fulfilled.Add(delta)
	order.IsFulfilled = IsFulfilled(order)
	if err := assetRepo.SaveOrder(order); err != nil {
		return nil, err
	}
	return order, nil
}

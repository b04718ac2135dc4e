package transaction

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tolelom/qorachain/core"
	"github.com/tolelom/qorachain/exchange"
	"github.com/tolelom/qorachain/ledger"
)

func init() {
	Register(core.TxCreateOrder, newCreateOrder)
	Register(core.TxCancelOrder, newCancelOrder)
}

// CreateOrder places an order whose id is the transaction signature and
// matches it against the book.
type CreateOrder struct {
	base
	payload *core.CreateOrderPayload
}

func newCreateOrder(data *core.TransactionData) (Transaction, error) {
	p, err := decode[core.CreateOrderPayload](data)
	if err != nil {
		return nil, err
	}
	return &CreateOrder{base: base{data: data}, payload: p}, nil
}

func (t *CreateOrder) IsValid(ctx *Context) (core.ValidationResult, error) {
	p := t.payload
	if p.HaveAssetID == p.WantAssetID {
		return core.HaveEqualsWant, nil
	}
	if p.Amount.Sign() <= 0 {
		return core.NegativeAmount, nil
	}
	if p.Price.Sign() <= 0 {
		return core.NegativePrice, nil
	}

	assetRepo := ctx.Repo.AssetRepository()
	have, err := assetRepo.FromAssetID(p.HaveAssetID)
	if errors.Is(err, core.ErrNotFound) {
		return core.AssetDoesNotExist, nil
	}
	if err != nil {
		return core.OK, err
	}
	if _, err := assetRepo.FromAssetID(p.WantAssetID); errors.Is(err, core.ErrNotFound) {
		return core.AssetDoesNotExist, nil
	} else if err != nil {
		return core.OK, err
	}

	if core.ExceedsScale(p.Amount) || core.ExceedsScale(p.Price) {
		return core.InvalidAmount, nil
	}
	if !have.IsDivisible && core.HasFraction(p.Amount) {
		return core.InvalidAmount, nil
	}
	return t.canAfford(ctx.Repo, p.HaveAssetID, p.Amount)
}

// Order returns the order row this transaction creates.
func (t *CreateOrder) Order() *core.OrderData {
	return &core.OrderData{
		OrderID:          t.data.Signature,
		CreatorPublicKey: t.data.CreatorPublicKey,
		HaveAssetID:      t.payload.HaveAssetID,
		WantAssetID:      t.payload.WantAssetID,
		Amount:           t.payload.Amount,
		Fulfilled:        decimal.Zero,
		Price:            t.payload.Price,
		Timestamp:        t.data.Timestamp,
	}
}

func (t *CreateOrder) Process(ctx *Context) error {
	if err := t.processCreator(ctx.Repo); err != nil {
		return err
	}
	if _, err := exchange.NewOrder(ctx.Repo, t.Order()).Process(); err != nil {
		return fmt.Errorf("match order %s: %w", t.data.SignatureHex(), err)
	}
	return nil
}

func (t *CreateOrder) Orphan(ctx *Context) error {
	order, err := ctx.Repo.AssetRepository().FromOrderID(t.data.Signature)
	if err != nil {
		return fmt.Errorf("order %s: %w", t.data.SignatureHex(), err)
	}
	if err := exchange.NewOrder(ctx.Repo, order).Orphan(); err != nil {
		return err
	}
	return t.orphanCreator(ctx.Repo)
}

func (t *CreateOrder) InvolvedAddresses() []string {
	return t.involved()
}

// CancelOrder closes an open order and refunds its unfilled remainder.
type CancelOrder struct {
	base
	payload *core.CancelOrderPayload
}

func newCancelOrder(data *core.TransactionData) (Transaction, error) {
	p, err := decode[core.CancelOrderPayload](data)
	if err != nil {
		return nil, err
	}
	return &CancelOrder{base: base{data: data}, payload: p}, nil
}

func (t *CancelOrder) IsValid(ctx *Context) (core.ValidationResult, error) {
	order, err := ctx.Repo.AssetRepository().FromOrderID(t.payload.OrderID)
	if errors.Is(err, core.ErrNotFound) {
		return core.OrderDoesNotExist, nil
	}
	if err != nil {
		return core.OK, err
	}
	if !bytes.Equal(order.CreatorPublicKey, t.data.CreatorPublicKey) {
		return core.InvalidOrderCreator, nil
	}
	if !order.IsOpen() {
		return core.OrderAlreadyClosed, nil
	}
	return t.canAfford(ctx.Repo, core.NativeAssetID, decimal.Zero)
}

func (t *CancelOrder) Process(ctx *Context) error {
	if err := t.processCreator(ctx.Repo); err != nil {
		return err
	}
	order, err := ctx.Repo.AssetRepository().FromOrderID(t.payload.OrderID)
	if err != nil {
		return err
	}
	if err := exchange.NewOrder(ctx.Repo, order).Cancel(); err != nil {
		return err
	}
	return ledger.NewPublicKeyAccount(ctx.Repo, order.CreatorPublicKey).Credit(order.HaveAssetID, order.AmountLeft())
}

func (t *CancelOrder) Orphan(ctx *Context) error {
	order, err := ctx.Repo.AssetRepository().FromOrderID(t.payload.OrderID)
	if err != nil {
		return err
	}
	if err := ledger.NewPublicKeyAccount(ctx.Repo, order.CreatorPublicKey).Debit(order.HaveAssetID, order.AmountLeft()); err != nil {
		return err
	}
	if err := exchange.NewOrder(ctx.Repo, order).Reopen(); err != nil {
		return err
	}
	return t.orphanCreator(ctx.Repo)
}

func (t *CancelOrder) InvolvedAddresses() []string {
	return t.involved()
}

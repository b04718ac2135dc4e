package transaction

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tolelom/qorachain/core"
	"github.com/tolelom/qorachain/ledger"
)

func init() {
	Register(core.TxIssueAsset, newIssueAsset)
}

// IssueAsset creates an asset with the next sequential id and credits its
// whole quantity to the owner.
type IssueAsset struct {
	base
	payload *core.IssueAssetPayload
}

func newIssueAsset(data *core.TransactionData) (Transaction, error) {
	p, err := decode[core.IssueAssetPayload](data)
	if err != nil {
		return nil, err
	}
	return &IssueAsset{base: base{data: data}, payload: p}, nil
}

func (t *IssueAsset) IsValid(ctx *Context) (core.ValidationResult, error) {
	p := t.payload
	if !validAddress(p.Owner) {
		return core.InvalidAddress, nil
	}
	if len(p.Name) < 1 || len(p.Name) > MaxNameSize {
		return core.InvalidNameLength, nil
	}
	if len(p.Description) > MaxDescriptionSize {
		return core.InvalidDescriptionLength, nil
	}
	if p.Quantity.Sign() <= 0 || p.Quantity.Cmp(MaxQuantity) > 0 || core.ExceedsScale(p.Quantity) {
		return core.InvalidQuantity, nil
	}
	if !p.IsDivisible && core.HasFraction(p.Quantity) {
		return core.InvalidQuantity, nil
	}
	exists, err := ctx.Repo.AssetRepository().AssetNameExists(p.Name)
	if err != nil {
		return core.OK, err
	}
	if exists {
		return core.AssetAlreadyExists, nil
	}
	return t.canAfford(ctx.Repo, core.NativeAssetID, decimal.Zero)
}

func (t *IssueAsset) Process(ctx *Context) error {
	if err := t.processCreator(ctx.Repo); err != nil {
		return err
	}
	assetRepo := ctx.Repo.AssetRepository()
	id, err := assetRepo.NextAssetID()
	if err != nil {
		return err
	}
	asset := &core.AssetData{
		AssetID:     id,
		Owner:       t.payload.Owner,
		Name:        t.payload.Name,
		Description: t.payload.Description,
		Quantity:    t.payload.Quantity,
		IsDivisible: t.payload.IsDivisible,
		Reference:   t.data.Signature,
	}
	if err := assetRepo.SaveAsset(asset); err != nil {
		return err
	}
	return ledger.NewAccount(ctx.Repo, t.payload.Owner).Credit(id, t.payload.Quantity)
}

func (t *IssueAsset) Orphan(ctx *Context) error {
	assetRepo := ctx.Repo.AssetRepository()
	asset, err := assetRepo.FromAssetReference(t.data.Signature)
	if err != nil {
		return fmt.Errorf("asset issued by %s: %w", t.data.SignatureHex(), err)
	}
	if err := ledger.NewAccount(ctx.Repo, t.payload.Owner).Debit(asset.AssetID, t.payload.Quantity); err != nil {
		return err
	}
	if err := assetRepo.DeleteAsset(asset.AssetID); err != nil {
		return err
	}
	return t.orphanCreator(ctx.Repo)
}

func (t *IssueAsset) InvolvedAddresses() []string {
	return t.involved(t.payload.Owner)
}

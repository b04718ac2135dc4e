package transaction

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/tolelom/qorachain/core"
	"github.com/tolelom/qorachain/crypto"
	"github.com/tolelom/qorachain/ledger"
)

func init() {
	Register(core.TxDeployAT, newDeployAT)
	Register(core.TxAT, newAT)
}

// DeployAT registers an AT at the address derived from the transaction
// signature and funds it from the creator.
type DeployAT struct {
	base
	payload *core.DeployATPayload
}

func newDeployAT(data *core.TransactionData) (Transaction, error) {
	p, err := decode[core.DeployATPayload](data)
	if err != nil {
		return nil, err
	}
	return &DeployAT{base: base{data: data}, payload: p}, nil
}

// ATAddress is the address the deployed AT receives.
func (t *DeployAT) ATAddress() string {
	return crypto.ToATAddress(t.data.Signature)
}

func (t *DeployAT) IsValid(ctx *Context) (core.ValidationResult, error) {
	p := t.payload
	if len(p.Name) < 1 || len(p.Name) > MaxNameSize {
		return core.InvalidNameLength, nil
	}
	if len(p.Description) > MaxDescriptionSize {
		return core.InvalidDescriptionLength, nil
	}
	if len(p.CreationBytes) < 1 || len(p.CreationBytes) > MaxCreationBytesSize {
		return core.InvalidDataLength, nil
	}
	if p.Amount.Sign() <= 0 {
		return core.NegativeAmount, nil
	}

	asset, err := ctx.Repo.AssetRepository().FromAssetID(p.AssetID)
	if errors.Is(err, core.ErrNotFound) {
		return core.AssetDoesNotExist, nil
	}
	if err != nil {
		return core.OK, err
	}
	if core.ExceedsScale(p.Amount) || (!asset.IsDivisible && core.HasFraction(p.Amount)) {
		return core.InvalidAmount, nil
	}

	if _, err := ctx.Repo.ATRepository().FromATAddress(t.ATAddress()); err == nil {
		return core.ATAlreadyExists, nil
	} else if !errors.Is(err, core.ErrNotFound) {
		return core.OK, err
	}
	return t.canAfford(ctx.Repo, p.AssetID, p.Amount)
}

func (t *DeployAT) Process(ctx *Context) error {
	if err := t.processCreator(ctx.Repo); err != nil {
		return err
	}
	p := t.payload
	at := &core.ATData{
		ATAddress:         t.ATAddress(),
		CreatorPublicKey:  t.data.CreatorPublicKey,
		CreationTimestamp: t.data.Timestamp,
		Name:              p.Name,
		Description:       p.Description,
		AssetID:           p.AssetID,
		CreationBytes:     p.CreationBytes,
		State:             p.CreationBytes,
	}
	if err := ctx.Repo.ATRepository().Save(at); err != nil {
		return err
	}

	atAccount := ledger.NewAccount(ctx.Repo, at.ATAddress)
	if err := t.creator(ctx.Repo).Debit(p.AssetID, p.Amount); err != nil {
		return err
	}
	if err := atAccount.Credit(p.AssetID, p.Amount); err != nil {
		return err
	}
	return atAccount.SetLastReference(t.data.Signature)
}

func (t *DeployAT) Orphan(ctx *Context) error {
	p := t.payload
	atAccount := ledger.NewAccount(ctx.Repo, t.ATAddress())
	if err := atAccount.SetLastReference(nil); err != nil {
		return err
	}
	if err := atAccount.Debit(p.AssetID, p.Amount); err != nil {
		return err
	}
	if err := t.creator(ctx.Repo).Credit(p.AssetID, p.Amount); err != nil {
		return err
	}
	if err := ctx.Repo.ATRepository().Delete(t.ATAddress()); err != nil {
		return err
	}
	return t.orphanCreator(ctx.Repo)
}

func (t *DeployAT) InvolvedAddresses() []string {
	return t.involved(t.ATAddress())
}

// AT is a payment generated by an AT during block processing. It has no
// creator key and no fee; its reference chains the AT account's own history.
type AT struct {
	base
	payload *core.ATPayload
}

func newAT(data *core.TransactionData) (Transaction, error) {
	p, err := decode[core.ATPayload](data)
	if err != nil {
		return nil, err
	}
	return &AT{base: base{data: data}, payload: p}, nil
}

func (t *AT) IsValid(ctx *Context) (core.ValidationResult, error) {
	p := t.payload
	if p.Amount.Sign() < 0 {
		return core.NegativeAmount, nil
	}
	payment := core.PaymentData{Recipient: p.Recipient, AssetID: p.AssetID, Amount: p.Amount}
	if result, err := ledger.IsValidRecipient(ctx.Repo, payment); err != nil || result != core.OK {
		return result, err
	}
	bal, err := ledger.NewAccount(ctx.Repo, p.ATAddress).ConfirmedBalance(p.AssetID)
	if err != nil {
		return core.OK, err
	}
	if bal.Cmp(p.Amount) < 0 {
		return core.NoBalance, nil
	}
	return core.OK, nil
}

func (t *AT) Process(ctx *Context) error {
	p := t.payload
	atAccount := ledger.NewAccount(ctx.Repo, p.ATAddress)
	recipient := ledger.NewAccount(ctx.Repo, p.Recipient)
	if err := atAccount.Debit(p.AssetID, p.Amount); err != nil {
		return err
	}
	if err := atAccount.SetLastReference(t.data.Signature); err != nil {
		return err
	}
	if err := recipient.Credit(p.AssetID, p.Amount); err != nil {
		return err
	}
	if p.AssetID != core.NativeAssetID {
		return nil
	}
	ref, err := recipient.LastReference()
	if err != nil || ref != nil {
		return err
	}
	return recipient.SetLastReference(t.data.Signature)
}

func (t *AT) Orphan(ctx *Context) error {
	p := t.payload
	atAccount := ledger.NewAccount(ctx.Repo, p.ATAddress)
	recipient := ledger.NewAccount(ctx.Repo, p.Recipient)
	if p.AssetID == core.NativeAssetID {
		ref, err := recipient.LastReference()
		if err != nil {
			return err
		}
		if bytes.Equal(ref, t.data.Signature) {
			if err := recipient.SetLastReference(nil); err != nil {
				return err
			}
		}
	}
	if err := recipient.Debit(p.AssetID, p.Amount); err != nil {
		return err
	}
	if err := atAccount.SetLastReference(t.data.Reference); err != nil {
		return fmt.Errorf("restore reference of %s: %w", p.ATAddress, err)
	}
	return atAccount.Credit(p.AssetID, p.Amount)
}

func (t *AT) InvolvedAddresses() []string {
	return t.involved(t.payload.ATAddress, t.payload.Recipient)
}

package transaction

import (
	"bytes"

	"github.com/shopspring/decimal"
	"github.com/tolelom/qorachain/core"
	"github.com/tolelom/qorachain/ledger"
)

func init() {
	Register(core.TxGenesis, newGenesis)
}

// Genesis mints native coin to one recipient in the first block.
type Genesis struct {
	base
	payload *core.GenesisPayload
}

func newGenesis(data *core.TransactionData) (Transaction, error) {
	p, err := decode[core.GenesisPayload](data)
	if err != nil {
		return nil, err
	}
	return &Genesis{base: base{data: data}, payload: p}, nil
}

// Amount is the minted quantity.
func (t *Genesis) Amount() decimal.Decimal { return t.payload.Amount }

func (t *Genesis) IsValid(_ *Context) (core.ValidationResult, error) {
	if !validAddress(t.payload.Recipient) {
		return core.InvalidAddress, nil
	}
	if t.payload.Amount.Sign() <= 0 {
		return core.NegativeAmount, nil
	}
	if core.ExceedsScale(t.payload.Amount) {
		return core.InvalidAmount, nil
	}
	return core.OK, nil
}

// Process credits the recipient and makes this transaction its reference.
func (t *Genesis) Process(ctx *Context) error {
	recipient := ledger.NewAccount(ctx.Repo, t.payload.Recipient)
	if err := recipient.Credit(core.NativeAssetID, t.payload.Amount); err != nil {
		return err
	}
	return recipient.SetLastReference(t.data.Signature)
}

func (t *Genesis) Orphan(ctx *Context) error {
	recipient := ledger.NewAccount(ctx.Repo, t.payload.Recipient)
	ref, err := recipient.LastReference()
	if err != nil {
		return err
	}
	if bytes.Equal(ref, t.data.Signature) {
		if err := recipient.SetLastReference(nil); err != nil {
			return err
		}
	}
	return recipient.Debit(core.NativeAssetID, t.payload.Amount)
}

func (t *Genesis) InvolvedAddresses() []string {
	return t.involved(t.payload.Recipient)
}

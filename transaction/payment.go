package transaction

import (
	"github.com/tolelom/qorachain/core"
	"github.com/tolelom/qorachain/ledger"
)

func init() {
	Register(core.TxPayment, newPayment)
	Register(core.TxMultiPayment, newMultiPayment)
	Register(core.TxTransferAsset, newTransferAsset)
}

// Payments is the shared implementation of the kinds that are nothing but a
// list of payments from the creator: payment, multi_payment and
// transfer_asset.
type Payments struct {
	base
	payments []core.PaymentData
	// countLimited kinds must carry between 1 and MaxPaymentsCount payments.
	countLimited bool
}

func newPayment(data *core.TransactionData) (Transaction, error) {
	p, err := decode[core.PaymentPayload](data)
	if err != nil {
		return nil, err
	}
	return &Payments{
		base:     base{data: data},
		payments: []core.PaymentData{{Recipient: p.Recipient, AssetID: core.NativeAssetID, Amount: p.Amount}},
	}, nil
}

func newMultiPayment(data *core.TransactionData) (Transaction, error) {
	p, err := decode[core.MultiPaymentPayload](data)
	if err != nil {
		return nil, err
	}
	return &Payments{base: base{data: data}, payments: p.Payments, countLimited: true}, nil
}

func newTransferAsset(data *core.TransactionData) (Transaction, error) {
	p, err := decode[core.TransferAssetPayload](data)
	if err != nil {
		return nil, err
	}
	return &Payments{
		base:     base{data: data},
		payments: []core.PaymentData{{Recipient: p.Recipient, AssetID: p.AssetID, Amount: p.Amount}},
	}, nil
}

// PaymentList returns the payments the transaction makes.
func (t *Payments) PaymentList() []core.PaymentData { return t.payments }

func (t *Payments) IsValid(ctx *Context) (core.ValidationResult, error) {
	if t.countLimited && (len(t.payments) < 1 || len(t.payments) > MaxPaymentsCount) {
		return core.InvalidPaymentsCount, nil
	}
	return ledger.IsValidPayments(ctx.Repo, t.data.CreatorPublicKey, t.payments, t.data.Fee, false)
}

func (t *Payments) Process(ctx *Context) error {
	if err := ledger.ProcessPayments(ctx.Repo, t.data.CreatorPublicKey, t.payments, t.data.Fee, t.data.Signature, false); err != nil {
		return err
	}
	return t.recordPublicKey(ctx.Repo)
}

func (t *Payments) Orphan(ctx *Context) error {
	if err := ledger.OrphanPayments(ctx.Repo, t.data.CreatorPublicKey, t.payments, t.data.Fee, t.data.Signature, t.data.Reference, false); err != nil {
		return err
	}
	return t.forgetPublicKey(ctx.Repo)
}

func (t *Payments) InvolvedAddresses() []string {
	recipients := make([]string, len(t.payments))
	for i, p := range t.payments {
		recipients[i] = p.Recipient
	}
	return t.involved(recipients...)
}

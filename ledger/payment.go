package ledger

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/tolelom/qorachain/core"
	"github.com/tolelom/qorachain/crypto"
)

// IsValidPayments checks a set of payments from senderPublicKey paying fee.
// Checks run in a fixed order and the first failure is returned:
// fee, then per payment amount sign, recipient address, finished AT,
// asset existence, AT asset match, divisibility, and finally the sender's
// balance against the per-asset totals (fee counted against the native coin).
func IsValidPayments(repo core.Repository, senderPublicKey []byte, payments []core.PaymentData, fee decimal.Decimal, allowZeroAmount bool) (core.ValidationResult, error) {
	if fee.Sign() <= 0 {
		return core.NegativeFee, nil
	}

	required := map[int64]decimal.Decimal{core.NativeAssetID: fee}
	for _, p := range payments {
		if p.Amount.Sign() < 0 {
			return core.NegativeAmount, nil
		}
		if !allowZeroAmount && p.Amount.Sign() == 0 {
			return core.NegativeAmount, nil
		}
		if result, err := IsValidRecipient(repo, p); err != nil || result != core.OK {
			return result, err
		}

		required[p.AssetID] = required[p.AssetID].Add(p.Amount)
	}

	ids := make([]int64, 0, len(required))
	for id := range required {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	sender := NewPublicKeyAccount(repo, senderPublicKey)
	for _, id := range ids {
		bal, err := sender.ConfirmedBalance(id)
		if err != nil {
			return core.OK, err
		}
		if bal.Cmp(required[id]) < 0 {
			return core.NoBalance, nil
		}
	}
	return core.OK, nil
}

// ProcessPayments debits fee and every payment from the sender, credits the
// recipients and advances the sender's reference to signature. A recipient
// without a reference gets signature as its first one when the payment is in
// native coin, or always when alwaysInitializeRecipientReference is set.
func ProcessPayments(repo core.Repository, senderPublicKey []byte, payments []core.PaymentData, fee decimal.Decimal, signature []byte, alwaysInitializeRecipientReference bool) error {
	sender := NewPublicKeyAccount(repo, senderPublicKey)
	if err := sender.Debit(core.NativeAssetID, fee); err != nil {
		return err
	}
	if err := sender.SetLastReference(signature); err != nil {
		return err
	}

	for _, p := range payments {
		recipient := NewAccount(repo, p.Recipient)
		if err := sender.Debit(p.AssetID, p.Amount); err != nil {
			return err
		}
		if err := recipient.Credit(p.AssetID, p.Amount); err != nil {
			return err
		}
		if alwaysInitializeRecipientReference || p.AssetID == core.NativeAssetID {
			ref, err := recipient.LastReference()
			if err != nil {
				return err
			}
			if ref == nil {
				if err := recipient.SetLastReference(signature); err != nil {
					return fmt.Errorf("initialise reference of %s: %w", p.Recipient, err)
				}
			}
		}
	}
	return nil
}

// OrphanPayments is the exact inverse of ProcessPayments. The sender's
// reference is restored to the caller-supplied reference. A recipient's
// reference is only cleared while it still equals signature.
func OrphanPayments(repo core.Repository, senderPublicKey []byte, payments []core.PaymentData, fee decimal.Decimal, signature, reference []byte, alwaysUninitializeRecipientReference bool) error {
	sender := NewPublicKeyAccount(repo, senderPublicKey)

	for i := len(payments) - 1; i >= 0; i-- {
		p := payments[i]
		recipient := NewAccount(repo, p.Recipient)
		if alwaysUninitializeRecipientReference || p.AssetID == core.NativeAssetID {
			ref, err := recipient.LastReference()
			if err != nil {
				return err
			}
			if bytes.Equal(ref, signature) {
				if err := recipient.SetLastReference(nil); err != nil {
					return err
				}
			}
		}
		if err := recipient.Debit(p.AssetID, p.Amount); err != nil {
			return err
		}
		if err := sender.Credit(p.AssetID, p.Amount); err != nil {
			return err
		}
	}

	if err := sender.SetLastReference(reference); err != nil {
		return err
	}
	return sender.Credit(core.NativeAssetID, fee)
}

// IsValidRecipient runs the per-payment checks that follow the amount sign:
// recipient address, finished AT, asset existence, AT asset match and
// divisibility.
func IsValidRecipient(repo core.Repository, p core.PaymentData) (core.ValidationResult, error) {
	if !crypto.IsValidAddress(p.Recipient) {
		return core.InvalidAddress, nil
	}

	var at *core.ATData
	if crypto.IsATAddress(p.Recipient) {
		found, err := repo.ATRepository().FromATAddress(p.Recipient)
		switch {
		case err == nil:
			at = found
		case !errors.Is(err, core.ErrNotFound):
			return core.OK, err
		}
	}
	if at != nil && at.IsFinished {
		return core.ATIsFinished, nil
	}

	asset, err := repo.AssetRepository().FromAssetID(p.AssetID)
	if errors.Is(err, core.ErrNotFound) {
		return core.AssetDoesNotExist, nil
	}
	if err != nil {
		return core.OK, err
	}
	if at != nil && at.AssetID != p.AssetID {
		return core.AssetDoesNotMatchAT, nil
	}
	if core.ExceedsScale(p.Amount) || (!asset.IsDivisible && core.HasFraction(p.Amount)) {
		return core.InvalidAmount, nil
	}
	return core.OK, nil
}

// Package ledger holds the account ledger and the payment primitive every
// value-moving transaction kind is built on.
package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tolelom/qorachain/core"
	"github.com/tolelom/qorachain/crypto"
)

// Account is a view of one address in an open repository. It holds no state
// of its own; every read goes to the repository.
type Account struct {
	repo    core.Repository
	address string
}

// NewAccount returns the account for address.
func NewAccount(repo core.Repository, address string) *Account {
	return &Account{repo: repo, address: address}
}

// NewPublicKeyAccount returns the account owned by publicKey.
func NewPublicKeyAccount(repo core.Repository, publicKey []byte) *Account {
	return NewAccount(repo, crypto.ToAddress(publicKey))
}

// Address returns the account address.
func (a *Account) Address() string { return a.address }

// ConfirmedBalance returns the balance of assetID, zero when absent.
func (a *Account) ConfirmedBalance(assetID int64) (decimal.Decimal, error) {
	return a.repo.AccountRepository().GetBalance(a.address, assetID)
}

// SetConfirmedBalance overwrites the balance of assetID. Callers validate
// first; negative results are stored as-is, never clamped.
func (a *Account) SetConfirmedBalance(assetID int64, amount decimal.Decimal) error {
	return a.repo.AccountRepository().SetBalance(a.address, assetID, amount)
}

// Credit adds delta (which may be negative) to the balance of assetID.
func (a *Account) Credit(assetID int64, delta decimal.Decimal) error {
	bal, err := a.ConfirmedBalance(assetID)
	if err != nil {
		return fmt.Errorf("balance of %s/%d: %w", a.address, assetID, err)
	}
	return a.SetConfirmedBalance(assetID, bal.Add(delta))
}

// Debit subtracts delta from the balance of assetID.
func (a *Account) Debit(assetID int64, delta decimal.Decimal) error {
	return a.Credit(assetID, delta.Neg())
}

// LastReference returns the account's last reference, nil if unset.
func (a *Account) LastReference() ([]byte, error) {
	return a.repo.AccountRepository().GetLastReference(a.address)
}

// SetLastReference stores ref; nil clears it.
func (a *Account) SetLastReference(ref []byte) error {
	return a.repo.AccountRepository().SetLastReference(a.address, ref)
}

// PublicKey returns the account's recorded public key, nil if not yet known.
func (a *Account) PublicKey() ([]byte, error) {
	acc, err := a.repo.AccountRepository().GetAccount(a.address)
	if err != nil {
		return nil, err
	}
	return acc.PublicKey, nil
}

// SetPublicKey records or (with nil) forgets the account's public key.
func (a *Account) SetPublicKey(publicKey []byte) error {
	accRepo := a.repo.AccountRepository()
	acc, err := accRepo.GetAccount(a.address)
	if err != nil {
		return err
	}
	acc.PublicKey = publicKey
	return accRepo.SaveAccount(acc)
}

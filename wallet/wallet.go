// Package wallet provides key management and transaction signing helpers.
package wallet

import (
	"github.com/shopspring/decimal"
	"github.com/tolelom/qorachain/core"
	"github.com/tolelom/qorachain/crypto"
	"github.com/tolelom/qorachain/ledger"
)

// Wallet holds a key pair and builds signed transactions for it.
type Wallet struct {
	priv crypto.PrivateKey
	pub  crypto.PublicKey
}

// New creates a Wallet from an existing private key.
func New(priv crypto.PrivateKey) *Wallet {
	return &Wallet{priv: priv, pub: priv.Public()}
}

// Generate creates a Wallet with a freshly generated key pair.
func Generate() (*Wallet, error) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return New(priv), nil
}

// PrivKey returns the raw private key.
func (w *Wallet) PrivKey() crypto.PrivateKey {
	return w.priv
}

// PublicKey returns the account public key.
func (w *Wallet) PublicKey() crypto.PublicKey {
	return w.pub
}

// Address returns the base58 account address.
func (w *Wallet) Address() string {
	return w.pub.Address()
}

// LastReference reads the reference the next transaction must carry.
func (w *Wallet) LastReference(repo core.Repository) ([]byte, error) {
	return ledger.NewAccount(repo, w.Address()).LastReference()
}

// NewTx creates a signed transaction. reference must be the account's last
// reference at signing time; timestamp is unix ms.
func (w *Wallet) NewTx(typ core.TxType, timestamp int64, reference []byte, fee decimal.Decimal, payload any) (*core.TransactionData, error) {
	tx, err := core.NewTransaction(typ, w.pub, timestamp, reference, fee, payload)
	if err != nil {
		return nil, err
	}
	tx.Sign(w.priv)
	return tx, nil
}

// Payment creates a signed native coin payment.
func (w *Wallet) Payment(timestamp int64, reference []byte, recipient string, amount, fee decimal.Decimal) (*core.TransactionData, error) {
	return w.NewTx(core.TxPayment, timestamp, reference, fee, core.PaymentPayload{
		Recipient: recipient,
		Amount:    amount,
	})
}

// TransferAsset creates a signed transfer of a user asset.
func (w *Wallet) TransferAsset(timestamp int64, reference []byte, recipient string, assetID int64, amount, fee decimal.Decimal) (*core.TransactionData, error) {
	return w.NewTx(core.TxTransferAsset, timestamp, reference, fee, core.TransferAssetPayload{
		Recipient: recipient,
		AssetID:   assetID,
		Amount:    amount,
	})
}

// CreateOrder creates a signed order offering amount of have at price
// want-units per have-unit.
func (w *Wallet) CreateOrder(timestamp int64, reference []byte, have, want int64, amount, price, fee decimal.Decimal) (*core.TransactionData, error) {
	return w.NewTx(core.TxCreateOrder, timestamp, reference, fee, core.CreateOrderPayload{
		HaveAssetID: have,
		WantAssetID: want,
		Amount:      amount,
		Price:       price,
	})
}

// CancelOrder creates a signed cancellation of the order with id orderID.
func (w *Wallet) CancelOrder(timestamp int64, reference []byte, orderID []byte, fee decimal.Decimal) (*core.TransactionData, error) {
	return w.NewTx(core.TxCancelOrder, timestamp, reference, fee, core.CancelOrderPayload{OrderID: orderID})
}

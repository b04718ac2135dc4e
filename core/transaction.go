package core

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tolelom/qorachain/crypto"
)

// TxType identifies the kind of operation a transaction performs.
type TxType string

const (
	TxGenesis       TxType = "genesis"
	TxPayment       TxType = "payment"
	TxMultiPayment  TxType = "multi_payment"
	TxIssueAsset    TxType = "issue_asset"
	TxTransferAsset TxType = "transfer_asset"
	TxCreateOrder   TxType = "create_order"
	TxCancelOrder   TxType = "cancel_order"
	TxDeployAT      TxType = "deploy_at"
	TxAT            TxType = "at"
)

// MaxTxLifetime bounds how long after its timestamp a transaction may still be
// included in a block.
const MaxTxLifetime = int64(24 * time.Hour / time.Millisecond)

// TransactionData is the common envelope of every transaction kind.
// Reference must equal the creator's last reference at signing time.
// Signature covers all fields except Signature itself. Timestamps are unix ms.
type TransactionData struct {
	Type             TxType          `json:"type"`
	Timestamp        int64           `json:"timestamp"`
	CreatorPublicKey []byte          `json:"creator,omitempty"`
	Reference        []byte          `json:"reference,omitempty"`
	Fee              decimal.Decimal `json:"fee"`
	Payload          json.RawMessage `json:"payload"`
	Signature        []byte          `json:"signature"`
}

// signingBody holds the fields that are covered by the signature.
type signingBody struct {
	Type             TxType          `json:"type"`
	Timestamp        int64           `json:"timestamp"`
	CreatorPublicKey []byte          `json:"creator,omitempty"`
	Reference        []byte          `json:"reference,omitempty"`
	Fee              decimal.Decimal `json:"fee"`
	Payload          json.RawMessage `json:"payload"`
}

// SigningBytes returns the canonical bytes the creator signs.
func (tx *TransactionData) SigningBytes() []byte {
	data, err := json.Marshal(signingBody{
		Type:             tx.Type,
		Timestamp:        tx.Timestamp,
		CreatorPublicKey: tx.CreatorPublicKey,
		Reference:        tx.Reference,
		Fee:              tx.Fee,
		Payload:          tx.Payload,
	})
	if err != nil {
		return nil
	}
	return data
}

// Sign computes and sets the signature.
func (tx *TransactionData) Sign(priv crypto.PrivateKey) {
	tx.Signature = crypto.Sign(priv, crypto.Digest(tx.SigningBytes()))
}

// Verify checks the signature against CreatorPublicKey.
func (tx *TransactionData) Verify() error {
	if len(tx.CreatorPublicKey) == 0 {
		return errors.New("missing creator public key")
	}
	return crypto.Verify(tx.CreatorPublicKey, crypto.Digest(tx.SigningBytes()), tx.Signature)
}

// Deadline is the last instant (exclusive) a block may include the transaction.
func (tx *TransactionData) Deadline() int64 {
	return tx.Timestamp + MaxTxLifetime
}

// Size is the transaction's contribution to a block's byte count.
func (tx *TransactionData) Size() int {
	data, err := json.Marshal(tx)
	if err != nil {
		return 0
	}
	return len(data)
}

// SignatureHex is the hex form of Signature, used as a storage key and in logs.
func (tx *TransactionData) SignatureHex() string {
	return hex.EncodeToString(tx.Signature)
}

// CreatorAddress is the address of the signing account, or "" for
// transactions without a creator key.
func (tx *TransactionData) CreatorAddress() string {
	if len(tx.CreatorPublicKey) == 0 {
		return ""
	}
	return crypto.ToAddress(tx.CreatorPublicKey)
}

// DecodePayload unmarshals the kind-specific payload into v.
func (tx *TransactionData) DecodePayload(v any) error {
	if err := json.Unmarshal(tx.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", tx.Type, err)
	}
	return nil
}

// NewTransaction creates an unsigned transaction.
func NewTransaction(typ TxType, creator crypto.PublicKey, timestamp int64, reference []byte, fee decimal.Decimal, payload any) (*TransactionData, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &TransactionData{
		Type:             typ,
		Timestamp:        timestamp,
		CreatorPublicKey: creator,
		Reference:        reference,
		Fee:              fee,
		Payload:          raw,
	}, nil
}

// ---- Payload types ----

// PaymentData is one leg of a payment.
type PaymentData struct {
	Recipient string          `json:"recipient"`
	AssetID   int64           `json:"asset_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// GenesisPayload credits native coin in the genesis block.
type GenesisPayload struct {
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
}

// PaymentPayload transfers native coin.
type PaymentPayload struct {
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
}

// MultiPaymentPayload transfers several assets to several recipients.
type MultiPaymentPayload struct {
	Payments []PaymentData `json:"payments"`
}

// IssueAssetPayload creates a new asset owned by Owner.
type IssueAssetPayload struct {
	Owner       string          `json:"owner"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	IsDivisible bool            `json:"is_divisible"`
}

// TransferAssetPayload transfers a user asset.
type TransferAssetPayload struct {
	Recipient string          `json:"recipient"`
	AssetID   int64           `json:"asset_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// CreateOrderPayload places an order to swap Amount of the have asset at Price
// want-units per have-unit.
type CreateOrderPayload struct {
	HaveAssetID int64           `json:"have_asset_id"`
	WantAssetID int64           `json:"want_asset_id"`
	Amount      decimal.Decimal `json:"amount"`
	Price       decimal.Decimal `json:"price"`
}

// CancelOrderPayload closes an open order.
type CancelOrderPayload struct {
	OrderID []byte `json:"order_id"`
}

// DeployATPayload registers an AT and funds it with Amount of AssetID.
type DeployATPayload struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	CreationBytes []byte          `json:"creation_bytes"`
	AssetID       int64           `json:"asset_id"`
	Amount        decimal.Decimal `json:"amount"`
}

// ATPayload is a payment generated by an AT during block processing.
type ATPayload struct {
	ATAddress string          `json:"at_address"`
	Recipient string          `json:"recipient"`
	AssetID   int64           `json:"asset_id"`
	Amount    decimal.Decimal `json:"amount"`
	Message   []byte          `json:"message,omitempty"`
}

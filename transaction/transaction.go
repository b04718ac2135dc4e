// Package transaction implements validation, processing and orphaning of each
// transaction kind. Kinds self-register by TxType; FromData picks the
// implementation for a stored or received transaction.
package transaction

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/tolelom/qorachain/core"
	"github.com/tolelom/qorachain/crypto"
	"github.com/tolelom/qorachain/ledger"
)

// Field limits shared by several kinds.
const (
	MaxNameSize          = 400
	MaxDescriptionSize   = 4000
	MaxPaymentsCount     = 400
	MaxCreationBytesSize = 64 * 1024
)

// MaxQuantity bounds the quantity of an issued asset.
var MaxQuantity = core.MustAmount("10000000000")

// Context is the ledger position a transaction is validated or applied at.
type Context struct {
	Repo           core.Repository
	BlockTimestamp int64
	BlockHeight    int
}

// Transaction is one kind-specific transaction. IsValid covers only the
// kind's own rules; Validate adds the checks every signed kind shares.
// Process and Orphan are exact inverses and must run under an open
// repository transaction.
type Transaction interface {
	Data() *core.TransactionData
	IsValid(ctx *Context) (core.ValidationResult, error)
	Process(ctx *Context) error
	Orphan(ctx *Context) error
	InvolvedAddresses() []string
}

// Factory decodes a kind's payload.
type Factory func(data *core.TransactionData) (Transaction, error)

// Registry maps TxTypes to Factories. Thread-safe for concurrent registration.
type Registry struct {
	mu        sync.RWMutex
	factories map[core.TxType]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[core.TxType]Factory)}
}

// Register associates typ with f. Panics on duplicate registration.
func (r *Registry) Register(typ core.TxType, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[typ]; exists {
		panic(fmt.Sprintf("transaction: factory already registered for TxType %q", typ))
	}
	r.factories[typ] = f
}

// FromData builds the Transaction for data.
func (r *Registry) FromData(data *core.TransactionData) (Transaction, error) {
	r.mu.RLock()
	f, ok := r.factories[data.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, data.Type)
	}
	return f(data)
}

// ErrUnknownType is returned by FromData for an unregistered TxType.
var ErrUnknownType = errors.New("unknown transaction type")

var globalRegistry = NewRegistry()

// Register adds a factory to the global registry. Kind files call this from init.
func Register(typ core.TxType, f Factory) {
	globalRegistry.Register(typ, f)
}

// FromData builds the Transaction for data using the global registry.
func FromData(data *core.TransactionData) (Transaction, error) {
	return globalRegistry.FromData(data)
}

// CheckTimestamp reports whether a block stamped blockTimestamp may include
// data: not before the transaction was created and before its deadline.
func CheckTimestamp(data *core.TransactionData, blockTimestamp int64) core.ValidationResult {
	if data.Timestamp > blockTimestamp {
		return core.TimestampTooNew
	}
	if blockTimestamp >= data.Deadline() {
		return core.TimestampTooOld
	}
	return core.OK
}

// Validate runs the shared prelude and then the kind's own IsValid. Genesis
// transactions are only valid in the first block; AT transactions are never
// valid on their own because only block processing may create them.
func Validate(ctx *Context, tx Transaction) (core.ValidationResult, error) {
	data := tx.Data()
	switch data.Type {
	case core.TxGenesis:
		if ctx.BlockHeight != 1 {
			return core.NotGenesisBlock, nil
		}
		return tx.IsValid(ctx)
	case core.TxAT:
		return core.InvalidTransactionType, nil
	}

	if err := data.Verify(); err != nil {
		return core.InvalidSignature, nil
	}
	if result := CheckTimestamp(data, ctx.BlockTimestamp); result != core.OK {
		return result, nil
	}
	if data.Fee.Sign() <= 0 {
		return core.NegativeFee, nil
	}
	if core.ExceedsScale(data.Fee) {
		return core.InvalidAmount, nil
	}

	ref, err := ledger.NewPublicKeyAccount(ctx.Repo, data.CreatorPublicKey).LastReference()
	if err != nil {
		return core.OK, err
	}
	if ref == nil || !bytes.Equal(ref, data.Reference) {
		return core.InvalidReference, nil
	}
	return tx.IsValid(ctx)
}

// base holds the envelope every kind shares.
type base struct {
	data *core.TransactionData
}

func (b *base) Data() *core.TransactionData { return b.data }

func (b *base) creator(repo core.Repository) *ledger.Account {
	return ledger.NewPublicKeyAccount(repo, b.data.CreatorPublicKey)
}

// canAfford checks the creator holds the fee plus amount of assetID. A zero
// amount checks the fee alone.
func (b *base) canAfford(repo core.Repository, assetID int64, amount decimal.Decimal) (core.ValidationResult, error) {
	creator := b.creator(repo)
	needNative := b.data.Fee
	if assetID == core.NativeAssetID {
		needNative = needNative.Add(amount)
	}
	native, err := creator.ConfirmedBalance(core.NativeAssetID)
	if err != nil {
		return core.OK, err
	}
	if native.Cmp(needNative) < 0 {
		return core.NoBalance, nil
	}
	if assetID != core.NativeAssetID && amount.Sign() > 0 {
		bal, err := creator.ConfirmedBalance(assetID)
		if err != nil {
			return core.OK, err
		}
		if bal.Cmp(amount) < 0 {
			return core.NoBalance, nil
		}
	}
	return core.OK, nil
}

// processCreator charges the fee, advances the creator's reference and
// records its public key.
func (b *base) processCreator(repo core.Repository) error {
	creator := b.creator(repo)
	if err := creator.Debit(core.NativeAssetID, b.data.Fee); err != nil {
		return err
	}
	if err := creator.SetLastReference(b.data.Signature); err != nil {
		return err
	}
	return b.recordPublicKey(repo)
}

// orphanCreator undoes processCreator.
func (b *base) orphanCreator(repo core.Repository) error {
	creator := b.creator(repo)
	if err := creator.SetLastReference(b.data.Reference); err != nil {
		return err
	}
	if err := creator.Credit(core.NativeAssetID, b.data.Fee); err != nil {
		return err
	}
	return b.forgetPublicKey(repo)
}

func (b *base) recordPublicKey(repo core.Repository) error {
	creator := b.creator(repo)
	known, err := creator.PublicKey()
	if err != nil || known != nil {
		return err
	}
	return creator.SetPublicKey(b.data.CreatorPublicKey)
}

// forgetPublicKey clears the recorded public key when this transaction was
// the creator's first: its reference is not a transaction the creator signed.
func (b *base) forgetPublicKey(repo core.Repository) error {
	if len(b.data.Reference) > 0 {
		prev, err := repo.TransactionRepository().FromSignature(b.data.Reference)
		switch {
		case err == nil:
			if bytes.Equal(prev.CreatorPublicKey, b.data.CreatorPublicKey) {
				return nil
			}
		case !errors.Is(err, core.ErrNotFound):
			return err
		}
	}
	return b.creator(repo).SetPublicKey(nil)
}

// involved returns the creator's address followed by others, without
// duplicates or empty entries.
func (b *base) involved(others ...string) []string {
	seen := make(map[string]bool, len(others)+1)
	var out []string
	for _, addr := range append([]string{b.data.CreatorAddress()}, others...) {
		if addr == "" || seen[addr] {
			continue
		}
		seen[addr] = true
		out = append(out, addr)
	}
	return out
}

func decode[P any](data *core.TransactionData) (*P, error) {
	var p P
	if err := data.DecodePayload(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func validAddress(addr string) bool { return crypto.IsValidAddress(addr) }

package core

import (
	"context"

	"github.com/shopspring/decimal"
)

// AccountRepository stores account references, public keys and balances.
// Writes are visible to later reads on the same repository handle but are not
// durable until SaveChanges.
type AccountRepository interface {
	// GetAccount returns the stored account, or a zero-value account holding
	// only the address if none exists.
	GetAccount(address string) (*AccountData, error)
	SaveAccount(account *AccountData) error
	GetLastReference(address string) ([]byte, error)
	// SetLastReference stores ref; nil clears the reference.
	SetLastReference(address string, ref []byte) error

	// GetBalance returns zero if the balance row is absent.
	GetBalance(address string, assetID int64) (decimal.Decimal, error)
	SetBalance(address string, assetID int64, amount decimal.Decimal) error
	DeleteBalance(address string, assetID int64) error
	// GetAssetBalances returns every balance row of assetID sorted by address.
	GetAssetBalances(assetID int64) ([]*AccountBalanceData, error)
}

// AssetRepository stores assets, orders and trades.
type AssetRepository interface {
	FromAssetID(assetID int64) (*AssetData, error)
	FromAssetReference(reference []byte) (*AssetData, error)
	AssetExists(assetID int64) (bool, error)
	AssetNameExists(name string) (bool, error)
	// NextAssetID returns the id the next issued asset receives.
	NextAssetID() (int64, error)
	SaveAsset(asset *AssetData) error
	// DeleteAsset removes the asset; deleting the most recently issued asset
	// also rewinds NextAssetID.
	DeleteAsset(assetID int64) error

	FromOrderID(orderID []byte) (*OrderData, error)
	// GetOpenOrders returns open orders offering haveAssetID for wantAssetID,
	// best (lowest) price first, ties by timestamp then order id.
	GetOpenOrders(haveAssetID, wantAssetID int64) ([]*OrderData, error)
	GetAccountsOrders(creatorPublicKey []byte) ([]*OrderData, error)
	SaveOrder(order *OrderData) error
	DeleteOrder(orderID []byte) error

	// GetOrdersTrades returns trades where orderID is initiator or target,
	// oldest first.
	GetOrdersTrades(orderID []byte) ([]*TradeData, error)
	SaveTrade(trade *TradeData) error
	DeleteTrade(trade *TradeData) error
}

// BlockRepository stores blocks and the block→transaction mapping.
type BlockRepository interface {
	FromSignature(signature []byte) (*BlockData, error)
	FromHeight(height int) (*BlockData, error)
	// GetBlockchainHeight returns the tip height, 0 for an empty chain.
	GetBlockchainHeight() (int, error)
	// GetLastBlock returns ErrNotFound for an empty chain.
	GetLastBlock() (*BlockData, error)
	// GetTransactionsFromSignature returns the block's transactions in sequence order.
	GetTransactionsFromSignature(blockSignature []byte) ([]*TransactionData, error)
	// Save stores the block at block.Height and makes it the tip.
	Save(block *BlockData) error
	// Delete removes the tip block and makes its parent the tip.
	Delete(block *BlockData) error
	SaveTransaction(link *BlockTransactionData) error
	DeleteTransactions(blockSignature []byte) error
}

// TransactionRepository stores confirmed transactions and participant indexes.
type TransactionRepository interface {
	FromSignature(signature []byte) (*TransactionData, error)
	// GetBlockSignature returns the signature of the block holding the transaction.
	GetBlockSignature(signature []byte) ([]byte, error)
	Save(tx *TransactionData) error
	Delete(tx *TransactionData) error
	SaveParticipants(signature []byte, addresses []string) error
	DeleteParticipants(signature []byte) error
	GetSignaturesInvolving(address string) ([][]byte, error)
}

// ATRepository stores ATs and their per-height state snapshots.
type ATRepository interface {
	FromATAddress(address string) (*ATData, error)
	// GetExecutableATs returns unfinished ATs ordered by creation time then address.
	GetExecutableATs() ([]*ATData, error)
	Save(at *ATData) error
	Delete(address string) error
	GetATStateAtHeight(address string, height int) (*ATStateData, error)
	// GetATStateBefore returns the newest state strictly below height.
	GetATStateBefore(address string, height int) (*ATStateData, error)
	GetBlockATStates(height int) ([]*ATStateData, error)
	SaveATState(state *ATStateData) error
	DeleteATStates(height int) error
}

// Repository is one open ledger transaction. Every ledger mutation goes
// through one of its sub-repositories; SaveChanges commits everything written
// since the last save atomically, DiscardChanges drops it.
type Repository interface {
	AccountRepository() AccountRepository
	AssetRepository() AssetRepository
	BlockRepository() BlockRepository
	TransactionRepository() TransactionRepository
	ATRepository() ATRepository

	SaveChanges() error
	DiscardChanges() error
	// Savepoint marks the current uncommitted state for RollbackTo.
	Savepoint() int
	RollbackTo(savepoint int) error
	// Rebuild erases all ledger state, committed or not.
	Rebuild() error
	// Close discards uncommitted changes and releases the handle.
	Close() error
}

// RepositoryFactory hands out exclusive repository handles. Begin blocks until
// no other handle is open or ctx is done.
type RepositoryFactory interface {
	Begin(ctx context.Context) (Repository, error)
}

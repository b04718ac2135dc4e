package synchronizer

import (
	"context"
	"fmt"

	"github.com/tolelom/qorachain/core"
)

// Peer is the view of a remote node the synchronizer needs. Transport and
// peer discovery live outside this package.
type Peer interface {
	ID() string
	// ChainHeight is the peer's current tip height.
	ChainHeight(ctx context.Context) (int, error)
	// BlockAt returns the peer's block at height with its signed
	// transactions in sequence order.
	BlockAt(ctx context.Context, height int) (*core.BlockData, []*core.TransactionData, error)
}

// StorePeer serves blocks straight from another node's store. It backs
// in-process nodes and tests.
type StorePeer struct {
	id    string
	store core.RepositoryFactory
}

// NewStorePeer returns a Peer reading from store.
func NewStorePeer(id string, store core.RepositoryFactory) *StorePeer {
	return &StorePeer{id: id, store: store}
}

func (p *StorePeer) ID() string { return p.id }

func (p *StorePeer) ChainHeight(ctx context.Context) (int, error) {
	repo, err := p.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer repo.Close()
	return repo.BlockRepository().GetBlockchainHeight()
}

func (p *StorePeer) BlockAt(ctx context.Context, height int) (*core.BlockData, []*core.TransactionData, error) {
	repo, err := p.store.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer repo.Close()

	data, err := repo.BlockRepository().FromHeight(height)
	if err != nil {
		return nil, nil, fmt.Errorf("block %d: %w", height, err)
	}
	all, err := repo.BlockRepository().GetTransactionsFromSignature(data.Signature())
	if err != nil {
		return nil, nil, err
	}
	signed := make([]*core.TransactionData, 0, len(all))
	for _, tx := range all {
		if tx.Type != core.TxAT {
			signed = append(signed, tx)
		}
	}
	return data, signed, nil
}

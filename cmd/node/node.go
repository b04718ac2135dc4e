package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/tolelom/qorachain/chain"
	"github.com/tolelom/qorachain/config"
	"github.com/tolelom/qorachain/events"
	"github.com/tolelom/qorachain/internal/logging"
	"github.com/tolelom/qorachain/storage"
)

// node is the storage and chain state every long-running command shares.
type node struct {
	cfg     *config.Config
	log     *logrus.Logger
	db      *storage.LevelDB
	store   *storage.Store
	chain   *chain.Chain
	emitter *events.Emitter
}

// openNode loads and validates the config, opens the chain database and
// makes sure the genesis block is in place.
func openNode(ctx context.Context, path string) (*node, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "chain"))
	if err != nil {
		return nil, err
	}

	emitter := events.NewEmitter(log)
	store := storage.NewStore(db)
	c := chain.New(store, chain.Config{
		Params:      cfg.Params,
		Allocations: cfg.Genesis,
		Emitter:     emitter,
		Log:         log,
	})
	if err := c.Init(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init chain: %w", err)
	}
	return &node{cfg: cfg, log: log, db: db, store: store, chain: c, emitter: emitter}, nil
}

func (n *node) Close() error {
	return n.db.Close()
}

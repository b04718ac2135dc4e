package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/tolelom/qorachain/mempool"
	"github.com/tolelom/qorachain/storage"
	"github.com/tolelom/qorachain/synchronizer"
)

type importCommand struct {
	From string `long:"from" required:"true" description:"Data directory of a stopped node to synchronise from"`

	global *globalOptions
}

func newImportCommand(global *globalOptions) *importCommand {
	return &importCommand{global: global}
}

func (x *importCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"import",
		"Synchronise from another node's database",
		"Open the chain database of another, stopped node and adopt "+
			"its chain if it is longer, orphaning local blocks back "+
			"to the common block when needed",
		x,
	)
	return err
}

func (x *importCommand) Execute(_ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := openNode(ctx, x.global.Config)
	if err != nil {
		return err
	}
	defer n.Close()

	src, err := storage.NewLevelDB(filepath.Join(x.From, "chain"))
	if err != nil {
		return err
	}
	defer src.Close()

	clk := clock.NewDefaultClock()
	syncer := synchronizer.New(n.chain, mempool.New(clk), clk, n.emitter, n.log)
	peer := synchronizer.NewStorePeer(x.From, storage.NewStore(src))

	// Each round applies at most MaxBlocksPerSync blocks.
	var orphaned, applied int
	for {
		res, err := syncer.Synchronize(ctx, peer)
		if err != nil {
			return err
		}
		orphaned += res.Orphaned
		applied += res.Applied
		if res.Applied == 0 {
			fmt.Printf("common height %d, orphaned %d, applied %d\n", res.CommonHeight, orphaned, applied)
			break
		}
	}
	return nil
}

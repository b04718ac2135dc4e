package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/tolelom/qorachain/block"
	"github.com/tolelom/qorachain/config"
	"github.com/tolelom/qorachain/core"
)

type initConfigCommand struct {
	Out         string   `long:"out" short:"o" default:"config.json" description:"Config file to write"`
	DataDir     string   `long:"datadir" default:"./data" description:"Chain database directory"`
	Alloc       []string `long:"alloc" description:"Genesis allocation as ADDRESS=AMOUNT, may be repeated"`
	ForgingKeys []string `long:"forging-key" description:"Keystore path to forge with, may be repeated"`
	Devnet      bool     `long:"devnet" description:"Use a fresh genesis timestamp and short block times"`
}

func newInitConfigCommand() *initConfigCommand {
	return &initConfigCommand{}
}

func (x *initConfigCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"init-config",
		"Write a new config file",
		"Write a config file with the default consensus schedule and "+
			"the given genesis allocations",
		x,
	)
	return err
}

func (x *initConfigCommand) Execute(_ []string) error {
	cfg := config.DefaultConfig()
	cfg.DataDir = x.DataDir
	cfg.ForgingKeys = x.ForgingKeys
	for _, alloc := range x.Alloc {
		addr, amount, ok := strings.Cut(alloc, "=")
		if !ok {
			return fmt.Errorf("allocation %q: want ADDRESS=AMOUNT", alloc)
		}
		d, err := core.ParseAmount(amount)
		if err != nil {
			return fmt.Errorf("allocation %q: %w", alloc, err)
		}
		cfg.Genesis = append(cfg.Genesis, block.Allocation{Recipient: addr, Amount: d})
	}
	if x.Devnet {
		now := time.Now().UnixMilli()
		cfg.Params.GenesisTimestamp = now
		cfg.Params.ATActivationTimestamp = now
		cfg.Params.MinBlockTime = int64(5 * time.Second / time.Millisecond)
		cfg.Params.MaxBlockTime = int64(30 * time.Second / time.Millisecond)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(cfg, x.Out); err != nil {
		return err
	}
	fmt.Printf("config written to %s\n", x.Out)
	return nil
}

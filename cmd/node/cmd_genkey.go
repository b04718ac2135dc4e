package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/tolelom/qorachain/wallet"
)

type genKeyCommand struct {
	Out       string `long:"out" short:"o" default:"forger.key" description:"Keystore file to write"`
	Overwrite bool   `long:"overwrite" description:"Replace an existing keystore file"`

	global *globalOptions
}

func newGenKeyCommand(global *globalOptions) *genKeyCommand {
	return &genKeyCommand{global: global}
}

func (x *genKeyCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"genkey",
		"Generate a forging key",
		"Generate a new account key and store it encrypted with the "+
			"password from "+passwordEnv,
		x,
	)
	return err
}

func (x *genKeyCommand) Execute(_ []string) error {
	if _, err := os.Stat(x.Out); err == nil && !x.Overwrite {
		return fmt.Errorf("%s already exists, use --overwrite to replace it", x.Out)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	password, err := x.global.env(passwordEnv)
	if err != nil {
		return err
	}
	if password == "" {
		fmt.Fprintf(os.Stderr, "warning: %s is not set, the keystore has an empty password\n", passwordEnv)
	}

	w, err := wallet.Generate()
	if err != nil {
		return err
	}
	if err := wallet.SaveKey(x.Out, password, w.PrivKey()); err != nil {
		return err
	}
	fmt.Printf("address: %s\nkeystore: %s\n", w.Address(), x.Out)
	return nil
}

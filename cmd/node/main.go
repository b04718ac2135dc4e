// Command node runs a qorachain full node.
package main

import (
	"errors"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Secrets come from the environment, never from flags, since flags leak
// through ps.
const (
	passwordEnv = "QORA_PASSWORD"
	rpcTokenEnv = "QORA_RPC_TOKEN"
)

type globalOptions struct {
	Config  string `long:"config" short:"c" default:"config.json" description:"Path to the node config file"`
	EnvFile string `long:"env-file" default:".env" description:"Optional dotenv file read before the environment"`
}

// env loads the dotenv file, if any, and returns the variable key.
// Variables already set in the environment win over the file.
func (g *globalOptions) env(key string) (string, error) {
	if err := godotenv.Load(g.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	return os.Getenv(key), nil
}

type subCommand interface {
	Register(parser *flags.Parser) error
}

func main() {
	opts := &globalOptions{}
	parser := flags.NewParser(opts, flags.Default)
	commands := []subCommand{
		newRunCommand(opts),
		newGenKeyCommand(opts),
		newInitConfigCommand(),
		newImportCommand(opts),
	}
	for _, c := range commands {
		if err := c.Register(parser); err != nil {
			os.Exit(1)
		}
	}

	if _, err := parser.Parse(); err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

// Package ethprover implements the command-line interface: a root
// command carrying the global --config flag, and two subcommands,
// `block` and `run`, matching the two ways the pipeline can be driven.
package ethprover

import (
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/cobra"
)

var configPath string

// Execute runs the ethprover CLI.
func Execute() error {
	root := &cobra.Command{
		Use:   "ethprover",
		Short: "Runs the block-proving pipeline against an Ethereum-compatible chain",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML configuration file")

	root.AddCommand(newBlockCommand())
	root.AddCommand(newRunCommand())

	setupLogging()

	return root.Execute()
}

func setupLogging() {
	log.SetDefault(log.NewLogger(log.NewTerminalHandler(os.Stderr, true)))
}

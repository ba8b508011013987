// Command guestcall loads a guest module and its interface declaration and
// calls guest operations from the command line.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var g globalOptions

	root := &cobra.Command{
		Use:   "guestcall",
		Short: "Call exported operations of sandboxed Wasm guests",
		Long: `guestcall marshals arguments into a guest's input buffer, invokes the
generated __wasm_<operation> shim and decodes the result the guest leaves
behind its output locator.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&g.configPath, "config", "", "Path to a YAML config file.")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Override the configured log level.")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "Override the configured log format (console or json).")

	root.AddCommand(
		callCmd(&g),
		checkCmd(&g),
		validateCmd(&g),
		schemaCmd(),
	)

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func callCmd(g *globalOptions) *cobra.Command {
	var (
		flags  guestFlags
		indent bool
	)

	cmd := &cobra.Command{
		Use:   "call OPERATION [ARG...]",
		Short: "Call a guest operation and print its result as JSON",
		Long: `Each ARG is a JSON value matching the declared parameter shape, in
declaration order. Records are JSON objects, sequences and tuples are arrays,
enums are variant names, and an absent option is null.`,
		Example: `guestcall call --module calc.wasm --interface calc.yaml add 3 4
guestcall call --module echo.wat --interface echo.yaml --var shape=string echo '"hi"'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load(cmd)
			if err != nil {
				return err
			}

			callArgs, err := parseArgs(args[1:])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if cfg.Runtime.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.Runtime.Timeout)
				defer cancel()
			}

			env, err := openGuest(ctx, cfg, logger, &flags)
			if err != nil {
				return err
			}
			defer env.Close(context.Background())

			result, err := env.dispatcher.Call(ctx, env.guest, args[0], callArgs...)
			if err != nil {
				return err
			}
			logger.Info("guest operation returned", zap.String("operation", args[0]))
			return printJSON(cmd.OutOrStdout(), result, indent)
		},
	}

	flags.bind(cmd, true)
	cmd.Flags().BoolVar(&indent, "indent", false, "Indent the JSON result.")

	return cmd
}

// parseArgs decodes each raw argument as a single JSON value. Numbers stay
// json.Number so integers of every width survive.
func parseArgs(raw []string) ([]any, error) {
	args := make([]any, len(raw))
	for i, s := range raw {
		dec := json.NewDecoder(strings.NewReader(s))
		dec.UseNumber()
		if err := dec.Decode(&args[i]); err != nil {
			return nil, fmt.Errorf("argument %d is not valid JSON: %w", i, err)
		}
		if _, err := dec.Token(); !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("argument %d has trailing data after the JSON value", i)
		}
	}
	return args, nil
}

func printJSON(w io.Writer, v any, indent bool) error {
	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}

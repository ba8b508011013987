package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reglet-dev/guestcall/internal/abi"
)

func checkCmd(g *globalOptions) *cobra.Command {
	var flags guestFlags

	cmd := &cobra.Command{
		Use:     "check",
		Short:   "Verify a guest exports everything its interface needs",
		Long:    `check resolves the memory, buffer and shim exports and compares their signatures without calling any guest function. Shims the guest exports but the interface does not declare are listed.`,
		Example: "guestcall check --module calc.wasm --interface calc.yaml",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := g.load(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			env, err := openGuest(ctx, cfg, logger, &flags)
			if err != nil {
				return err
			}
			defer env.Close(context.Background())

			if err := env.dispatcher.CheckLinkage(env.guest); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintf(out, "%s: %d operations linked\n",
				env.dispatcher.Interface().Name, len(env.dispatcher.Interface().Operations)); err != nil {
				return err
			}
			for _, op := range env.guest.Shims() {
				if env.dispatcher.Has(op) {
					continue
				}
				if _, err := fmt.Fprintf(out, "  undeclared shim %s\n", abi.ShimName(op)); err != nil {
					return err
				}
			}
			return nil
		},
	}

	flags.bind(cmd, true)

	return cmd
}

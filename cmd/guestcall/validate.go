package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reglet-dev/guestcall/host"
)

func validateCmd(g *globalOptions) *cobra.Command {
	var flags guestFlags

	cmd := &cobra.Command{
		Use:     "validate",
		Short:   "Validate an interface declaration",
		Example: "guestcall validate --interface calc.yaml --var shape=u32",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := g.load(cmd)
			if err != nil {
				return err
			}

			iface, reg, err := host.NewLoader().LoadInterfaceFile(flags.interfacePath, flags.templateVars(cfg))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintf(out, "%s: %d operations, %d shapes\n", iface.Name, len(iface.Operations), len(reg.Names())); err != nil {
				return err
			}
			for _, op := range iface.Operations {
				if _, err := fmt.Fprintf(out, "  %s\n", op.String()); err != nil {
					return err
				}
			}
			return nil
		},
	}

	flags.bind(cmd, false)

	return cmd
}

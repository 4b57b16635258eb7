// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/panelbridge/pkg/registry"
	"github.com/Thermoquad/panelbridge/pkg/telemetry"
)

var varsCmd = &cobra.Command{
	Use:   "vars",
	Short: "Print the variable registry",
	Long: `Load the registry given by --config (or the built-in one) and print every
variable with its request id, in declaration order.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		printRegistry(cmd.OutOrStdout(), reg)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(varsCmd)
}

func printRegistry(w io.Writer, reg *registry.Registry) {
	fmt.Fprintf(w, "%-4s  %-32s  %-24s  %s\n", "ID", "NAME", "SIMVAR", "INDEX")
	for _, v := range reg.Variables {
		id := "-"
		if v.Forward {
			id = fmt.Sprintf("%d", v.RequestID)
		}
		base, index, err := telemetry.ParseName(v.Name)
		if err != nil {
			base, index = v.Name, 0
		}
		fmt.Fprintf(w, "%-4s  %-32s  %-24s  %d\n", id, v.Name, base, index)
	}
}

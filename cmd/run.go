// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/panelbridge/pkg/bridge"
	"github.com/Thermoquad/panelbridge/pkg/panelframe"
	"github.com/Thermoquad/panelbridge/pkg/registry"
	"github.com/Thermoquad/panelbridge/pkg/telemetry"
)

var (
	runFlags bridgeFlags
	runPrint bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Forward simulator variables to the panel",
	Long: `Connect to the simulator and the panel, then forward every registered
variable once per interval until the simulator disconnects.

Exit codes:
   0 - Simulator disconnected
  -1 - Simulator connection never came up
  -2 - Interrupted (Ctrl+C)
   1 - Configuration or panel link error`,
	RunE: runBridge,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addBridgeFlags(runCmd, &runFlags)
	runCmd.Flags().BoolVar(&runPrint, "print", false, "Print every snapshot to stdout")
}

func runBridge(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sinks []bridge.Sink
	if runPrint {
		sinks = append(sinks, consoleSink{})
	}

	s, err := newSession(ctx, &runFlags, sinks...)
	if err != nil {
		return err
	}
	defer s.close()

	fmt.Printf("Panelbridge - Run\n")
	fmt.Printf("Panel: %s\n", s.linkInfo)
	fmt.Printf("Simulator: %s\n", s.simInfo)
	fmt.Printf("Variables: %d (%d forwarded)\n", len(s.reg.Variables), len(s.reg.Forwarded()))
	fmt.Printf("Press Ctrl+C to exit\n\n")

	reason, err := s.loop.Run(ctx)
	logger.Info().Str("reason", reason.String()).Int("code", reason.Code()).Msg("bridge stopped")

	stats := s.loop.Stats()
	if stats.TotalFrames > 0 {
		fmt.Print(stats.String())
	}
	return exitFor(reason, err)
}

// formatSnapshot renders values as NAME=value pairs, "-" for missing values
func formatSnapshot(values []telemetry.Value) string {
	parts := make([]string, len(values))
	for i, v := range values {
		if v.Valid {
			parts[i] = fmt.Sprintf("%s=%g", v.Name, v.Value)
		} else {
			parts[i] = v.Name + "=-"
		}
	}
	return strings.Join(parts, " ")
}

// formatHexFrame renders an outbound frame with its variable name
func formatHexFrame(frame []byte, reg *registry.Registry) string {
	name := "?"
	if len(frame) > 1 {
		if n := reg.NameOf(frame[1]); n != "" {
			name = n
		}
	}
	return fmt.Sprintf("%s %s", name, panelframe.FormatHex(frame))
}

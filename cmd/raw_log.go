// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/panelbridge/pkg/panelframe"
)

var rawLogStats bool

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display frames sent by the panel in human-readable format",
	Long: `Continuously decode and display frames as they arrive on the panel link.

Each frame is shown with its timestamp, request id (with the variable name
from the registry when known), length, checksum and payload bytes. Decode
errors are printed inline.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogStats, "stats", false, "Print statistics on exit")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	tr, connInfo, err := OpenTransport()
	if err != nil {
		return err
	}
	defer closeTransport(tr)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Panelbridge - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := panelframe.NewDecoder()
	stats := panelframe.NewStatistics()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if rawLogStats {
				stats.SkippedBytes = decoder.Skipped()
				fmt.Print("\n" + stats.String())
			}
			return nil
		case <-ticker.C:
		}

		data, err := tr.Read()
		if err != nil {
			logger.Info().Err(err).Msg("connection closed")
			return nil
		}

		for _, res := range decoder.Feed(data) {
			stats.Update(res.Frame, res.Err)
			if res.Err != nil {
				fmt.Printf("[ERROR] %v\n", res.Err)
				continue
			}
			fmt.Print(panelframe.FormatFrame(res.Frame, reg.NameOf))
		}
	}
}

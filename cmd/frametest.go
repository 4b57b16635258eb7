// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/panelbridge/pkg/panelframe"
	"github.com/Thermoquad/panelbridge/pkg/transport"
)

var frameTestTimeout int

var frameTestCmd = &cobra.Command{
	Use:   "frame_test",
	Short: "Test the panel link by waiting for a valid frame",
	Long: `Wait for a valid frame on the panel link until timeout.

This command connects to a serial port or WebSocket and waits for any valid
frame. It ignores invalid bytes and waits for a complete frame with correct
start byte, stop byte and checksum.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error`,
	RunE: runFrameTest,
}

func init() {
	rootCmd.AddCommand(frameTestCmd)
	frameTestCmd.Flags().IntVar(&frameTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runFrameTest(cmd *cobra.Command, args []string) error {
	tr, connInfo, err := OpenTransport()
	if err != nil {
		return &ExitError{Code: 2, Reason: "connection error", Err: err}
	}
	defer closeTransport(tr)

	fmt.Printf("Panelbridge - Frame Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", frameTestTimeout)
	fmt.Printf("Waiting for valid frame...\n\n")

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(frameTestTimeout)*time.Second)
	defer cancel()

	frame, skipped, err := waitForFrame(ctx, tr)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &ExitError{Code: 1, Reason: fmt.Sprintf("TIMEOUT: no valid frame received within %d seconds", frameTestTimeout)}
	case err != nil:
		return &ExitError{Code: 2, Reason: "read error", Err: err}
	}

	if skipped > 0 {
		fmt.Printf("(skipped %d invalid bytes before sync)\n", skipped)
	}
	fmt.Printf("SUCCESS: Received valid frame\n")
	fmt.Printf("  Request ID: 0x%02X\n", frame.RequestID)
	fmt.Printf("  Length: %d bytes\n", frame.Length)
	fmt.Printf("  Checksum: 0x%02X\n", frame.Checksum)
	return nil
}

// waitForFrame polls tr until one valid frame decodes. It also returns the
// number of bytes discarded before it.
func waitForFrame(ctx context.Context, tr transport.Transport) (*panelframe.Frame, int, error) {
	decoder := panelframe.NewDecoder()
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		data, err := tr.Read()
		if err != nil {
			return nil, int(decoder.Skipped()), err
		}

		for _, res := range decoder.Feed(data) {
			if res.Err == nil {
				return res.Frame, int(decoder.Skipped()), nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, int(decoder.Skipped()), ctx.Err()
		case <-ticker.C:
		}
	}
}

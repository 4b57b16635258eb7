// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Simulator and registry flags
	gatewayURL string
	configPath string
	logLevel   string

	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "panelbridge",
	Short: "Flight simulator to hardware panel bridge",
	Long: `Panelbridge - forwards flight simulator variables to a hardware cockpit panel.

Variables are read from the simulator every tick and written to the panel as
framed messages (0xAA | id | length | payload | checksum | 0x55). The panel may
answer with an empty frame carrying a request id to ask for that value again.

Panel link:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

Simulator:
  Gateway:   --gateway ws://host:port/sim
  Mock:      --mock (run and monitor only)

For WebSocket authentication, the password is read from the PANELBRIDGE_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(logLevel)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device or USB product name")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL of the panel (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVar(&gatewayURL, "gateway", "", "Simulator gateway WebSocket URL")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Variable registry file (.yaml, .yml or .toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

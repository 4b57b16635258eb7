// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/Thermoquad/panelbridge/pkg/registry"
	"github.com/Thermoquad/panelbridge/pkg/telemetry"
	"github.com/Thermoquad/panelbridge/pkg/transport"
)

// PasswordEnv holds the HTTP Basic password for WebSocket links
const PasswordEnv = "PANELBRIDGE_PASSWORD"

var errNoLink = errors.New("either --port or --url must be specified")

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv(PasswordEnv); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenTransport opens the panel link named by the connection flags
func OpenTransport() (transport.Transport, string, error) {
	if wsURL != "" {
		password := ""
		if wsUsername != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		ws := transport.NewWebSocket(
			transport.WithLogger(logger),
			transport.WithBasicAuth(wsUsername, password),
			transport.WithInsecureTLS(wsNoSSLVerify),
		)
		if err := ws.Open(wsURL, 0); err != nil {
			return nil, "", err
		}
		return ws, fmt.Sprintf("WebSocket: %s", wsURL), nil
	}

	if portName != "" {
		device := transport.FindPort(portName)
		s := transport.NewSerial(transport.WithLogger(logger))
		if err := s.Open(device, baudRate); err != nil {
			return nil, "", err
		}
		return s, fmt.Sprintf("Serial: %s @ %d baud", device, baudRate), nil
	}

	return nil, "", errNoLink
}

// closeTransport closes tr and logs what was left unread
func closeTransport(tr transport.Transport) {
	leftover, err := tr.Close()
	if err != nil && !errors.Is(err, transport.ErrNotOpen) {
		logger.Warn().Err(err).Msg("closing panel link")
	}
	if len(leftover) > 0 {
		logger.Debug().Int("bytes", len(leftover)).Msg("discarded unread panel bytes")
	}
}

// loadRegistry reads --config, or returns the built-in registry
func loadRegistry() (*registry.Registry, error) {
	if configPath == "" {
		return registry.Default(), nil
	}
	return registry.Load(configPath)
}

// newSource builds the simulator connection from --gateway or --mock
func newSource(reg *registry.Registry, mock bool) (telemetry.Source, string, error) {
	if mock {
		return mockSource(reg), "mock", nil
	}
	if gatewayURL == "" {
		return nil, "", errors.New("either --gateway or --mock must be specified")
	}

	var opts []telemetry.GatewayOption
	if wsUsername != "" {
		password, err := GetPassword()
		if err != nil {
			return nil, "", err
		}
		opts = append(opts, telemetry.WithGatewayAuth(wsUsername, password))
	}
	return telemetry.NewGatewaySource(gatewayURL, opts...), gatewayURL, nil
}

// mockSource scripts a slow ramp for every variable so the panel has
// something to show without a simulator.
func mockSource(reg *registry.Registry) *telemetry.MockSource {
	src := telemetry.NewMockSource(nil)
	for i, name := range reg.Names() {
		start := float64(100 * (i + 1))
		steps := make([]float64, 600)
		for j := range steps {
			steps[j] = start + float64(j)*0.5
		}
		src.Script(name, steps...)
	}
	return src
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package telemetry keeps a live copy of flight simulator variables.
//
// A Source is the simulator connection. A Bridge owns one Source on a
// background goroutine, exposes the connected signal and holds the latest
// value of every registered variable.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrConnection      = errors.New("telemetry: connection failed")
	ErrNotConnected    = errors.New("telemetry: not connected")
	ErrConnectionLost  = errors.New("telemetry: connection lost")
	ErrUnknownVariable = errors.New("telemetry: unknown variable")
	ErrNoValue         = errors.New("telemetry: no value available")
	ErrInvalidName     = errors.New("telemetry: invalid variable name")
	ErrAlreadyStarted  = errors.New("telemetry: bridge already started")
)

// Source is a connection to the flight simulator
type Source interface {
	// Connect blocks until the simulator accepts the connection or ctx ends.
	Connect(ctx context.Context) error
	// Disconnect releases the connection.
	Disconnect() error
	// Lookup reads the current value of a variable. It returns ErrNoValue
	// when the simulator has nothing for it yet and ErrConnectionLost when
	// the link is gone.
	Lookup(name string) (float64, error)
}

// ParseName splits a simulator variable name of the form NAME:index.
// Names without an index return index 0.
func ParseName(name string) (string, int, error) {
	base, idx, found := strings.Cut(name, ":")
	if base == "" {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if !found {
		return base, 0, nil
	}

	index, err := strconv.Atoi(idx)
	if err != nil || index < 0 {
		return "", 0, fmt.Errorf("%w: bad index in %q", ErrInvalidName, name)
	}
	return base, index, nil
}

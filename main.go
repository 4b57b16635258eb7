// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Panelbridge - Flight Simulator Panel Bridge
//
// A CLI tool that forwards flight simulator variables to a hardware cockpit
// panel over a serial or WebSocket link.

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/Thermoquad/panelbridge/cmd"
)

func main() {
	err := cmd.Execute()
	if err == nil {
		return
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	var exitErr *cmd.ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}
	os.Exit(1)
}

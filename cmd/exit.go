// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/panelbridge/pkg/bridge"
)

// ExitError carries a process exit status out of a command
type ExitError struct {
	Code   int
	Reason string
	Err    error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *ExitError) Unwrap() error { return e.Err }

// exitFor converts a loop result to the command result. A clean disconnect
// is not an error; a disconnect caused by a link failure exits with 1.
func exitFor(reason bridge.ExitReason, err error) error {
	if reason == bridge.ExitDisconnected {
		if err == nil {
			return nil
		}
		return &ExitError{Code: 1, Reason: "panel link failed", Err: err}
	}
	return &ExitError{Code: reason.Code(), Reason: reason.String(), Err: err}
}

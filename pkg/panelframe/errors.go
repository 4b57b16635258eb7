// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package panelframe

import "errors"

var (
	ErrInvalidInput     = errors.New("panelframe: invalid input")
	ErrShortFrame       = errors.New("panelframe: frame shorter than 5 bytes")
	ErrInvalidStartByte = errors.New("panelframe: invalid start byte")
	ErrInvalidStopByte  = errors.New("panelframe: invalid stop byte")
	ErrInvalidChecksum  = errors.New("panelframe: invalid checksum byte")
	ErrLengthMismatch   = errors.New("panelframe: declared length does not match payload")
	ErrInvalidLength    = errors.New("panelframe: declared length exceeds limit")
)

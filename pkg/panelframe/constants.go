// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package panelframe implements the instrument panel serial frame format.
//
// A frame carries one request id and one payload of up to 255 bytes:
//
//	offset 0       start marker  0xAA
//	offset 1       request id    0-255
//	offset 2       length N      0-255
//	offset 3..3+N  payload
//	offset 3+N     checksum      XOR of every frame byte, checksum position zeroed
//	offset 4+N     stop marker   0x55
//
// The checksum is a plain XOR fold. It catches single-bit errors on a short
// wired link but not multi-bit bursts.
package panelframe

// Framing bytes
const (
	StartByte = 0xAA
	StopByte  = 0x55
)

// Size limits
const (
	Overhead       = 5 // start + id + length + checksum + stop
	MaxPayloadSize = 255
	MaxFrameSize   = Overhead + MaxPayloadSize
	MaxRequestID   = 255
)

// Field offsets
const (
	offsetRequestID = 1
	offsetLength    = 2
	offsetPayload   = 3
)

// Decoder states (internal)
const (
	stateIdle = iota
	stateRequestID
	stateLength
	statePayload
	stateChecksum
	stateStop
)

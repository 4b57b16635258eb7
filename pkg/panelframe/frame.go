// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package panelframe

import "time"

// Frame is a decoded panel frame
type Frame struct {
	RequestID uint8
	Length    uint8 // declared length byte as received
	Payload   []byte
	Checksum  uint8
	Timestamp time.Time
}

// NewFrame builds a frame for the given request id and payload.
// The checksum is computed on Bytes.
func NewFrame(requestID uint8, payload []byte) *Frame {
	return &Frame{
		RequestID: requestID,
		Length:    uint8(len(payload)),
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Bytes encodes the frame to wire format
func (f *Frame) Bytes() ([]byte, error) {
	return Encode(int(f.RequestID), f.Payload)
}

// Size returns the wire size of the frame
func (f *Frame) Size() int {
	return Overhead + len(f.Payload)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package panelframe

import (
	"fmt"
	"time"
)

// Decode validates one complete frame and returns its request id and payload.
//
// Checks run in a fixed order and the first failure is returned:
// ErrShortFrame, ErrInvalidStartByte, ErrInvalidStopByte, ErrInvalidChecksum.
//
// The payload is everything between offset 3 and the checksum byte. The
// declared length byte is not consulted; use DecodeStrict to enforce it.
// The returned payload is a copy and never aliases frame.
func Decode(frame []byte) (uint8, []byte, error) {
	if len(frame) < Overhead {
		return 0, nil, fmt.Errorf("%w: got %d", ErrShortFrame, len(frame))
	}
	if frame[0] != StartByte {
		return 0, nil, fmt.Errorf("%w: 0x%02X", ErrInvalidStartByte, frame[0])
	}

	last := len(frame) - 1
	if frame[last] != StopByte {
		return 0, nil, fmt.Errorf("%w: 0x%02X", ErrInvalidStopByte, frame[last])
	}

	received := frame[last-1]
	if calculated := FrameChecksum(frame); received != calculated {
		return 0, nil, fmt.Errorf("%w: got 0x%02X, expected 0x%02X", ErrInvalidChecksum, received, calculated)
	}

	payload := make([]byte, last-1-offsetPayload)
	copy(payload, frame[offsetPayload:last-1])

	return frame[offsetRequestID], payload, nil
}

// DecodeStrict decodes like Decode and additionally requires the declared
// length byte to equal the payload size.
func DecodeStrict(frame []byte) (*Frame, error) {
	requestID, payload, err := Decode(frame)
	if err != nil {
		return nil, err
	}

	declared := frame[offsetLength]
	if int(declared) != len(payload) {
		return nil, fmt.Errorf("%w: declared %d, got %d", ErrLengthMismatch, declared, len(payload))
	}

	return &Frame{
		RequestID: requestID,
		Length:    declared,
		Payload:   payload,
		Checksum:  frame[len(frame)-2],
		Timestamp: time.Now(),
	}, nil
}

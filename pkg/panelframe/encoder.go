// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package panelframe

import "fmt"

// Encode builds a complete wire frame for requestID and payload.
// requestID must be in [0,255] and payload at most 255 bytes; anything else
// fails with ErrInvalidInput before a frame is produced. Values are never
// truncated or wrapped.
func Encode(requestID int, payload []byte) ([]byte, error) {
	if requestID < 0 || requestID > MaxRequestID {
		return nil, fmt.Errorf("%w: request id %d out of range [0,%d]", ErrInvalidInput, requestID, MaxRequestID)
	}
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrInvalidInput, len(payload), MaxPayloadSize)
	}

	frame := make([]byte, 0, Overhead+len(payload))
	frame = append(frame, StartByte, byte(requestID), byte(len(payload)))
	frame = append(frame, payload...)
	frame = append(frame, 0x00, StopByte)

	frame[len(frame)-2] = FrameChecksum(frame)

	return frame, nil
}

// MustEncode is like Encode but panics on invalid input.
// Intended for constant frames in tests and tools.
func MustEncode(requestID int, payload []byte) []byte {
	frame, err := Encode(requestID, payload)
	if err != nil {
		panic(fmt.Sprintf("panelframe: encode error: %v", err))
	}
	return frame
}

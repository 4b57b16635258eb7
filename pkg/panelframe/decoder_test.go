// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package panelframe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rawFrame builds a frame by hand with a correct checksum
func rawFrame(fields ...byte) []byte {
	frame := append([]byte(nil), fields...)
	frame[len(frame)-2] = FrameChecksum(frame)
	return frame
}

func TestDecode_Valid(t *testing.T) {
	tests := []struct {
		name      string
		frame     []byte
		requestID uint8
		payload   []byte
	}{
		{
			name:      "single byte",
			frame:     rawFrame(StartByte, 0x00, 0x01, 0xBB, 0x00, StopByte),
			requestID: 0x00,
			payload:   []byte{0xBB},
		},
		{
			name:      "empty payload",
			frame:     rawFrame(StartByte, 0xFE, 0x00, 0x00, StopByte),
			requestID: 0xFE,
			payload:   []byte{},
		},
		{
			name:      "multiple bytes",
			frame:     rawFrame(StartByte, 0xCA, 0x04, 0xDE, 0xAD, 0xBE, 0xEF, 0x00, StopByte),
			requestID: 0xCA,
			payload:   []byte{0xDE, 0xAD, 0xBE, 0xEF},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requestID, payload, err := Decode(tt.frame)
			require.NoError(t, err)
			assert.Equal(t, tt.requestID, requestID)
			assert.Equal(t, tt.payload, payload)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		want  error
	}{
		{
			name:  "empty",
			frame: nil,
			want:  ErrShortFrame,
		},
		{
			name:  "four bytes",
			frame: []byte{StartByte, 0x01, 0x00, StopByte},
			want:  ErrShortFrame,
		},
		{
			name:  "invalid start",
			frame: rawFrame(0x24, 0xFE, 0x01, 0x00, 0x00, StopByte),
			want:  ErrInvalidStartByte,
		},
		{
			name:  "invalid stop",
			frame: rawFrame(StartByte, 0xFE, 0x01, 0x00, 0x00, 0x00),
			want:  ErrInvalidStopByte,
		},
		{
			name:  "invalid checksum",
			frame: []byte{StartByte, 0xFE, 0x01, 0x00, 0xCD, StopByte},
			want:  ErrInvalidChecksum,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, payload, err := Decode(tt.frame)
			require.ErrorIs(t, err, tt.want)
			assert.Nil(t, payload)
		})
	}
}

func TestDecode_StartCheckedBeforeStopAndChecksum(t *testing.T) {
	frame := MustEncode(0x11, []byte{0x01, 0x02})
	frame[0] = 0x00
	frame[len(frame)-1] = 0x00
	frame[len(frame)-2] ^= 0xFF

	_, _, err := Decode(frame)
	assert.ErrorIs(t, err, ErrInvalidStartByte)
}

func TestDecode_StopCheckedBeforeChecksum(t *testing.T) {
	frame := MustEncode(0x11, []byte{0x01, 0x02})
	frame[len(frame)-1] = 0x00
	frame[len(frame)-2] ^= 0xFF

	_, _, err := Decode(frame)
	assert.ErrorIs(t, err, ErrInvalidStopByte)
}

func TestDecode_CorruptStartWithValidChecksum(t *testing.T) {
	// Checksum recomputed over the corrupted frame, so only the start byte is wrong
	frame := rawFrame(0xAB, 0x11, 0x01, 0x42, 0x00, StopByte)

	_, _, err := Decode(frame)
	assert.ErrorIs(t, err, ErrInvalidStartByte)
}

func TestDecode_IgnoresDeclaredLength(t *testing.T) {
	// Declared length 9, actual payload 2: tolerated by Decode
	frame := rawFrame(StartByte, 0x21, 0x09, 0x01, 0x02, 0x00, StopByte)

	requestID, payload, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x21), requestID)
	assert.Equal(t, []byte{0x01, 0x02}, payload)
}

func TestDecodeStrict_RejectsLengthMismatch(t *testing.T) {
	frame := rawFrame(StartByte, 0x21, 0x09, 0x01, 0x02, 0x00, StopByte)

	_, err := DecodeStrict(frame)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestDecodeStrict_Valid(t *testing.T) {
	wire := MustEncode(0x33, []byte{0x10, 0x20})

	f, err := DecodeStrict(wire)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x33), f.RequestID)
	assert.Equal(t, uint8(2), f.Length)
	assert.Equal(t, []byte{0x10, 0x20}, f.Payload)
	assert.Equal(t, wire[len(wire)-2], f.Checksum)
	assert.False(t, f.Timestamp.IsZero())
}

func TestDecodeStrict_PropagatesValidationErrors(t *testing.T) {
	wire := MustEncode(0x33, []byte{0x10})
	wire[0] = 0x00

	_, err := DecodeStrict(wire)
	assert.ErrorIs(t, err, ErrInvalidStartByte)
}

func TestDecode_PayloadDoesNotAliasInput(t *testing.T) {
	wire := MustEncode(0x01, []byte{0x01, 0x02})

	_, payload, err := Decode(wire)
	require.NoError(t, err)

	payload[0] = 0xFF
	assert.Equal(t, byte(0x01), wire[3])
}

func TestDecode_SingleBitFlips(t *testing.T) {
	wire := MustEncode(0x42, []byte{0x00, 0x7F, 0x80, 0xFF})

	for pos := range wire {
		for bit := 0; bit < 8; bit++ {
			corrupted := append([]byte(nil), wire...)
			corrupted[pos] ^= 1 << bit

			_, _, err := Decode(corrupted)
			switch pos {
			case 0:
				assert.ErrorIs(t, err, ErrInvalidStartByte, "pos=%d bit=%d", pos, bit)
			case len(wire) - 1:
				assert.ErrorIs(t, err, ErrInvalidStopByte, "pos=%d bit=%d", pos, bit)
			default:
				assert.ErrorIs(t, err, ErrInvalidChecksum, "pos=%d bit=%d", pos, bit)
			}
		}
	}
}

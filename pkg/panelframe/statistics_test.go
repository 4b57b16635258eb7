// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package panelframe

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatistics_Update(t *testing.T) {
	s := NewStatistics()

	s.Update(NewFrame(0x01, nil), nil)
	s.Update(nil, fmt.Errorf("wrapped: %w", ErrInvalidChecksum))
	s.Update(nil, ErrInvalidStopByte)
	s.Update(nil, ErrInvalidStartByte)
	s.Update(nil, ErrInvalidLength)
	s.Update(nil, fmt.Errorf("something else"))

	assert.Equal(t, uint64(6), s.TotalFrames)
	assert.Equal(t, uint64(1), s.ValidFrames)
	assert.Equal(t, uint64(1), s.ChecksumErrors)
	assert.Equal(t, uint64(1), s.StopErrors)
	assert.Equal(t, uint64(1), s.StartErrors)
	assert.Equal(t, uint64(1), s.LengthErrors)
	assert.Equal(t, uint64(1), s.OtherErrors)
	assert.Equal(t, uint64(5), s.Errors())
}

func TestStatistics_StringAndReset(t *testing.T) {
	s := NewStatistics()
	s.StartTime = time.Now().Add(-2 * time.Second)
	s.Update(NewFrame(0x01, nil), nil)
	s.Update(nil, ErrInvalidChecksum)

	out := s.String()
	assert.Contains(t, out, "Total Frames:")
	assert.Contains(t, out, "Checksum Errors:")
	assert.NotContains(t, out, "Stop Errors:")
	assert.Greater(t, s.FrameRate, 0.0)

	s.Reset()
	assert.Zero(t, s.TotalFrames)
	assert.Zero(t, s.ChecksumErrors)
}

func TestFormatFrame(t *testing.T) {
	f := NewFrame(0x01, []byte{0xDE, 0xAD})
	f.Checksum = 0x42

	out := FormatFrame(f, func(id uint8) string {
		if id == 0x01 {
			return "PLANE_ALTITUDE"
		}
		return ""
	})
	assert.Contains(t, out, "PLANE_ALTITUDE (0x01) len=2 chk=0x42")
	assert.Contains(t, out, "Payload: DE AD")

	out = FormatFrame(NewFrame(0x09, nil), nil)
	assert.Contains(t, out, "UNKNOWN (0x09)")
	assert.True(t, strings.HasSuffix(out, "(no payload)\n"))
}

func TestFormatHex(t *testing.T) {
	assert.Equal(t, "AA 00 01 BB 45 55", FormatHex([]byte{0xAA, 0x00, 0x01, 0xBB, 0x45, 0x55}))
	assert.Equal(t, "", FormatHex(nil))
}

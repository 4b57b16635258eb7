// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package panelframe

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Statistics tracks decoded frame counts and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames    uint64
	ValidFrames    uint64
	StartErrors    uint64
	StopErrors     uint64
	ChecksumErrors uint64
	LengthErrors   uint64
	OtherErrors    uint64
	SkippedBytes   uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update counts one decode outcome
func (s *Statistics) Update(frame *Frame, decodeErr error) {
	s.TotalFrames++
	s.LastUpdateTime = time.Now()

	switch {
	case decodeErr == nil && frame != nil:
		s.ValidFrames++
	case errors.Is(decodeErr, ErrInvalidChecksum):
		s.ChecksumErrors++
	case errors.Is(decodeErr, ErrInvalidStopByte):
		s.StopErrors++
	case errors.Is(decodeErr, ErrInvalidStartByte):
		s.StartErrors++
	case errors.Is(decodeErr, ErrInvalidLength), errors.Is(decodeErr, ErrLengthMismatch), errors.Is(decodeErr, ErrShortFrame):
		s.LengthErrors++
	default:
		s.OtherErrors++
	}
}

// Errors returns the total number of failed frames
func (s *Statistics) Errors() uint64 {
	return s.StartErrors + s.StopErrors + s.ChecksumErrors + s.LengthErrors + s.OtherErrors
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var validPercent float64
	if s.TotalFrames > 0 {
		validPercent = float64(s.ValidFrames) * 100.0 / float64(s.TotalFrames)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "=== Statistics (%.0f seconds) ===\n", time.Since(s.StartTime).Seconds())
	fmt.Fprintf(&sb, "Total Frames:    %8d\n", s.TotalFrames)
	fmt.Fprintf(&sb, "Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, validPercent)

	if s.ChecksumErrors > 0 {
		fmt.Fprintf(&sb, "Checksum Errors: %8d\n", s.ChecksumErrors)
	}
	if s.StopErrors > 0 {
		fmt.Fprintf(&sb, "Stop Errors:     %8d\n", s.StopErrors)
	}
	if s.StartErrors > 0 {
		fmt.Fprintf(&sb, "Start Errors:    %8d\n", s.StartErrors)
	}
	if s.LengthErrors > 0 {
		fmt.Fprintf(&sb, "Length Errors:   %8d\n", s.LengthErrors)
	}
	if s.OtherErrors > 0 {
		fmt.Fprintf(&sb, "Other Errors:    %8d\n", s.OtherErrors)
	}
	if s.SkippedBytes > 0 {
		fmt.Fprintf(&sb, "Skipped Bytes:   %8d\n", s.SkippedBytes)
	}

	fmt.Fprintf(&sb, "Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	fmt.Fprintf(&sb, "Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	sb.WriteString("================================\n")

	return sb.String()
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}

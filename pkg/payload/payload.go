// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package payload converts telemetry values to and from frame payload bytes.
package payload

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// Encoding selects the payload representation of a telemetry value
type Encoding int

const (
	// Float32 is an IEEE-754 single, little-endian (4 bytes)
	Float32 Encoding = iota
	// Float64 is an IEEE-754 double, little-endian (8 bytes)
	Float64
	// Milli is the value times 1000 as a saturating int32, little-endian (4 bytes)
	Milli
	// CBOR is a CBOR float (smallest lossless width)
	CBOR
)

// ErrInvalidPayload is returned when payload bytes cannot be decoded
var ErrInvalidPayload = errors.New("payload: invalid payload")

// ParseEncoding parses an encoding name as used on the command line
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "f32", "float32":
		return Float32, nil
	case "f64", "float64":
		return Float64, nil
	case "i32", "milli":
		return Milli, nil
	case "cbor":
		return CBOR, nil
	default:
		return Float32, fmt.Errorf("payload: unknown encoding %q (use f32, f64, i32 or cbor)", s)
	}
}

// String returns the command line name of the encoding
func (e Encoding) String() string {
	switch e {
	case Float32:
		return "f32"
	case Float64:
		return "f64"
	case Milli:
		return "i32"
	case CBOR:
		return "cbor"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// Encode converts v to payload bytes
func (e Encoding) Encode(v float64) ([]byte, error) {
	switch e {
	case Float32:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(v)))
		return buf, nil

	case Float64:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
		return buf, nil

	case Milli:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(toMilli(v)))
		return buf, nil

	case CBOR:
		data, err := cborEncMode.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("payload: cbor encode: %w", err)
		}
		return data, nil

	default:
		return nil, fmt.Errorf("payload: unsupported encoding %d", int(e))
	}
}

// Decode converts payload bytes back to a value
func (e Encoding) Decode(p []byte) (float64, error) {
	switch e {
	case Float32:
		if len(p) != 4 {
			return 0, fmt.Errorf("%w: f32 needs 4 bytes, got %d", ErrInvalidPayload, len(p))
		}
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(p))), nil

	case Float64:
		if len(p) != 8 {
			return 0, fmt.Errorf("%w: f64 needs 8 bytes, got %d", ErrInvalidPayload, len(p))
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(p)), nil

	case Milli:
		if len(p) != 4 {
			return 0, fmt.Errorf("%w: i32 needs 4 bytes, got %d", ErrInvalidPayload, len(p))
		}
		return float64(int32(binary.LittleEndian.Uint32(p))) / 1000.0, nil

	case CBOR:
		var v float64
		if err := cbor.Unmarshal(p, &v); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return v, nil

	default:
		return 0, fmt.Errorf("payload: unsupported encoding %d", int(e))
	}
}

// cborEncMode shortens floats to the smallest width that keeps the value
var cborEncMode = func() cbor.EncMode {
	mode, err := cbor.EncOptions{ShortestFloat: cbor.ShortestFloat16}.EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

func toMilli(v float64) int32 {
	scaled := math.Round(v * 1000)
	switch {
	case math.IsNaN(scaled):
		return 0
	case scaled >= math.MaxInt32:
		return math.MaxInt32
	case scaled <= math.MinInt32:
		return math.MinInt32
	default:
		return int32(scaled)
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package panelframe

import (
	"fmt"
	"time"
)

// Result is one outcome of feeding bytes to a Decoder: either a frame or an
// error, never both.
type Result struct {
	Frame *Frame
	Err   error
}

// Decoder extracts frames from a continuous byte stream.
//
// The wire format has no byte stuffing, so a start byte may also appear in a
// payload. The decoder uses the declared length to find the end of a frame
// and validates it with Decode. When a candidate frame fails, the bytes
// consumed after its start byte are scanned again, so a spurious start byte
// in line noise costs at most one error and never hides the next real frame.
type Decoder struct {
	state     int
	maxLength int
	raw       []byte // bytes of the frame in progress, from its start byte
	skipped   uint64 // bytes discarded while idle
}

// NewDecoder creates a stream decoder accepting any payload length
func NewDecoder() *Decoder {
	return NewDecoderWithLimit(MaxPayloadSize)
}

// NewDecoderWithLimit creates a stream decoder that rejects declared lengths
// above maxLength as soon as the length byte arrives.
func NewDecoderWithLimit(maxLength int) *Decoder {
	if maxLength < 0 || maxLength > MaxPayloadSize {
		maxLength = MaxPayloadSize
	}
	return &Decoder{
		state:     stateIdle,
		maxLength: maxLength,
		raw:       make([]byte, 0, MaxFrameSize),
	}
}

// Reset drops any partial frame and returns to the idle state
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.raw = d.raw[:0]
}

// RawBytes returns the bytes of the frame currently being assembled
func (d *Decoder) RawBytes() []byte {
	return d.raw
}

// Skipped returns the number of bytes discarded while searching for a start byte
func (d *Decoder) Skipped() uint64 {
	return d.skipped
}

// Feed processes p and returns every frame and error it completes, in stream
// order. Partial frames are kept for the next call.
func (d *Decoder) Feed(p []byte) []Result {
	var results []Result
	emit := func(r Result) {
		results = append(results, r)
	}
	for _, b := range p {
		d.step(b, emit)
	}
	return results
}

func (d *Decoder) step(b byte, emit func(Result)) {
	switch d.state {
	case stateIdle:
		if b != StartByte {
			d.skipped++
			return
		}
		d.raw = append(d.raw[:0], b)
		d.state = stateRequestID

	case stateRequestID:
		d.raw = append(d.raw, b)
		d.state = stateLength

	case stateLength:
		d.raw = append(d.raw, b)
		if int(b) > d.maxLength {
			d.fail(fmt.Errorf("%w: %d (max %d)", ErrInvalidLength, b, d.maxLength), emit)
			return
		}
		if b == 0 {
			d.state = stateChecksum
		} else {
			d.state = statePayload
		}

	case statePayload:
		d.raw = append(d.raw, b)
		if len(d.raw)-offsetPayload >= int(d.raw[offsetLength]) {
			d.state = stateChecksum
		}

	case stateChecksum:
		d.raw = append(d.raw, b)
		d.state = stateStop

	case stateStop:
		d.raw = append(d.raw, b)
		requestID, payload, err := Decode(d.raw)
		if err != nil {
			d.fail(err, emit)
			return
		}
		frame := &Frame{
			RequestID: requestID,
			Length:    d.raw[offsetLength],
			Payload:   payload,
			Checksum:  d.raw[len(d.raw)-2],
			Timestamp: time.Now(),
		}
		d.Reset()
		emit(Result{Frame: frame})

	default:
		state := d.state
		d.Reset()
		emit(Result{Err: fmt.Errorf("panelframe: invalid decoder state %d", state)})
	}
}

// fail reports err and rescans everything after the failed start byte
func (d *Decoder) fail(err error, emit func(Result)) {
	emit(Result{Err: err})

	replay := append([]byte(nil), d.raw[1:]...)
	d.Reset()
	for _, b := range replay {
		d.step(b, emit)
	}
}

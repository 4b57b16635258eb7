// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport moves raw bytes between the host and the panel.
//
// Implementations carry no framing knowledge. Read never blocks: it returns
// whatever arrived since the last call, or nil when nothing is pending.
package transport

import (
	"errors"

	"github.com/rs/zerolog"
)

// Transport is a byte stream to the panel
type Transport interface {
	// Open connects to port. baud is ignored by transports without a line rate.
	Open(port string, baud int) error
	// Close releases the link and returns any received bytes not yet read.
	Close() ([]byte, error)
	// Write sends p in full.
	Write(p []byte) error
	// Read returns pending bytes, or nil, nil when none are pending.
	Read() ([]byte, error)
}

var (
	ErrNotOpen     = errors.New("transport: not open")
	ErrAlreadyOpen = errors.New("transport: already open")
)

// Option configures the serial and WebSocket transports
type Option func(*options)

type options struct {
	logger   zerolog.Logger
	bufChunk int
	username string
	password string
	insecure bool
}

func defaultOptions() options {
	return options{
		logger:   zerolog.Nop(),
		bufChunk: 256,
	}
}

// WithLogger sets the logger used for link diagnostics
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithReadBuffer sets the size of a single read from the underlying device
func WithReadBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bufChunk = n
		}
	}
}

// WithBasicAuth sets HTTP Basic credentials for the WebSocket handshake
func WithBasicAuth(username, password string) Option {
	return func(o *options) {
		o.username = username
		o.password = password
	}
}

// WithInsecureTLS skips certificate verification for wss:// URLs
func WithInsecureTLS(skip bool) Option {
	return func(o *options) { o.insecure = skip }
}

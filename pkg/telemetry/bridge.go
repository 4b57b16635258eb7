// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultConnectTimeout bounds Source.Connect
const DefaultConnectTimeout = 30 * time.Second

// Value is the last known state of one variable
type Value struct {
	Name      string
	Value     float64
	Valid     bool
	UpdatedAt time.Time
}

// Option configures a Bridge
type Option func(*Bridge)

// WithConnectTimeout sets how long Start waits for the simulator
func WithConnectTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.connectTimeout = d
		}
	}
}

// WithLogger sets the logger used for connection events
func WithLogger(l zerolog.Logger) Option {
	return func(b *Bridge) { b.log = l }
}

// Bridge owns a Source and the mapping of variable values.
//
// The connected signal is read without locking. The mapping is guarded by a
// mutex; lookups run outside it.
type Bridge struct {
	src            Source
	names          []string
	index          map[string]int
	connectTimeout time.Duration
	log            zerolog.Logger

	connected atomic.Bool
	started   atomic.Bool

	mu     sync.Mutex
	values []Value
	err    error

	ready     chan struct{}
	done      chan struct{}
	stop      chan struct{}
	stopOnce  sync.Once
	readyOnce sync.Once
}

// NewBridge creates a bridge for the given variable names. Duplicate names
// are kept once, in first-seen order.
func NewBridge(src Source, names []string, opts ...Option) *Bridge {
	b := &Bridge{
		src:            src,
		index:          make(map[string]int, len(names)),
		connectTimeout: DefaultConnectTimeout,
		log:            zerolog.Nop(),
		ready:          make(chan struct{}),
		done:           make(chan struct{}),
		stop:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	for _, name := range names {
		if _, dup := b.index[name]; dup {
			continue
		}
		b.index[name] = len(b.names)
		b.names = append(b.names, name)
		b.values = append(b.values, Value{Name: name})
	}
	return b
}

// Start launches the connection goroutine. Cancelling ctx disconnects.
func (b *Bridge) Start(ctx context.Context) error {
	if !b.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	go b.run(ctx)
	return nil
}

func (b *Bridge) run(ctx context.Context) {
	defer close(b.done)

	b.log.Debug().Dur("timeout", b.connectTimeout).Msg("connecting to simulator")

	// Disconnect aborts a pending connect
	cctx, cancel := context.WithTimeout(ctx, b.connectTimeout)
	go func() {
		select {
		case <-b.stop:
			cancel()
		case <-cctx.Done():
		}
	}()
	err := b.src.Connect(cctx)
	cancel()
	if err != nil {
		b.setErr(fmt.Errorf("%w: %w", ErrConnection, err))
		b.log.Error().Err(err).Msg("simulator connection failed")
		return
	}

	b.connected.Store(true)
	b.readyOnce.Do(func() { close(b.ready) })
	b.log.Info().Msg("simulator connected")

	select {
	case <-ctx.Done():
	case <-b.stop:
	}

	b.connected.Store(false)
	if err := b.src.Disconnect(); err != nil {
		b.log.Warn().Err(err).Msg("simulator disconnect failed")
	}
	b.log.Info().Msg("simulator disconnected")
}

// Ready is closed once the simulator connection is established
func (b *Bridge) Ready() <-chan struct{} { return b.ready }

// Done is closed when the connection goroutine has exited, after a failed
// connect or after a disconnect.
func (b *Bridge) Done() <-chan struct{} { return b.done }

// Err returns the connection failure, if any
func (b *Bridge) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

func (b *Bridge) setErr(err error) {
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
}

// Connected reports the connected signal
func (b *Bridge) Connected() bool {
	return b.connected.Load()
}

// Disconnect clears the connected signal and asks the goroutine to release
// the source. It does not wait; use Done for that.
func (b *Bridge) Disconnect() {
	b.connected.Store(false)
	b.stopOnce.Do(func() { close(b.stop) })
}

// Names returns the registered variable names in order
func (b *Bridge) Names() []string {
	return append([]string(nil), b.names...)
}

// Refresh reads the named variables, or all of them when names is empty,
// and stores the results. While disconnected it returns ErrNotConnected and
// leaves the last values in place.
func (b *Bridge) Refresh(names ...string) error {
	if !b.Connected() {
		return ErrNotConnected
	}

	if len(names) == 0 {
		names = b.names
	}
	for _, name := range names {
		if _, ok := b.index[name]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownVariable, name)
		}
	}

	type result struct {
		idx   int
		value float64
		valid bool
	}
	results := make([]result, 0, len(names))
	var errs []error

	for _, name := range names {
		v, err := b.src.Lookup(name)
		switch {
		case err == nil:
			results = append(results, result{idx: b.index[name], value: v, valid: true})
		case errors.Is(err, ErrNoValue):
			results = append(results, result{idx: b.index[name]})
		case errors.Is(err, ErrConnectionLost):
			b.log.Error().Err(err).Str("var", name).Msg("simulator connection lost")
			b.Disconnect()
			return err
		default:
			errs = append(errs, fmt.Errorf("lookup %s: %w", name, err))
		}
	}

	now := time.Now()
	b.mu.Lock()
	for _, r := range results {
		b.values[r.idx].Value = r.value
		b.values[r.idx].Valid = r.valid
		b.values[r.idx].UpdatedAt = now
	}
	b.mu.Unlock()

	return errors.Join(errs...)
}

// Snapshot returns a copy of all values in registration order
func (b *Bridge) Snapshot() []Value {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Value(nil), b.values...)
}

// Value returns the last known value of name
func (b *Bridge) Value(name string) (Value, bool) {
	idx, ok := b.index[name]
	if !ok {
		return Value{}, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.values[idx], true
}

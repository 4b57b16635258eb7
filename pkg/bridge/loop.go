// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package bridge runs the main loop that forwards simulator telemetry to the
// panel.
//
// Each tick refreshes the telemetry values, writes one frame per forwarded
// variable, publishes the snapshot to an optional Sink and handles any frames
// the panel sent back.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/panelbridge/pkg/panelframe"
	"github.com/Thermoquad/panelbridge/pkg/payload"
	"github.com/Thermoquad/panelbridge/pkg/registry"
	"github.com/Thermoquad/panelbridge/pkg/telemetry"
	"github.com/Thermoquad/panelbridge/pkg/transport"
)

// DefaultInterval is the time between two ticks
const DefaultInterval = 100 * time.Millisecond

// shutdownTimeout bounds the wait for the telemetry bridge after an interrupt
const shutdownTimeout = 5 * time.Second

// ErrTransport wraps a transport failure that ended the loop
var ErrTransport = errors.New("bridge: transport failed")

// ExitReason says why Run returned
type ExitReason int

const (
	ExitDisconnected   ExitReason = iota // simulator connection ended
	ExitNeverConnected                   // simulator connection never came up
	ExitInterrupted                      // context cancelled
)

// Code returns the process exit status for r
func (r ExitReason) Code() int {
	switch r {
	case ExitNeverConnected:
		return -1
	case ExitInterrupted:
		return -2
	default:
		return 0
	}
}

func (r ExitReason) String() string {
	switch r {
	case ExitDisconnected:
		return "disconnected"
	case ExitNeverConnected:
		return "never connected"
	case ExitInterrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("ExitReason(%d)", int(r))
	}
}

// TelemetryBridge is the part of telemetry.Bridge the loop drives
type TelemetryBridge interface {
	Ready() <-chan struct{}
	Done() <-chan struct{}
	Err() error
	Connected() bool
	Refresh(names ...string) error
	Snapshot() []telemetry.Value
	Disconnect()
}

// Sink receives every snapshot after it has been forwarded
type Sink interface {
	Publish(values []telemetry.Value) error
}

// HandlerFunc handles one valid inbound frame
type HandlerFunc func(f *panelframe.Frame) error

// Option configures a Loop
type Option func(*Loop)

// WithInterval sets the tick period
func WithInterval(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.interval = d
		}
	}
}

// WithEncoding sets the payload encoding for forwarded values
func WithEncoding(e payload.Encoding) Option {
	return func(l *Loop) { l.encoding = e }
}

// WithSendOnChange only writes a variable when its value changed
func WithSendOnChange(on bool) Option {
	return func(l *Loop) { l.sendOnChange = on }
}

// WithSink adds s to the sinks that receive each snapshot
func WithSink(s Sink) Option {
	return func(l *Loop) {
		if s != nil {
			l.sinks = append(l.sinks, s)
		}
	}
}

// WithMetrics records loop activity in m
func WithMetrics(m *Metrics) Option {
	return func(l *Loop) {
		if m != nil {
			l.metrics = m
		}
	}
}

// WithLogger sets the loop logger
func WithLogger(log zerolog.Logger) Option {
	return func(l *Loop) { l.log = log }
}

// Loop forwards telemetry to the panel until the simulator disconnects or
// the context ends.
type Loop struct {
	tel      TelemetryBridge
	tr       transport.Transport
	reg      *registry.Registry
	interval time.Duration
	encoding payload.Encoding
	sinks    []Sink
	metrics  *Metrics
	log      zerolog.Logger

	sendOnChange bool
	lastSent     map[uint8]float64
	handlers     map[uint8]HandlerFunc
	decoder      *panelframe.Decoder

	statsMu sync.Mutex
	stats   *panelframe.Statistics
}

// NewLoop creates a loop. The transport must already be open.
func NewLoop(tel TelemetryBridge, tr transport.Transport, reg *registry.Registry, opts ...Option) *Loop {
	l := &Loop{
		tel:      tel,
		tr:       tr,
		reg:      reg,
		interval: DefaultInterval,
		encoding: payload.Float32,
		log:      zerolog.Nop(),
		lastSent: make(map[uint8]float64),
		handlers: make(map[uint8]HandlerFunc),
		decoder:  panelframe.NewDecoder(),
		stats:    panelframe.NewStatistics(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.metrics == nil {
		l.metrics = NewMetrics(nil)
	}
	return l
}

// Handle registers h for inbound frames with request id id, replacing the
// default resend behaviour for that id.
func (l *Loop) Handle(id uint8, h HandlerFunc) {
	l.handlers[id] = h
}

// Stats returns a copy of the inbound frame statistics
func (l *Loop) Stats() panelframe.Statistics {
	l.statsMu.Lock()
	defer l.statsMu.Unlock()
	s := *l.stats
	s.CalculateRates()
	return s
}

// Run blocks until the simulator connects, then forwards telemetry every
// interval. It returns ExitNeverConnected with the connection error when the
// simulator never came up, ExitDisconnected when it went away and
// ExitInterrupted when ctx ends.
func (l *Loop) Run(ctx context.Context) (ExitReason, error) {
	select {
	case <-l.tel.Ready():
	case <-l.tel.Done():
		if ctx.Err() != nil {
			return ExitInterrupted, nil
		}
		select {
		case <-l.tel.Ready():
		default:
			return ExitNeverConnected, l.tel.Err()
		}
	case <-ctx.Done():
		l.shutdown()
		return ExitInterrupted, nil
	}

	l.metrics.Connected.Set(1)
	defer l.metrics.Connected.Set(0)
	l.log.Info().Dur("interval", l.interval).Str("encoding", l.encoding.String()).Msg("forwarding telemetry")

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			l.shutdown()
			return ExitInterrupted, nil
		}
		if !l.tel.Connected() {
			return l.disconnected(ctx, nil)
		}
		if err := l.tick(); err != nil {
			l.tel.Disconnect()
			return l.disconnected(ctx, err)
		}

		select {
		case <-ctx.Done():
			l.shutdown()
			return ExitInterrupted, nil
		case <-l.tel.Done():
			return l.disconnected(ctx, nil)
		case <-ticker.C:
		}
	}
}

// disconnected reports a bridge that stopped. A bridge sharing ctx stops on
// the same interrupt, so a done ctx wins over the disconnect.
func (l *Loop) disconnected(ctx context.Context, err error) (ExitReason, error) {
	if ctx.Err() != nil {
		l.shutdown()
		return ExitInterrupted, nil
	}
	return ExitDisconnected, err
}

// shutdown disconnects the bridge and waits for it to release the source
func (l *Loop) shutdown() {
	l.tel.Disconnect()
	select {
	case <-l.tel.Done():
	case <-time.After(shutdownTimeout):
		l.log.Warn().Msg("telemetry bridge did not stop in time")
	}
}

// tick runs one refresh, forward and receive cycle
func (l *Loop) tick() error {
	if err := l.tel.Refresh(); err != nil {
		switch {
		case errors.Is(err, telemetry.ErrNotConnected), errors.Is(err, telemetry.ErrConnectionLost):
			// The loop sees the disconnect on its next check
		default:
			l.metrics.RefreshErrors.Inc()
			l.log.Warn().Err(err).Msg("telemetry refresh failed")
		}
	}

	snap := l.tel.Snapshot()
	l.forward(snap)

	for _, sink := range l.sinks {
		if err := sink.Publish(snap); err != nil {
			l.log.Warn().Err(err).Msg("snapshot publish failed")
		}
	}

	return l.receive()
}

// forward writes one frame per forwarded variable with a valid value
func (l *Loop) forward(snap []telemetry.Value) {
	values := make(map[string]telemetry.Value, len(snap))
	for _, v := range snap {
		values[v.Name] = v
	}

	for _, v := range l.reg.Forwarded() {
		val, ok := values[v.Name]
		if !ok || !val.Valid {
			continue
		}
		if l.sendOnChange {
			if last, sent := l.lastSent[v.RequestID]; sent && last == val.Value {
				continue
			}
		}
		if err := l.send(v, val.Value); err != nil {
			l.log.Warn().Err(err).Str("var", v.Name).Msg("forward failed")
			continue
		}
		l.lastSent[v.RequestID] = val.Value
	}
}

// send encodes value and writes its frame
func (l *Loop) send(v registry.Variable, value float64) error {
	p, err := l.encoding.Encode(value)
	if err != nil {
		return err
	}
	frame, err := panelframe.Encode(int(v.RequestID), p)
	if err != nil {
		return err
	}
	if err := l.tr.Write(frame); err != nil {
		l.metrics.WriteErrors.Inc()
		return err
	}
	l.metrics.FramesSent.Inc()
	l.log.Trace().Str("var", v.Name).Uint8("id", v.RequestID).Float64("value", value).Msg("frame sent")
	return nil
}

// receive drains the transport and dispatches every decoded frame
func (l *Loop) receive() error {
	data, err := l.tr.Read()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if len(data) == 0 {
		return nil
	}

	results := l.decoder.Feed(data)
	l.statsMu.Lock()
	l.stats.SkippedBytes = l.decoder.Skipped()
	l.statsMu.Unlock()

	for _, res := range results {
		l.statsMu.Lock()
		l.stats.Update(res.Frame, res.Err)
		l.statsMu.Unlock()

		if res.Err != nil {
			l.metrics.DecodeErrors.WithLabelValues(decodeErrorKind(res.Err)).Inc()
			l.log.Debug().Err(res.Err).Msg("inbound frame rejected")
			continue
		}
		l.metrics.FramesReceived.Inc()
		l.dispatch(res.Frame)
	}
	return nil
}

// dispatch routes a frame to its handler. Without one, an empty frame for a
// forwarded variable asks for that variable to be sent again.
func (l *Loop) dispatch(f *panelframe.Frame) {
	if h, ok := l.handlers[f.RequestID]; ok {
		if err := h(f); err != nil {
			l.log.Warn().Err(err).Uint8("id", f.RequestID).Msg("frame handler failed")
		}
		return
	}

	v, ok := l.reg.ByRequestID(f.RequestID)
	if !ok || len(f.Payload) != 0 {
		l.metrics.UnknownFrames.Inc()
		l.log.Debug().Uint8("id", f.RequestID).Int("len", len(f.Payload)).Msg("unhandled frame")
		return
	}

	if err := l.Resend(v.Name); err != nil {
		l.log.Debug().Err(err).Str("var", v.Name).Msg("resend skipped")
	}
}

// Resend writes the current value of a forwarded variable immediately
func (l *Loop) Resend(name string) error {
	v, ok := l.reg.Lookup(name)
	if !ok || !v.Forward {
		return fmt.Errorf("%w: %s", telemetry.ErrUnknownVariable, name)
	}

	for _, val := range l.tel.Snapshot() {
		if val.Name != name {
			continue
		}
		if !val.Valid {
			return fmt.Errorf("%w: %s", telemetry.ErrNoValue, name)
		}
		if err := l.send(v, val.Value); err != nil {
			return err
		}
		l.lastSent[v.RequestID] = val.Value
		return nil
	}
	return fmt.Errorf("%w: %s", telemetry.ErrUnknownVariable, name)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/panelbridge/pkg/panelframe"
	"github.com/Thermoquad/panelbridge/pkg/payload"
	"github.com/Thermoquad/panelbridge/pkg/registry"
	"github.com/Thermoquad/panelbridge/pkg/telemetry"
	"github.com/Thermoquad/panelbridge/pkg/transport"
)

// countingSink records snapshots and cancels after limit publications
type countingSink struct {
	limit  int
	cancel context.CancelFunc
	snaps  [][]telemetry.Value
}

func (s *countingSink) Publish(values []telemetry.Value) error {
	s.snaps = append(s.snaps, values)
	if s.limit > 0 && len(s.snaps) >= s.limit {
		s.cancel()
	}
	return nil
}

type fixture struct {
	src  *telemetry.MockSource
	tel  *telemetry.Bridge
	tr   *transport.Mock
	reg  *registry.Registry
	ctx  context.Context
	stop context.CancelFunc
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	reg, err := registry.New([]registry.Variable{
		{Name: "COM_ACTIVE_FREQUENCY:1", RequestID: 1, Forward: true},
		{Name: "PLANE_ALTITUDE", RequestID: 2, Forward: true},
		{Name: "COM_STANDBY_FREQUENCY:1"},
	})
	require.NoError(t, err)

	src := telemetry.NewMockSource(map[string]float64{
		"COM_ACTIVE_FREQUENCY:1":  118.5,
		"PLANE_ALTITUDE":          3500,
		"COM_STANDBY_FREQUENCY:1": 121.9,
	})

	tr := transport.NewMock()
	require.NoError(t, tr.Open("mock", 115200))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	tel := telemetry.NewBridge(src, reg.Names())
	return &fixture{src: src, tel: tel, tr: tr, reg: reg, ctx: ctx, stop: cancel}
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	require.NoError(t, f.tel.Start(f.ctx))
}

// sentFrames decodes everything written to the mock transport
func sentFrames(t *testing.T, tr *transport.Mock) []*panelframe.Frame {
	t.Helper()
	var frames []*panelframe.Frame
	for _, chunk := range tr.Sent() {
		f, err := panelframe.DecodeStrict(chunk)
		require.NoError(t, err)
		frames = append(frames, f)
	}
	return frames
}

func countID(frames []*panelframe.Frame, id uint8) int {
	n := 0
	for _, f := range frames {
		if f.RequestID == id {
			n++
		}
	}
	return n
}

func TestExitReasonCodes(t *testing.T) {
	assert.Equal(t, 0, ExitDisconnected.Code())
	assert.Equal(t, -1, ExitNeverConnected.Code())
	assert.Equal(t, -2, ExitInterrupted.Code())
	assert.Equal(t, "interrupted", ExitInterrupted.String())
}

func TestRunNeverConnected(t *testing.T) {
	f := newFixture(t)
	f.src.SetConnectError(errors.New("no simulator"))
	f.start(t)

	reason, err := NewLoop(f.tel, f.tr, f.reg).Run(f.ctx)
	assert.Equal(t, ExitNeverConnected, reason)
	assert.ErrorIs(t, err, telemetry.ErrConnection)
	assert.Empty(t, f.tr.Sent())
}

func TestRunInterruptedBeforeConnect(t *testing.T) {
	f := newFixture(t)
	f.src.SetConnectDelay(time.Minute)
	f.start(t)

	ctx, cancel := context.WithCancel(f.ctx)
	cancel()

	reason, err := NewLoop(f.tel, f.tr, f.reg).Run(ctx)
	assert.Equal(t, ExitInterrupted, reason)
	assert.NoError(t, err)
}

// stoppingSink cancels the shared context and holds the tick until the
// bridge has seen the same cancellation, as a SIGINT mid-refresh does.
type stoppingSink struct {
	cancel context.CancelFunc
	tel    *telemetry.Bridge
}

func (s *stoppingSink) Publish([]telemetry.Value) error {
	s.cancel()
	<-s.tel.Done()
	return nil
}

func TestRunInterruptedMidTickSharedContext(t *testing.T) {
	for i := 0; i < 50; i++ {
		f := newFixture(t)
		ctx, cancel := context.WithCancel(f.ctx)
		require.NoError(t, f.tel.Start(ctx))

		loop := NewLoop(f.tel, f.tr, f.reg,
			WithInterval(time.Millisecond),
			WithSink(&stoppingSink{cancel: cancel, tel: f.tel}),
		)

		reason, err := loop.Run(ctx)
		require.NoError(t, err)
		require.Equal(t, ExitInterrupted, reason, "iteration %d", i)
	}
}

func TestRunInterruptedPendingConnectSharedContext(t *testing.T) {
	for i := 0; i < 50; i++ {
		f := newFixture(t)
		f.src.SetConnectDelay(time.Minute)
		ctx, cancel := context.WithCancel(f.ctx)
		require.NoError(t, f.tel.Start(ctx))

		cancel()
		<-f.tel.Done()

		reason, err := NewLoop(f.tel, f.tr, f.reg).Run(ctx)
		require.NoError(t, err)
		require.Equal(t, ExitInterrupted, reason, "iteration %d", i)
	}
}

func TestRunForwardsValues(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	ctx, cancel := context.WithCancel(f.ctx)
	sink := &countingSink{limit: 3, cancel: cancel}
	loop := NewLoop(f.tel, f.tr, f.reg, WithInterval(time.Millisecond), WithSink(sink))

	reason, err := loop.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExitInterrupted, reason)
	assert.Equal(t, -2, reason.Code())
	assert.Equal(t, 1, f.src.Disconnects())

	frames := sentFrames(t, f.tr)
	assert.Equal(t, 3, countID(frames, 1))
	assert.Equal(t, 3, countID(frames, 2))
	assert.Len(t, frames, 6, "polled-only variable is never forwarded")

	want, err := payload.Float32.Encode(118.5)
	require.NoError(t, err)
	assert.Equal(t, want, frames[0].Payload)

	require.Len(t, sink.snaps, 3)
	assert.Equal(t, 121.9, sink.snaps[0][2].Value)
}

func TestRunSendOnChangeAndResend(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	// Panel asks for id 1 again; id 3 is not bound to anything
	f.tr.InjectRx(panelframe.MustEncode(1, nil))
	f.tr.InjectRx(panelframe.MustEncode(3, nil))

	ctx, cancel := context.WithCancel(f.ctx)
	sink := &countingSink{limit: 4, cancel: cancel}
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	loop := NewLoop(f.tel, f.tr, f.reg,
		WithInterval(time.Millisecond),
		WithSendOnChange(true),
		WithSink(sink),
		WithMetrics(metrics),
	)

	reason, err := loop.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExitInterrupted, reason)

	frames := sentFrames(t, f.tr)
	assert.Equal(t, 2, countID(frames, 1), "one forward plus one resend")
	assert.Equal(t, 1, countID(frames, 2))

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.FramesSent))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.FramesReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.UnknownFrames))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.Connected))

	stats := loop.Stats()
	assert.Equal(t, uint64(2), stats.ValidFrames)
}

func TestRunCustomHandler(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.tr.InjectRx(panelframe.MustEncode(7, []byte{0x01, 0x02}))
	f.tr.InjectRx([]byte{0xAA, 0x07, 0x00, 0x00, 0x55}) // bad checksum

	ctx, cancel := context.WithCancel(f.ctx)
	metrics := NewMetrics(nil)
	loop := NewLoop(f.tel, f.tr, f.reg,
		WithInterval(time.Millisecond),
		WithSink(&countingSink{limit: 3, cancel: cancel}),
		WithMetrics(metrics),
	)

	var got []*panelframe.Frame
	loop.Handle(7, func(fr *panelframe.Frame) error {
		got = append(got, fr)
		return nil
	})

	_, err := loop.Run(ctx)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, []byte{0x01, 0x02}, got[0].Payload)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DecodeErrors.WithLabelValues("checksum")))
}

func TestRunSimulatorDisconnects(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	<-f.tel.Ready()
	f.src.FailAfter(5)

	loop := NewLoop(f.tel, f.tr, f.reg, WithInterval(time.Millisecond))
	reason, err := loop.Run(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, ExitDisconnected, reason)
	assert.Equal(t, 0, reason.Code())
	assert.False(t, f.tel.Connected())
}

func TestRunTransportFailure(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	_, err := f.tr.Close()
	require.NoError(t, err)

	loop := NewLoop(f.tel, f.tr, f.reg, WithInterval(time.Millisecond))
	reason, err := loop.Run(f.ctx)
	assert.Equal(t, ExitDisconnected, reason)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, transport.ErrNotOpen)
}

func TestResendUnknownVariable(t *testing.T) {
	f := newFixture(t)
	loop := NewLoop(f.tel, f.tr, f.reg)

	assert.ErrorIs(t, loop.Resend("COM_STANDBY_FREQUENCY:1"), telemetry.ErrUnknownVariable)
	assert.ErrorIs(t, loop.Resend("NOPE"), telemetry.ErrUnknownVariable)
	assert.ErrorIs(t, loop.Resend("PLANE_ALTITUDE"), telemetry.ErrNoValue)
}

func TestRunCountsSkippedNoise(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	// No start byte, so the decoder yields no result for this chunk
	f.tr.InjectRx([]byte{0x01, 0x02, 0x03})

	ctx, cancel := context.WithCancel(f.ctx)
	loop := NewLoop(f.tel, f.tr, f.reg,
		WithInterval(time.Millisecond),
		WithSink(&countingSink{limit: 2, cancel: cancel}),
	)

	reason, err := loop.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExitInterrupted, reason)
	assert.Equal(t, uint64(3), loop.Stats().SkippedBytes)
	assert.Zero(t, loop.Stats().ValidFrames)
}

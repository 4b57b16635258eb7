// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Thermoquad/panelbridge/pkg/panelframe"
)

// Metrics are the loop's Prometheus collectors
type Metrics struct {
	FramesSent     prometheus.Counter
	FramesReceived prometheus.Counter
	DecodeErrors   *prometheus.CounterVec
	UnknownFrames  prometheus.Counter
	RefreshErrors  prometheus.Counter
	WriteErrors    prometheus.Counter
	Connected      prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "panelbridge",
			Subsystem: "frames",
			Name:      "sent_total",
			Help:      "Frames written to the panel.",
		}),
		FramesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "panelbridge",
			Subsystem: "frames",
			Name:      "received_total",
			Help:      "Valid frames decoded from the panel.",
		}),
		DecodeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "panelbridge",
				Subsystem: "frames",
				Name:      "decode_errors_total",
				Help:      "Inbound frames rejected by the decoder.",
			},
			[]string{"kind"},
		),
		UnknownFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "panelbridge",
			Subsystem: "frames",
			Name:      "unknown_total",
			Help:      "Valid inbound frames with no handler.",
		}),
		RefreshErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "panelbridge",
			Subsystem: "telemetry",
			Name:      "refresh_errors_total",
			Help:      "Failed telemetry refreshes.",
		}),
		WriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "panelbridge",
			Subsystem: "transport",
			Name:      "write_errors_total",
			Help:      "Failed transport writes.",
		}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "panelbridge",
			Subsystem: "telemetry",
			Name:      "connected",
			Help:      "1 while the simulator connection is up.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.FramesSent, m.FramesReceived, m.DecodeErrors,
			m.UnknownFrames, m.RefreshErrors, m.WriteErrors, m.Connected)
	}
	return m
}

// decodeErrorKind maps a decoder error to a metric label
func decodeErrorKind(err error) string {
	switch {
	case errors.Is(err, panelframe.ErrInvalidStartByte):
		return "start"
	case errors.Is(err, panelframe.ErrInvalidStopByte):
		return "stop"
	case errors.Is(err, panelframe.ErrInvalidChecksum):
		return "checksum"
	case errors.Is(err, panelframe.ErrInvalidLength), errors.Is(err, panelframe.ErrLengthMismatch),
		errors.Is(err, panelframe.ErrShortFrame):
		return "length"
	default:
		return "other"
	}
}

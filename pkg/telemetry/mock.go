// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockSource serves scripted values without a simulator
type MockSource struct {
	mu           sync.Mutex
	scripts      map[string][]float64
	connected    bool
	connectErr   error
	connectDelay time.Duration
	failAfter    int
	lookups      int
	disconnects  int
}

// NewMockSource creates a source that returns values for each name.
// Names absent from values report ErrNoValue.
func NewMockSource(values map[string]float64) *MockSource {
	m := &MockSource{scripts: make(map[string][]float64), failAfter: -1}
	for name, v := range values {
		m.scripts[name] = []float64{v}
	}
	return m
}

// Set replaces the value of name
func (m *MockSource) Set(name string, v float64) {
	m.Script(name, v)
}

// Script makes successive lookups of name return values in turn; the last
// one repeats.
func (m *MockSource) Script(name string, values ...float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(values) == 0 {
		delete(m.scripts, name)
		return
	}
	m.scripts[name] = append([]float64(nil), values...)
}

// Unset removes the value of name
func (m *MockSource) Unset(name string) {
	m.Script(name)
}

// SetConnectError makes Connect fail with err
func (m *MockSource) SetConnectError(err error) {
	m.mu.Lock()
	m.connectErr = err
	m.mu.Unlock()
}

// SetConnectDelay makes Connect wait d before answering
func (m *MockSource) SetConnectDelay(d time.Duration) {
	m.mu.Lock()
	m.connectDelay = d
	m.mu.Unlock()
}

// FailAfter makes every lookup after the first n fail with ErrConnectionLost.
// A negative n disables the failure.
func (m *MockSource) FailAfter(n int) {
	m.mu.Lock()
	m.failAfter = n
	m.lookups = 0
	m.mu.Unlock()
}

func (m *MockSource) Connect(ctx context.Context) error {
	m.mu.Lock()
	delay, cerr := m.connectDelay, m.connectErr
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if cerr != nil {
		return cerr
	}

	m.mu.Lock()
	m.connected = true
	m.mu.Unlock()
	return nil
}

func (m *MockSource) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	m.disconnects++
	return nil
}

func (m *MockSource) Lookup(name string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return 0, ErrConnectionLost
	}
	if m.failAfter >= 0 && m.lookups >= m.failAfter {
		m.connected = false
		return 0, fmt.Errorf("%w: mock link dropped", ErrConnectionLost)
	}
	m.lookups++

	script, ok := m.scripts[name]
	if !ok {
		return 0, ErrNoValue
	}
	v := script[0]
	if len(script) > 1 {
		m.scripts[name] = script[1:]
	}
	return v, nil
}

// Disconnects reports how many times Disconnect was called
func (m *MockSource) Disconnects() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disconnects
}

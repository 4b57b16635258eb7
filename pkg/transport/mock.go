// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import "sync"

// Mock is an in-memory transport with one queue per direction.
// Bytes given to InjectRx come out of Read; bytes given to Write come out of Sent.
type Mock struct {
	mu     sync.Mutex
	isOpen bool
	port   string
	baud   int
	rx     [][]byte
	tx     [][]byte
}

// NewMock creates a closed mock transport
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Open(port string, baud int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isOpen {
		return ErrAlreadyOpen
	}
	m.isOpen = true
	m.port = port
	m.baud = baud
	return nil
}

// Close marks the mock closed and returns the unread inbound bytes
func (m *Mock) Close() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isOpen {
		return nil, ErrNotOpen
	}
	m.isOpen = false

	var leftover []byte
	for _, chunk := range m.rx {
		leftover = append(leftover, chunk...)
	}
	m.rx = nil
	return leftover, nil
}

func (m *Mock) Write(p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isOpen {
		return ErrNotOpen
	}
	m.tx = append(m.tx, append([]byte(nil), p...))
	return nil
}

// Read pops the oldest injected chunk
func (m *Mock) Read() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isOpen {
		return nil, ErrNotOpen
	}
	if len(m.rx) == 0 {
		return nil, nil
	}
	chunk := m.rx[0]
	m.rx = m.rx[1:]
	return chunk, nil
}

// InjectRx queues bytes as if the panel had sent them
func (m *Mock) InjectRx(p []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rx = append(m.rx, append([]byte(nil), p...))
}

// Sent drains and returns every chunk written since the last call
func (m *Mock) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.tx
	m.tx = nil
	return out
}

// IsOpen reports whether Open has been called without a matching Close
func (m *Mock) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isOpen
}

// Settings returns the port and baud rate given to Open
func (m *Mock) Settings() (string, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.port, m.baud
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"
)

// Serial is a panel link over a serial port, 8N1
type Serial struct {
	mu   sync.Mutex
	opts options
	port serial.Port
	pump *pump
	name string

	openPort func(name string, mode *serial.Mode) (serial.Port, error)
}

// NewSerial creates a closed serial transport
func NewSerial(opts ...Option) *Serial {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Serial{opts: o, openPort: serial.Open}
}

// Open opens the serial device at the given baud rate
func (s *Serial) Open(portName string, baudRate int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port != nil {
		return ErrAlreadyOpen
	}

	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := s.openPort(portName, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	s.port = port
	s.name = portName
	s.pump = startPump(port.Read, s.opts.bufChunk)
	s.opts.logger.Debug().Str("port", portName).Int("baud", baudRate).Msg("serial port open")
	return nil
}

// Close closes the port and returns bytes received but not read
func (s *Serial) Close() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return nil, ErrNotOpen
	}

	leftover, err := s.pump.stop(s.port.Close)
	s.opts.logger.Debug().Str("port", s.name).Int("leftover", len(leftover)).Msg("serial port closed")
	s.port = nil
	s.pump = nil
	if len(leftover) == 0 {
		leftover = nil
	}
	return leftover, err
}

// Write writes p to the port
func (s *Serial) Write(p []byte) error {
	s.mu.Lock()
	port, name := s.port, s.name
	s.mu.Unlock()

	if port == nil {
		return ErrNotOpen
	}

	n, err := port.Write(p)
	if err != nil {
		return fmt.Errorf("serial write %s: %w", name, err)
	}
	if n != len(p) {
		return fmt.Errorf("serial write %s: %w", name, io.ErrShortWrite)
	}
	return nil
}

// Read returns bytes received since the last call without blocking
func (s *Serial) Read() ([]byte, error) {
	s.mu.Lock()
	p, name := s.pump, s.name
	s.mu.Unlock()

	if p == nil {
		return nil, ErrNotOpen
	}

	data, err := p.poll()
	if err != nil {
		s.opts.logger.Warn().Err(err).Str("port", name).Msg("serial read failed")
		return nil, fmt.Errorf("serial read %s: %w", name, err)
	}
	return data, nil
}

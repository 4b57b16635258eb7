// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// fakePort feeds scripted chunks to Read and records writes
type fakePort struct {
	serial.Port

	mu      sync.Mutex
	rx      chan []byte
	closed  chan struct{}
	once    sync.Once
	written []byte
	short   bool
	mode    *serial.Mode
}

func newFakePort() *fakePort {
	return &fakePort{rx: make(chan []byte, 16), closed: make(chan struct{})}
}

func (f *fakePort) Read(p []byte) (int, error) {
	select {
	case chunk := <-f.rx:
		return copy(p, chunk), nil
	case <-f.closed:
		return 0, errors.New("port has been closed")
	}
}

func (f *fakePort) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.short {
		f.written = append(f.written, p[:len(p)-1]...)
		return len(p) - 1, nil
	}
	f.written = append(f.written, p...)
	return len(p), nil
}

func (f *fakePort) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func openFake(t *testing.T) (*Serial, *fakePort) {
	t.Helper()
	fp := newFakePort()
	s := NewSerial()
	s.openPort = func(name string, mode *serial.Mode) (serial.Port, error) {
		fp.mode = mode
		return fp, nil
	}
	require.NoError(t, s.Open("/dev/ttyFAKE", 115200))
	return s, fp
}

// readUntil polls r until n bytes arrive or the deadline passes
func readUntil(t *testing.T, r func() ([]byte, error), n int) []byte {
	t.Helper()
	var got []byte
	deadline := time.Now().Add(2 * time.Second)
	for len(got) < n && time.Now().Before(deadline) {
		data, err := r()
		require.NoError(t, err)
		got = append(got, data...)
		if len(got) < n {
			time.Sleep(5 * time.Millisecond)
		}
	}
	return got
}

func TestSerialOpenUses8N1(t *testing.T) {
	s, fp := openFake(t)
	defer s.Close()

	require.NotNil(t, fp.mode)
	assert.Equal(t, 115200, fp.mode.BaudRate)
	assert.Equal(t, 8, fp.mode.DataBits)
	assert.Equal(t, serial.NoParity, fp.mode.Parity)
	assert.Equal(t, serial.OneStopBit, fp.mode.StopBits)

	assert.ErrorIs(t, s.Open("/dev/ttyFAKE", 9600), ErrAlreadyOpen)
}

func TestSerialOpenFailure(t *testing.T) {
	s := NewSerial()
	s.openPort = func(string, *serial.Mode) (serial.Port, error) {
		return nil, errors.New("no such device")
	}

	err := s.Open("/dev/missing", 9600)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/dev/missing")

	_, err = s.Read()
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestSerialReadWrite(t *testing.T) {
	s, fp := openFake(t)
	defer s.Close()

	data, err := s.Read()
	require.NoError(t, err)
	assert.Nil(t, data)

	fp.rx <- []byte{0xAA, 0x01}
	fp.rx <- []byte{0x00, 0xAB, 0x55}
	got := readUntil(t, s.Read, 5)
	assert.Equal(t, []byte{0xAA, 0x01, 0x00, 0xAB, 0x55}, got)

	require.NoError(t, s.Write([]byte{1, 2, 3}))
	fp.mu.Lock()
	assert.Equal(t, []byte{1, 2, 3}, fp.written)
	fp.mu.Unlock()
}

func TestSerialShortWrite(t *testing.T) {
	s, fp := openFake(t)
	defer s.Close()

	fp.mu.Lock()
	fp.short = true
	fp.mu.Unlock()

	assert.ErrorIs(t, s.Write([]byte{1, 2, 3}), io.ErrShortWrite)
}

func TestSerialCloseReturnsLeftover(t *testing.T) {
	s, fp := openFake(t)

	fp.rx <- []byte{0xAA, 0x07}
	// Wait for the pump to pick the chunk up
	deadline := time.Now().Add(2 * time.Second)
	for len(fp.rx) > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)

	leftover, err := s.Close()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0x07}, leftover)

	_, err = s.Close()
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.ErrorIs(t, s.Write([]byte{1}), ErrNotOpen)
}

func TestSerialWriteWhileReopening(t *testing.T) {
	s := NewSerial()
	s.openPort = func(name string, mode *serial.Mode) (serial.Port, error) {
		return newFakePort(), nil
	}
	require.NoError(t, s.Open("/dev/ttyFAKE0", 115200))

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			if err := s.Write([]byte{1}); err != nil {
				assert.ErrorIs(t, err, ErrNotOpen)
			}
			if _, err := s.Read(); err != nil && !errors.Is(err, ErrNotOpen) {
				assert.Contains(t, err.Error(), "/dev/ttyFAKE")
			}
		}
	}()

	for i := 0; i < 50; i++ {
		_, err := s.Close()
		require.NoError(t, err)
		require.NoError(t, s.Open(fmt.Sprintf("/dev/ttyFAKE%d", i+1), 115200))
	}
	close(done)
	wg.Wait()

	_, err := s.Close()
	assert.NoError(t, err)
}

func TestPumpReportsErrorAfterData(t *testing.T) {
	calls := 0
	read := func(p []byte) (int, error) {
		calls++
		if calls == 1 {
			return copy(p, []byte{9, 8, 7}), io.EOF
		}
		return 0, io.EOF
	}

	p := startPump(read, 16)
	<-p.exited

	data, err := p.poll()
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 8, 7}, data)

	data, err = p.poll()
	assert.Nil(t, data)
	assert.ErrorIs(t, err, io.EOF)

	data, err = p.poll()
	assert.Nil(t, data)
	assert.NoError(t, err)
}

func TestMock(t *testing.T) {
	m := NewMock()
	assert.False(t, m.IsOpen())

	_, err := m.Read()
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.ErrorIs(t, m.Write([]byte{1}), ErrNotOpen)

	require.NoError(t, m.Open("mock", 9600))
	assert.ErrorIs(t, m.Open("mock", 9600), ErrAlreadyOpen)
	port, baud := m.Settings()
	assert.Equal(t, "mock", port)
	assert.Equal(t, 9600, baud)

	data, err := m.Read()
	require.NoError(t, err)
	assert.Nil(t, data)

	m.InjectRx([]byte{1, 2})
	m.InjectRx([]byte{3})
	data, err = m.Read()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, data)

	require.NoError(t, m.Write([]byte{0xAA}))
	require.NoError(t, m.Write([]byte{0x55}))
	assert.Equal(t, [][]byte{{0xAA}, {0x55}}, m.Sent())
	assert.Nil(t, m.Sent())

	m.InjectRx([]byte{4})
	leftover, err := m.Close()
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 4}, leftover)
	assert.False(t, m.IsOpen())
}

var _ Transport = (*Serial)(nil)
var _ Transport = (*WebSocket)(nil)
var _ Transport = (*Mock)(nil)

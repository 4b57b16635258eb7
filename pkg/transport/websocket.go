// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Handshake limits for the WebSocket transport
const (
	wsHandshakeTimeout = 10 * time.Second
	wsDialTimeout      = 15 * time.Second
	wsWriteTimeout     = 5 * time.Second
)

// ErrConnectionClosed is returned when the WebSocket peer has gone away
var ErrConnectionClosed = errors.New("transport: websocket connection closed")

// WebSocket is a panel link tunnelled through a network gateway. Each binary
// message carries raw link bytes; text messages are ignored.
type WebSocket struct {
	mu   sync.Mutex
	wmu  sync.Mutex
	opts options
	conn *websocket.Conn
	pump *pump
	url  string
}

// NewWebSocket creates a closed WebSocket transport
func NewWebSocket(opts ...Option) *WebSocket {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &WebSocket{opts: o}
}

// Open dials wsURL (ws:// or wss://). The baud rate is ignored.
func (w *WebSocket) Open(wsURL string, _ int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn != nil {
		return ErrAlreadyOpen
	}

	conn, err := dialWebSocket(wsURL, w.opts)
	if err != nil {
		return err
	}

	w.conn = conn
	w.url = wsURL
	reader := &messageReader{conn: conn}
	w.pump = startPump(reader.Read, w.opts.bufChunk)
	w.opts.logger.Debug().Str("url", wsURL).Msg("websocket open")
	return nil
}

// Close sends a close frame, closes the socket and returns unread bytes
func (w *WebSocket) Close() ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return nil, ErrNotOpen
	}

	conn := w.conn
	leftover, err := w.pump.stop(func() error {
		w.wmu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		w.wmu.Unlock()
		return conn.Close()
	})

	w.conn = nil
	w.pump = nil
	if len(leftover) == 0 {
		leftover = nil
	}
	return leftover, err
}

// Write sends p as one binary message
func (w *WebSocket) Write(p []byte) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()

	if conn == nil {
		return ErrNotOpen
	}

	w.wmu.Lock()
	defer w.wmu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

// Read returns bytes received since the last call without blocking
func (w *WebSocket) Read() ([]byte, error) {
	w.mu.Lock()
	p := w.pump
	w.mu.Unlock()

	if p == nil {
		return nil, ErrNotOpen
	}

	data, err := p.poll()
	if err != nil {
		w.opts.logger.Warn().Err(err).Str("url", w.url).Msg("websocket read failed")
		return nil, fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}
	return data, nil
}

// messageReader flattens binary messages into a byte stream
type messageReader struct {
	conn      *websocket.Conn
	buf       []byte
	bufOffset int
}

func (m *messageReader) Read(p []byte) (int, error) {
	// If we have buffered data, return it first
	if m.bufOffset < len(m.buf) {
		n := copy(p, m.buf[m.bufOffset:])
		m.bufOffset += n
		return n, nil
	}

	for {
		messageType, data, err := m.conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		if messageType != websocket.BinaryMessage {
			continue
		}

		m.buf = data
		m.bufOffset = copy(p, m.buf)
		return m.bufOffset, nil
	}
}

// dialWebSocket opens a client connection with optional HTTP Basic auth
func dialWebSocket(wsURL string, o options) (*websocket.Conn, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: wsHandshakeTimeout,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: o.insecure,
		}
	}

	headers := http.Header{}
	if o.username != "" && o.password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(o.username + ":" + o.password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), wsDialTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}
	return conn, nil
}

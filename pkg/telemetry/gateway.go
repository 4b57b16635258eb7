// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultRequestTimeout bounds one gateway lookup
const DefaultRequestTimeout = 2 * time.Second

type gatewayRequest struct {
	Op   string `json:"op"`
	Name string `json:"name"`
}

type gatewayResponse struct {
	Name  string   `json:"name"`
	Value *float64 `json:"value"`
	Error string   `json:"error,omitempty"`
}

// gatewayUnknown is the error text a gateway uses for variables it cannot read
const gatewayUnknown = "unknown variable"

// GatewayOption configures a GatewaySource
type GatewayOption func(*GatewaySource)

// WithGatewayAuth sets HTTP Basic credentials for the handshake
func WithGatewayAuth(username, password string) GatewayOption {
	return func(g *GatewaySource) {
		g.username = username
		g.password = password
	}
}

// WithRequestTimeout bounds each lookup round trip
func WithRequestTimeout(d time.Duration) GatewayOption {
	return func(g *GatewaySource) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// GatewaySource reads simulator variables from a gateway process speaking
// JSON over a WebSocket. Requests are answered in order, one at a time.
type GatewaySource struct {
	url      string
	username string
	password string
	timeout  time.Duration

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewGatewaySource creates a source for the gateway at url (ws:// or wss://)
func NewGatewaySource(url string, opts ...GatewayOption) *GatewaySource {
	g := &GatewaySource{url: url, timeout: DefaultRequestTimeout}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GatewaySource) Connect(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.conn != nil {
		return nil
	}

	headers := http.Header{}
	if g.username != "" && g.password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(g.username + ":" + g.password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, g.url, headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("gateway %s (HTTP %d): %w", g.url, resp.StatusCode, err)
		}
		return fmt.Errorf("gateway %s: %w", g.url, err)
	}
	g.conn = conn
	return nil
}

func (g *GatewaySource) Disconnect() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.conn == nil {
		return nil
	}
	conn := g.conn
	g.conn = nil
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return conn.Close()
}

func (g *GatewaySource) Lookup(name string) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.conn == nil {
		return 0, ErrConnectionLost
	}

	deadline := time.Now().Add(g.timeout)
	_ = g.conn.SetWriteDeadline(deadline)
	if err := g.conn.WriteJSON(gatewayRequest{Op: "read", Name: name}); err != nil {
		return 0, g.lost(err)
	}

	_ = g.conn.SetReadDeadline(deadline)
	var resp gatewayResponse
	for {
		if err := g.conn.ReadJSON(&resp); err != nil {
			var syntax *json.SyntaxError
			var mistyped *json.UnmarshalTypeError
			if errors.As(err, &syntax) || errors.As(err, &mistyped) {
				return 0, fmt.Errorf("gateway reply for %s: %w", name, err)
			}
			return 0, g.lost(err)
		}
		// Skip replies that do not answer this request
		if resp.Name == name {
			break
		}
		resp = gatewayResponse{}
	}

	switch {
	case resp.Error == gatewayUnknown:
		return 0, fmt.Errorf("%w: %s", ErrUnknownVariable, name)
	case resp.Error != "":
		return 0, fmt.Errorf("gateway %s: %s", name, resp.Error)
	case resp.Value == nil:
		return 0, ErrNoValue
	}
	return *resp.Value, nil
}

// lost drops the connection after a socket failure. Caller holds g.mu.
func (g *GatewaySource) lost(err error) error {
	_ = g.conn.Close()
	g.conn = nil
	return fmt.Errorf("%w: %w", ErrConnectionLost, err)
}

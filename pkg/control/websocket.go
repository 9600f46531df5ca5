// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package control

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketOptions configures a WebSocketTransport
type WebSocketOptions struct {
	URL                string // ws:// or wss://; empty builds ws://host:port/
	Username           string
	Password           string
	InsecureSkipVerify bool
	HandshakeTimeout   time.Duration // 0 uses 10s
}

// WebSocketTransport reaches the control channel through a WebSocket bridge.
// Frames travel as binary messages.
type WebSocketTransport struct {
	opts WebSocketOptions

	mu     sync.Mutex
	stream *wsStream
	closed bool
}

// NewWebSocketTransport creates a WebSocket transport
func NewWebSocketTransport(opts WebSocketOptions) *WebSocketTransport {
	if opts.HandshakeTimeout == 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	return &WebSocketTransport{opts: opts}
}

// WebSocketFactory returns a TransportFactory producing WebSocket transports
func WebSocketFactory(opts WebSocketOptions) TransportFactory {
	return func() Transport { return NewWebSocketTransport(opts) }
}

// Connect performs the WebSocket handshake
func (w *WebSocketTransport) Connect(ctx context.Context, host string, port int) error {
	wsURL := w.opts.URL
	if wsURL == "" {
		wsURL = "ws://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/"
	}

	u, err := url.Parse(wsURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: w.opts.HandshakeTimeout,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: w.opts.InsecureSkipVerify,
		}
	}

	headers := http.Header{}
	if w.opts.Username != "" && w.opts.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(w.opts.Username + ":" + w.opts.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket connection failed: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		conn.Close()
		return net.ErrClosed
	}
	w.stream = &wsStream{conn: conn}
	return nil
}

// Stream returns the message-to-byte adapter over the socket
func (w *WebSocketTransport) Stream() (Stream, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stream == nil {
		return nil, errTransportNotOpen
	}
	return w.stream, nil
}

// Close closes the socket
func (w *WebSocketTransport) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.stream == nil {
		return nil
	}
	return w.stream.Close()
}

// wsStream presents binary WebSocket messages as a byte stream. A message
// larger than the read buffer is returned across several reads.
type wsStream struct {
	conn *websocket.Conn

	buf       []byte
	bufOffset int

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (s *wsStream) Read(p []byte) (int, error) {
	if s.bufOffset < len(s.buf) {
		n := copy(p, s.buf[s.bufOffset:])
		s.bufOffset += n
		return n, nil
	}

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			return 0, err
		}

		// Text and empty messages carry no frames
		if messageType != websocket.BinaryMessage || len(data) == 0 {
			continue
		}

		s.buf = data
		n := copy(p, s.buf)
		s.bufOffset = n
		return n, nil
	}
}

func (s *wsStream) Write(p []byte) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *wsStream) Close() error {
	s.closeOnce.Do(func() {
		err := s.conn.Close()
		if err != nil && !errors.Is(err, net.ErrClosed) {
			s.closeErr = err
		}
	})
	return s.closeErr
}

var _ Transport = (*WebSocketTransport)(nil)

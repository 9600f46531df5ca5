// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

// TCPOptions configures a TCPTransport
type TCPOptions struct {
	DialTimeout     time.Duration // 0 means no timeout beyond ctx
	KeepAlivePeriod time.Duration // 0 uses 30s
}

// TCPTransport connects to the device over TCP
type TCPTransport struct {
	opts TCPOptions

	mu     sync.Mutex
	conn   *net.TCPConn
	closed bool
}

// NewTCPTransport creates a TCP transport
func NewTCPTransport(opts TCPOptions) *TCPTransport {
	if opts.KeepAlivePeriod == 0 {
		opts.KeepAlivePeriod = 30 * time.Second
	}
	return &TCPTransport{opts: opts}
}

// TCPFactory returns a TransportFactory producing TCP transports
func TCPFactory(opts TCPOptions) TransportFactory {
	return func() Transport { return NewTCPTransport(opts) }
}

// Connect dials host:port
func (t *TCPTransport) Connect(ctx context.Context, host string, port int) error {
	dialer := net.Dialer{
		Timeout:   t.opts.DialTimeout,
		KeepAlive: t.opts.KeepAlivePeriod,
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		conn.Close()
		return fmt.Errorf("unexpected connection type %T", conn)
	}
	// Control frames are small; send them immediately
	tcpConn.SetNoDelay(true)
	tcpConn.SetKeepAlive(true)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		tcpConn.Close()
		return net.ErrClosed
	}
	t.conn = tcpConn
	return nil
}

// Stream returns the connected socket
func (t *TCPTransport) Stream() (Stream, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil, errTransportNotOpen
	}
	return t.conn, nil
}

// Close closes the socket if one is open
func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.conn == nil {
		return nil
	}
	if err := t.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

var _ Transport = (*TCPTransport)(nil)

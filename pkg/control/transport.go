// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package control implements the stream-oriented control channel client: the
// connection lifecycle, sending, and a background receive loop that hands
// every raw chunk read from the device to subscribers.
package control

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ErrNotConnected is returned when sending on a client that has no open
// connection, including a connection torn down while the write was running.
var ErrNotConnected = errors.New("control: not connected")

// errTransportNotOpen is returned by Transport.Stream before a successful Connect
var errTransportNotOpen = errors.New("control: transport not open")

// Stream is the full-duplex byte stream of an open transport
type Stream = io.ReadWriteCloser

// Transport opens the underlying connection to the device.
// A Transport is used for a single connect cycle and then discarded.
type Transport interface {
	// Connect opens the connection. It must return when ctx is done.
	Connect(ctx context.Context, host string, port int) error
	// Stream returns the open stream. Valid only after Connect succeeds.
	Stream() (Stream, error)
	// Close releases the transport. Safe to call more than once.
	Close() error
}

// TransportFactory creates a fresh Transport for each connect attempt
type TransportFactory func() Transport

// onceStream makes Close idempotent. The stream is closed both by the
// cancellation hook and by disconnect.
type onceStream struct {
	Stream
	once sync.Once
	err  error
}

func (s *onceStream) Close() error {
	s.once.Do(func() {
		s.err = s.Stream.Close()
	})
	return s.err
}

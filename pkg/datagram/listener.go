// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package datagram implements the data channel listener: a bound UDP socket
// and a background loop that hands every received datagram to subscribers.
package datagram

import (
	"context"
	"fmt"
	"hash/fnv"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/Thermoquad/sdrlink/internal/events"
	"github.com/Thermoquad/sdrlink/internal/logging"
)

// MaxDatagramSize is the receive buffer size, the largest UDP payload
const MaxDatagramSize = 64 * 1024

// Config configures a Listener
type Config struct {
	// Port is the local port to bind on all interfaces. 0 picks a free port.
	Port int

	// ReadBuffer, if positive, sets the socket receive buffer in bytes.
	ReadBuffer int

	// Factory binds sockets. Defaults to RealUDPSocketFactory.
	Factory UDPSocketFactory

	// NewID produces the listener identity. Defaults to uuid.New.
	NewID func() uuid.UUID

	// Logf receives lifecycle log lines. Defaults to logging.Std.
	Logf logging.Logf
}

// Listener receives datagrams on one port. It can be stopped and started
// again any number of times until it is disposed.
type Listener struct {
	cfg    Config
	logf   logging.Logf
	events *events.Broadcaster

	mu       sync.Mutex
	id       uuid.UUID
	disposed bool
	gen      uint64 // identifies the current listen cycle
	socket   UDPSocket
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewListener creates an idle listener
func NewListener(cfg Config) *Listener {
	if cfg.Factory == nil {
		cfg.Factory = RealUDPSocketFactory{}
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.New
	}

	done := make(chan struct{})
	close(done)

	return &Listener{
		cfg:    cfg,
		logf:   logging.Prefixed(cfg.Logf, "[datagram]"),
		events: events.NewBroadcaster(),
		id:     cfg.NewID(),
		done:   done,
	}
}

// Subscribe registers a handler for received datagrams. Handlers run on the
// receive goroutine, in arrival order.
func (l *Listener) Subscribe(h func(data []byte)) string {
	return l.events.Subscribe(h)
}

// Unsubscribe removes a handler
func (l *Listener) Unsubscribe(id string) {
	l.events.Unsubscribe(id)
}

// StartListening binds the socket and starts the receive loop. It does
// nothing if the listener is already running or has been disposed. A bind
// failure is logged and returned and leaves the listener idle.
func (l *Listener) StartListening() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.disposed || l.cancel != nil {
		return nil
	}

	laddr := &net.UDPAddr{Port: l.cfg.Port}
	sock, err := l.cfg.Factory.ListenUDP("udp", laddr)
	if err != nil {
		l.logf("failed to bind port %d: %v", l.cfg.Port, err)
		return fmt.Errorf("listen on port %d: %w", l.cfg.Port, err)
	}

	if l.cfg.ReadBuffer > 0 {
		if err := sock.SetReadBuffer(l.cfg.ReadBuffer); err != nil {
			l.logf("failed to set read buffer to %d: %v", l.cfg.ReadBuffer, err)
		}
	}

	l.gen++
	ctx, cancel := context.WithCancel(context.Background())
	socket := &onceSocket{UDPSocket: sock}
	done := make(chan struct{})

	l.socket = socket
	l.cancel = cancel
	l.done = done

	l.logf("listening on %v", sock.LocalAddr())

	// Cancelling the scope closes the socket, which unblocks ReadFromUDP
	stop := context.AfterFunc(ctx, func() { socket.Close() })
	go l.receiveLoop(ctx, l.gen, socket, done, stop)

	return nil
}

func (l *Listener) receiveLoop(ctx context.Context, gen uint64, sock UDPSocket, done chan struct{}, stop func() bool) {
	defer close(done)
	defer l.cleanup(gen)
	defer stop()

	buf := make([]byte, MaxDatagramSize)
	for {
		n, _, err := sock.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() == nil {
				l.logf("receive failed: %v", err)
			}
			return
		}
		l.events.Publish(buf[:n])
	}
}

// StopListening cancels the receive loop and closes the socket. It does not
// wait for the loop to exit; use Done for that.
func (l *Listener) StopListening() {
	l.mu.Lock()
	gen := l.gen
	l.mu.Unlock()
	l.cleanup(gen)
}

// Exit is StopListening
func (l *Listener) Exit() {
	l.StopListening()
}

// cleanup ends listen cycle gen. A stale gen is ignored so a late loop exit
// cannot close a newer socket.
func (l *Listener) cleanup(gen uint64) {
	l.mu.Lock()
	if l.gen != gen || l.cancel == nil {
		l.mu.Unlock()
		return
	}
	cancel, sock := l.cancel, l.socket
	l.cancel, l.socket = nil, nil
	l.mu.Unlock()

	cancel()
	if err := sock.Close(); err != nil {
		l.logf("close socket: %v", err)
	}
	l.logf("stopped listening")
}

// Dispose stops the listener for good and releases its identity. Later
// StartListening calls do nothing. Safe to call more than once.
func (l *Listener) Dispose() {
	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		return
	}
	// Marked before cleanup so a concurrent StartListening cannot slip in
	l.disposed = true
	l.id = uuid.Nil
	gen := l.gen
	l.mu.Unlock()

	l.cleanup(gen)
}

// IsListening reports whether a receive loop is active
func (l *Listener) IsListening() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil
}

// IsDisposed reports whether Dispose has been called
func (l *Listener) IsDisposed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.disposed
}

// LocalAddr returns the bound address, or nil when not listening
func (l *Listener) LocalAddr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.socket == nil {
		return nil
	}
	return l.socket.LocalAddr()
}

// Done returns a channel closed once the current listen cycle has exited
func (l *Listener) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

// ID returns the listener identity; uuid.Nil after Dispose
func (l *Listener) ID() uuid.UUID {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.id
}

// Hash returns a 64-bit FNV-1a hash of the listener identity
func (l *Listener) Hash() uint64 {
	id := l.ID()
	h := fnv.New64a()
	h.Write(id[:])
	return h.Sum64()
}

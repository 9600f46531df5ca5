// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package testserver is a stand-in receiver for exercising sdrlink without
// hardware: it echoes the control channel and can stream synthetic IQ frames
// to a data channel listener.
package testserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/Thermoquad/sdrlink/internal/logging"
	"github.com/Thermoquad/sdrlink/pkg/netsdr"
)

// Config configures a Server
type Config struct {
	// ControlAddr is the TCP address to accept control connections on
	ControlAddr string

	// StreamTo, if set, is the UDP address synthetic data frames are sent to
	StreamTo string

	// Interval between data frames. Defaults to 10ms.
	Interval time.Duration

	// SamplesPerFrame is the number of 16-bit samples per frame. Defaults to 256.
	SamplesPerFrame int

	Logf logging.Logf
}

// Server echoes every control connection byte for byte
type Server struct {
	cfg  Config
	logf logging.Logf

	listener net.Listener
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu     sync.Mutex
	closed bool
	conns  map[net.Conn]struct{}
	sent   uint64
}

// New creates a server; call Start to begin serving
func New(cfg Config) *Server {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Millisecond
	}
	if cfg.SamplesPerFrame <= 0 {
		cfg.SamplesPerFrame = 256
	}
	return &Server{
		cfg:   cfg,
		logf:  logging.Prefixed(cfg.Logf, "[testserver]"),
		conns: make(map[net.Conn]struct{}),
	}
}

// Start binds the control listener and, if configured, starts streaming.
// The server runs until ctx is done or Close is called.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ControlAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ControlAddr, err)
	}
	s.listener = ln

	var data *net.UDPConn
	if s.cfg.StreamTo != "" {
		raddr, err := net.ResolveUDPAddr("udp", s.cfg.StreamTo)
		if err != nil {
			ln.Close()
			return fmt.Errorf("invalid stream address %s: %w", s.cfg.StreamTo, err)
		}
		data, err = net.DialUDP("udp", nil, raddr)
		if err != nil {
			ln.Close()
			return fmt.Errorf("failed to open data socket: %w", err)
		}
	}

	ctx, s.cancel = context.WithCancel(ctx)
	context.AfterFunc(ctx, func() { s.shutdown() })

	s.logf("control echo on %s", ln.Addr())

	s.wg.Add(1)
	go s.acceptLoop()

	if data != nil {
		s.logf("streaming %d samples every %s to %s", s.cfg.SamplesPerFrame, s.cfg.Interval, s.cfg.StreamTo)
		s.wg.Add(1)
		go s.streamLoop(ctx, data)
	}

	return nil
}

// Addr returns the control listener address
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// FramesSent returns the number of data frames sent so far
func (s *Server) FramesSent() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

// Close stops the server and waits for its goroutines
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.shutdown()
	s.wg.Wait()
	return nil
}

func (s *Server) shutdown() {
	if s.listener != nil {
		s.listener.Close()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for c := range s.conns {
		c.Close()
	}
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.logf("accept failed: %v", err)
			}
			return
		}

		s.mu.Lock()
		if s.closed {
			// Accepted just before shutdown walked the connections
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.logf("client connected from %s", conn.RemoteAddr())
		s.wg.Add(1)
		go s.echo(conn)
	}
}

func (s *Server) echo(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	n, err := io.Copy(conn, conn)
	if err != nil && !errors.Is(err, net.ErrClosed) {
		s.logf("echo to %s ended: %v", conn.RemoteAddr(), err)
		return
	}
	s.logf("client %s disconnected after %d bytes", conn.RemoteAddr(), n)
}

func (s *Server) streamLoop(ctx context.Context, conn *net.UDPConn) {
	defer s.wg.Done()
	defer conn.Close()

	gen := NewFrameGenerator(netsdr.DataItem0, s.cfg.SamplesPerFrame)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame, err := gen.Next()
			if err != nil {
				s.logf("frame generation failed: %v", err)
				return
			}
			if _, err := conn.Write(frame); err != nil {
				// Nothing listening yet is normal for UDP
				continue
			}
			s.mu.Lock()
			s.sent++
			s.mu.Unlock()
		}
	}
}

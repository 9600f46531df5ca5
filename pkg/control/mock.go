// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package control

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
)

// ErrMockStreamClosed is returned by MockStream reads and writes after Close
var ErrMockStreamClosed = errors.New("mock stream closed")

// MockStream is an in-memory Stream for tests. Each Feed call is returned by
// exactly one Read, so tests can check that chunks arrive unmodified.
type MockStream struct {
	mu   sync.Mutex
	cond *sync.Cond

	chunks [][]byte
	eof    bool

	// WriteError is returned by every Write call if set
	WriteError error

	// BeforeWrite, if set, runs at the start of every Write
	BeforeWrite func()

	// Written captures data written to the stream
	Written bytes.Buffer

	Closed     bool
	ReadCalls  int
	WriteCalls int
	CloseCalls int
}

// NewMockStream creates an empty stream whose reads block until fed
func NewMockStream() *MockStream {
	s := &MockStream{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Feed queues one chunk for Read. An empty chunk makes Read return 0, nil.
func (s *MockStream) Feed(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, append([]byte{}, chunk...))
	s.cond.Broadcast()
}

// FeedEOF makes Read return io.EOF once queued chunks are consumed
func (s *MockStream) FeedEOF() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eof = true
	s.cond.Broadcast()
}

func (s *MockStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ReadCalls++
	for !s.Closed && len(s.chunks) == 0 && !s.eof {
		s.cond.Wait()
	}

	if s.Closed {
		return 0, ErrMockStreamClosed
	}
	if len(s.chunks) == 0 {
		return 0, io.EOF
	}

	n := copy(p, s.chunks[0])
	if n < len(s.chunks[0]) {
		s.chunks[0] = s.chunks[0][n:]
	} else {
		s.chunks = s.chunks[1:]
	}
	return n, nil
}

func (s *MockStream) Write(p []byte) (int, error) {
	if s.BeforeWrite != nil {
		s.BeforeWrite()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.WriteCalls++
	if s.Closed {
		return 0, ErrMockStreamClosed
	}
	if s.WriteError != nil {
		return 0, s.WriteError
	}
	return s.Written.Write(p)
}

func (s *MockStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.CloseCalls++
	s.Closed = true
	s.cond.Broadcast()
	return nil
}

// WrittenBytes returns a copy of everything written so far
func (s *MockStream) WrittenBytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte{}, s.Written.Bytes()...)
}

// IsClosed reports whether Close was called
func (s *MockStream) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Closed
}

// MockTransport is a Transport for tests with call counters
type MockTransport struct {
	mu sync.Mutex

	// Conn is returned by Stream after a successful Connect
	Conn *MockStream

	// ConnectError is returned by Connect if set
	ConnectError error

	// StreamError is returned by Stream if set
	StreamError error

	// BlockConnect makes Connect wait until its context is done
	BlockConnect bool

	ConnectCalls int
	StreamCalls  int
	CloseCalls   int
	Host         string
	Port         int

	connecting chan struct{}
}

// NewMockTransport creates a transport that succeeds with a fresh MockStream
func NewMockTransport() *MockTransport {
	return &MockTransport{
		Conn:       NewMockStream(),
		connecting: make(chan struct{}),
	}
}

// Connecting is closed once Connect has been entered
func (m *MockTransport) Connecting() <-chan struct{} {
	return m.connecting
}

func (m *MockTransport) Connect(ctx context.Context, host string, port int) error {
	m.mu.Lock()
	m.ConnectCalls++
	m.Host, m.Port = host, port
	block, err := m.BlockConnect, m.ConnectError
	if m.ConnectCalls == 1 {
		close(m.connecting)
	}
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (m *MockTransport) Stream() (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StreamCalls++
	if m.StreamError != nil {
		return nil, m.StreamError
	}
	return m.Conn, nil
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalls++
	return nil
}

// Calls returns the connect, stream and close call counts
func (m *MockTransport) Calls() (connects, streams, closes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ConnectCalls, m.StreamCalls, m.CloseCalls
}

// MockTransportFactory hands out MockTransports and records them
type MockTransportFactory struct {
	mu sync.Mutex

	// Configure, if set, adjusts each new transport before it is returned
	Configure func(*MockTransport)

	Created []*MockTransport
}

// Factory returns the TransportFactory to pass in Config
func (f *MockTransportFactory) Factory() TransportFactory {
	return func() Transport {
		t := NewMockTransport()
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.Configure != nil {
			f.Configure(t)
		}
		f.Created = append(f.Created, t)
		return t
	}
}

// Count returns how many transports were created
func (f *MockTransportFactory) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Created)
}

// Last returns the most recently created transport, or nil
func (f *MockTransportFactory) Last() *MockTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Created) == 0 {
		return nil
	}
	return f.Created[len(f.Created)-1]
}

var (
	_ Transport = (*MockTransport)(nil)
	_ Stream    = (*MockStream)(nil)
)

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package datagram

import (
	"errors"
	"net"
	"sync"
)

// MockUDPPacket is a datagram queued on a MockUDPSocket
type MockUDPPacket struct {
	Data []byte
	Addr *net.UDPAddr
}

// MockUDPSocket implements UDPSocket for testing. ReadFromUDP blocks until a
// packet is delivered, an error is injected or the socket is closed.
type MockUDPSocket struct {
	mu     sync.Mutex
	closed bool

	packets chan MockUDPPacket
	errs    chan error
	closeCh chan struct{}

	// LocalAddress is returned by LocalAddr
	LocalAddress *net.UDPAddr

	// SetReadBufferError is returned by SetReadBuffer if set
	SetReadBufferError error

	ReadBufferSize int
	CloseCalls     int
}

// NewMockUDPSocket creates an open mock socket bound to addr
func NewMockUDPSocket(addr *net.UDPAddr) *MockUDPSocket {
	return &MockUDPSocket{
		packets:      make(chan MockUDPPacket, 64),
		errs:         make(chan error, 1),
		closeCh:      make(chan struct{}),
		LocalAddress: addr,
	}
}

// Deliver queues a datagram for ReadFromUDP
func (m *MockUDPSocket) Deliver(data []byte) {
	m.packets <- MockUDPPacket{
		Data: append([]byte{}, data...),
		Addr: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 50000},
	}
}

// FailRead makes the next blocked ReadFromUDP return err
func (m *MockUDPSocket) FailRead(err error) {
	m.errs <- err
}

// ReadFromUDP returns the next delivered packet
func (m *MockUDPSocket) ReadFromUDP(b []byte) (int, *net.UDPAddr, error) {
	select {
	case <-m.closeCh:
		return 0, nil, net.ErrClosed
	default:
	}

	select {
	case pkt := <-m.packets:
		return copy(b, pkt.Data), pkt.Addr, nil
	case err := <-m.errs:
		return 0, nil, err
	case <-m.closeCh:
		return 0, nil, net.ErrClosed
	}
}

// SetReadBuffer records the buffer size
func (m *MockUDPSocket) SetReadBuffer(bytes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetReadBufferError != nil {
		return m.SetReadBufferError
	}
	m.ReadBufferSize = bytes
	return nil
}

// Close closes the socket; closing twice returns net.ErrClosed like a real socket
func (m *MockUDPSocket) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalls++
	if m.closed {
		return net.ErrClosed
	}
	m.closed = true
	close(m.closeCh)
	return nil
}

// IsClosed reports whether Close was called
func (m *MockUDPSocket) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Closes returns the number of Close calls
func (m *MockUDPSocket) Closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CloseCalls
}

// LocalAddr returns the mock local address
func (m *MockUDPSocket) LocalAddr() net.Addr {
	return m.LocalAddress
}

// MockListenCall records a call to ListenUDP
type MockListenCall struct {
	Network string
	Addr    *net.UDPAddr
}

// MockUDPSocketFactory creates a fresh MockUDPSocket per ListenUDP call
type MockUDPSocketFactory struct {
	mu sync.Mutex

	// Error is returned by ListenUDP if set
	Error error

	ListenCalls []MockListenCall
	Sockets     []*MockUDPSocket
}

// ErrMockBind is a convenience bind error for tests
var ErrMockBind = errors.New("address already in use")

// ListenUDP records the call and returns a new mock socket
func (f *MockUDPSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ListenCalls = append(f.ListenCalls, MockListenCall{Network: network, Addr: laddr})
	if f.Error != nil {
		return nil, f.Error
	}

	port := laddr.Port
	if port == 0 {
		port = 40000 + len(f.Sockets)
	}
	sock := NewMockUDPSocket(&net.UDPAddr{IP: net.IPv4zero, Port: port})
	f.Sockets = append(f.Sockets, sock)
	return sock, nil
}

// Calls returns the number of ListenUDP calls
func (f *MockUDPSocketFactory) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ListenCalls)
}

// Last returns the most recently created socket, or nil
func (f *MockUDPSocketFactory) Last() *MockUDPSocket {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Sockets) == 0 {
		return nil
	}
	return f.Sockets[len(f.Sockets)-1]
}

var (
	_ UDPSocket        = (*MockUDPSocket)(nil)
	_ UDPSocketFactory = (*MockUDPSocketFactory)(nil)
)

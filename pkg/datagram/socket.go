// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package datagram

import (
	"net"
	"sync"
)

// UDPSocket is the bound datagram socket the listener receives on
type UDPSocket interface {
	// ReadFromUDP blocks until a datagram arrives or the socket is closed.
	ReadFromUDP(b []byte) (n int, addr *net.UDPAddr, err error)

	// SetReadBuffer sets the size of the operating system's receive buffer.
	SetReadBuffer(bytes int) error

	// Close closes the socket and unblocks a pending ReadFromUDP.
	Close() error

	// LocalAddr returns the bound address.
	LocalAddr() net.Addr
}

// UDPSocketFactory binds sockets
type UDPSocketFactory interface {
	ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error)
}

// RealUDPSocketFactory binds sockets with net.ListenUDP
type RealUDPSocketFactory struct{}

// ListenUDP creates a new UDP socket
func (RealUDPSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	conn, err := net.ListenUDP(network, laddr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// onceSocket makes Close idempotent. The socket is closed both by the
// cancellation hook and by cleanup.
type onceSocket struct {
	UDPSocket
	once sync.Once
	err  error
}

func (s *onceSocket) Close() error {
	s.once.Do(func() {
		s.err = s.UDPSocket.Close()
	})
	return s.err
}

var (
	_ UDPSocket        = (*net.UDPConn)(nil)
	_ UDPSocketFactory = RealUDPSocketFactory{}
)

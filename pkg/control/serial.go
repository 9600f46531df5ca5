// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package control

import (
	"context"
	"fmt"
	"sync"

	"go.bug.st/serial"
)

// SerialOpener opens a serial port. serial.Open in production.
type SerialOpener func(portName string, mode *serial.Mode) (serial.Port, error)

// SerialTransport talks to a receiver attached over USB serial. The host
// passed to Connect is the device path; the port number is ignored.
type SerialTransport struct {
	baud int
	open SerialOpener

	mu     sync.Mutex
	port   serial.Port
	closed bool
}

// NewSerialTransport creates a serial transport. A nil opener uses serial.Open.
func NewSerialTransport(baud int, open SerialOpener) *SerialTransport {
	if open == nil {
		open = serial.Open
	}
	return &SerialTransport{baud: baud, open: open}
}

// SerialFactory returns a TransportFactory producing serial transports
func SerialFactory(baud int) TransportFactory {
	return func() Transport { return NewSerialTransport(baud, nil) }
}

// Connect opens the serial device
func (s *SerialTransport) Connect(ctx context.Context, device string, _ int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mode := &serial.Mode{
		BaudRate: s.baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := s.open(device, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", device, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || ctx.Err() != nil {
		port.Close()
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("serial port %s: transport closed", device)
	}
	s.port = port
	return nil
}

// Stream returns the open port
func (s *SerialTransport) Stream() (Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil, errTransportNotOpen
	}
	return s.port, nil
}

// Close closes the port. A port already closed through its stream is fine.
func (s *SerialTransport) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.port == nil {
		return nil
	}
	if err := s.port.Close(); err != nil {
		if portErr, ok := err.(*serial.PortError); ok && portErr.Code() == serial.PortClosed {
			return nil
		}
		return err
	}
	return nil
}

var _ Transport = (*SerialTransport)(nil)

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/Thermoquad/sdrlink/internal/config"
	"github.com/Thermoquad/sdrlink/internal/logging"
	"github.com/Thermoquad/sdrlink/pkg/control"
	"github.com/Thermoquad/sdrlink/pkg/datagram"
)

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("SDRLINK_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Not a terminal, read a plain line instead
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// NewTransportFactory builds the control transport selected in c
func NewTransportFactory(c config.ControlConfig) (control.TransportFactory, error) {
	switch c.Transport {
	case config.TransportTCP:
		return control.TCPFactory(control.TCPOptions{
			DialTimeout: time.Duration(c.DialTimeoutSec) * time.Second,
		}), nil

	case config.TransportSerial:
		return control.SerialFactory(c.Baud), nil

	case config.TransportWebSocket:
		password := ""
		if c.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, err
			}
		}
		return control.WebSocketFactory(control.WebSocketOptions{
			URL:                c.URL,
			Username:           c.Username,
			Password:           password,
			InsecureSkipVerify: c.InsecureSkipVerify,
		}), nil
	}

	return nil, fmt.Errorf("unknown transport %q", c.Transport)
}

// ConnectionInfo describes the control connection for banners
func ConnectionInfo(c config.ControlConfig) string {
	switch c.Transport {
	case config.TransportSerial:
		return fmt.Sprintf("Serial: %s @ %d baud", c.Device, c.Baud)
	case config.TransportWebSocket:
		return fmt.Sprintf("WebSocket: %s", c.URL)
	default:
		return fmt.Sprintf("TCP: %s:%d", c.Host, c.Port)
	}
}

// NewControlClient creates a control client for the loaded configuration.
// The serial transport takes the device path in place of a host.
func NewControlClient(c config.ControlConfig, onState func(control.State)) (*control.Client, error) {
	factory, err := NewTransportFactory(c)
	if err != nil {
		return nil, err
	}

	host := c.Host
	if c.Transport == config.TransportSerial {
		host = c.Device
	}

	return control.NewClient(control.Config{
		Host:          host,
		Port:          c.Port,
		Factory:       factory,
		Logf:          logging.Std,
		OnStateChange: onState,
	}), nil
}

// NewDataListener creates a data channel listener for the loaded configuration
func NewDataListener(d config.DataConfig) *datagram.Listener {
	return datagram.NewListener(datagram.Config{
		Port:       d.Port,
		ReadBuffer: d.ReadBuffer,
		Logf:       logging.Std,
	})
}

// dialTimeout bounds a single connect attempt
func dialTimeout(parent context.Context, seconds int) (context.Context, context.CancelFunc) {
	if seconds <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, time.Duration(seconds)*time.Second)
}

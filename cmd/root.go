// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/sdrlink/internal/config"
	"github.com/Thermoquad/sdrlink/internal/logging"
)

var (
	configPath string

	// Control channel flags
	host        string
	controlPort int
	transport   string

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Data channel flags
	dataPort int

	logFile string

	// Loaded in PersistentPreRunE
	cfg       *config.Config
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "sdrlink",
	Short: "NetSDR receiver link tool",
	Long: `sdrlink - A CLI tool for talking to NetSDR-style receivers.

Connects the control channel (TCP, serial or a WebSocket bridge), listens for
IQ data frames on the UDP data channel and decodes both in human-readable form.

Settings come from an optional YAML file (--config), then SDRLINK_* environment
variables, then the flags below.

Connection modes:
  TCP:       --host 192.168.1.10 [--control-port 50000]
  Serial:    --transport serial --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --transport websocket --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the SDRLINK_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")

	// Control channel flags
	rootCmd.PersistentFlags().StringVar(&host, "host", "", "Receiver host (tcp only)")
	rootCmd.PersistentFlags().IntVar(&controlPort, "control-port", 0, "Control channel TCP port")
	rootCmd.PersistentFlags().StringVarP(&transport, "transport", "t", "", "Control transport: tcp, serial or websocket")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Data channel flags
	rootCmd.PersistentFlags().IntVar(&dataPort, "data-port", 0, "Local UDP port for IQ data")

	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to a rotated file")
}

// loadConfig layers explicitly set flags over the file and environment
// configuration, validates the result once, then sets up logging
func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Read(configPath)
	if err != nil {
		return err
	}

	applyFlagOverrides(loaded, cmd.Flags().Changed)

	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	cfg = loaded
	logCloser = logging.Setup(logging.Options{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
		Console:    cfg.Log.Console,
	})
	return nil
}

// applyFlagOverrides copies every flag the user set into loaded
func applyFlagOverrides(loaded *config.Config, changed func(name string) bool) {
	if changed("host") {
		loaded.Control.Host = host
	}
	if changed("control-port") {
		loaded.Control.Port = controlPort
	}
	if changed("transport") {
		loaded.Control.Transport = transport
	}
	if changed("port") {
		loaded.Control.Device = portName
		// --port alone implies serial, as it always has
		if !changed("transport") {
			loaded.Control.Transport = config.TransportSerial
		}
	}
	if changed("baud") {
		loaded.Control.Baud = baudRate
	}
	if changed("url") {
		loaded.Control.URL = wsURL
		if !changed("transport") {
			loaded.Control.Transport = config.TransportWebSocket
		}
	}
	if changed("username") {
		loaded.Control.Username = wsUsername
	}
	if changed("no-ssl-verify") {
		loaded.Control.InsecureSkipVerify = wsNoSSLVerify
	}
	if changed("data-port") {
		loaded.Data.Port = dataPort
	}
	if changed("log-file") {
		loaded.Log.File = logFile
	}
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

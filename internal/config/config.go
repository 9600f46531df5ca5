// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
)

// Transport names accepted in control.transport
const (
	TransportTCP       = "tcp"
	TransportSerial    = "serial"
	TransportWebSocket = "websocket"
)

// Config represents the complete sdrlink configuration
type Config struct {
	Control ControlConfig `yaml:"control"`
	Data    DataConfig    `yaml:"data"`
	Log     LogConfig     `yaml:"log"`
}

// ControlConfig holds control channel settings
type ControlConfig struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	Transport          string `yaml:"transport"`
	Device             string `yaml:"device"` // serial device path
	Baud               int    `yaml:"baud"`
	URL                string `yaml:"url"` // websocket bridge URL
	Username           string `yaml:"username"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
	DialTimeoutSec     int    `yaml:"dialTimeoutSec"`
}

// DataConfig holds data channel settings
type DataConfig struct {
	Port       int `yaml:"port"`
	ReadBuffer int `yaml:"readBuffer"` // socket receive buffer, bytes; 0 keeps the OS default
	SampleBits int `yaml:"sampleBits"`
}

// LogConfig holds log output settings
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
	Console    bool   `yaml:"console"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Control: ControlConfig{
			Host:           "127.0.0.1",
			Port:           50000,
			Transport:      TransportTCP,
			Baud:           115200,
			DialTimeoutSec: 15,
		},
		Data: DataConfig{
			Port:       50000,
			SampleBits: 16,
		},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Console:    true,
		},
	}
}

// Load builds a configuration from defaults, the YAML file at path (skipped
// when path is empty) and environment overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Read layers defaults, the YAML file at path (skipped when path is empty)
// and environment overrides without validating. Callers that apply further
// overrides must call Validate themselves.
func Read(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(cfg *Config) {
	if host := os.Getenv("SDRLINK_HOST"); host != "" {
		cfg.Control.Host = host
	}

	if port := os.Getenv("SDRLINK_CONTROL_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Control.Port = p
		}
	}

	if port := os.Getenv("SDRLINK_DATA_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Data.Port = p
		}
	}

	if transport := os.Getenv("SDRLINK_TRANSPORT"); transport != "" {
		cfg.Control.Transport = transport
	}

	if file := os.Getenv("SDRLINK_LOG_FILE"); file != "" {
		cfg.Log.File = file
	}
}

// Validate checks the configuration for values the transports cannot use
func (c *Config) Validate() error {
	switch c.Control.Transport {
	case TransportTCP:
		if c.Control.Host == "" {
			return fmt.Errorf("control.host is required for tcp transport")
		}
		if err := validatePort("control.port", c.Control.Port); err != nil {
			return err
		}
	case TransportSerial:
		if c.Control.Device == "" {
			return fmt.Errorf("control.device is required for serial transport")
		}
		if c.Control.Baud <= 0 {
			return fmt.Errorf("control.baud must be positive, got %d", c.Control.Baud)
		}
	case TransportWebSocket:
		if c.Control.URL == "" {
			return fmt.Errorf("control.url is required for websocket transport")
		}
	default:
		return fmt.Errorf("invalid control.transport: %q (must be tcp, serial or websocket)", c.Control.Transport)
	}

	if c.Control.DialTimeoutSec < 0 {
		return fmt.Errorf("control.dialTimeoutSec must not be negative")
	}

	// Port 0 asks the OS for an ephemeral port
	if c.Data.Port != 0 {
		if err := validatePort("data.port", c.Data.Port); err != nil {
			return err
		}
	}
	if c.Data.ReadBuffer < 0 {
		return fmt.Errorf("data.readBuffer must not be negative")
	}
	switch c.Data.SampleBits {
	case 8, 16, 24, 32:
	default:
		return fmt.Errorf("data.sampleBits must be 8, 16, 24 or 32, got %d", c.Data.SampleBits)
	}

	return nil
}

func validatePort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
	}
	return nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sdrlink.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Control.Host != "127.0.0.1" {
		t.Errorf("Expected host 127.0.0.1, got %s", cfg.Control.Host)
	}
	if cfg.Control.Port != 50000 || cfg.Data.Port != 50000 {
		t.Errorf("Expected ports 50000/50000, got %d/%d", cfg.Control.Port, cfg.Data.Port)
	}
	if cfg.Control.Transport != TransportTCP {
		t.Errorf("Expected tcp transport, got %s", cfg.Control.Transport)
	}
	if cfg.Data.SampleBits != 16 {
		t.Errorf("Expected 16 sample bits, got %d", cfg.Data.SampleBits)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
control:
  host: 10.0.0.5
  port: 50001
data:
  port: 50002
  readBuffer: 4194304
  sampleBits: 24
log:
  file: /tmp/sdrlink.log
  compress: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Control.Host != "10.0.0.5" || cfg.Control.Port != 50001 {
		t.Errorf("control = %+v", cfg.Control)
	}
	if cfg.Data.Port != 50002 || cfg.Data.ReadBuffer != 4194304 || cfg.Data.SampleBits != 24 {
		t.Errorf("data = %+v", cfg.Data)
	}
	if !cfg.Log.Compress || cfg.Log.File != "/tmp/sdrlink.log" {
		t.Errorf("log = %+v", cfg.Log)
	}
	// Unset keys keep their defaults
	if cfg.Control.Baud != 115200 || cfg.Log.MaxBackups != 3 {
		t.Errorf("defaults lost: baud %d, backups %d", cfg.Control.Baud, cfg.Log.MaxBackups)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Control.Port != 50000 {
		t.Errorf("Expected default port, got %d", cfg.Control.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SDRLINK_HOST", "192.168.1.50")
	t.Setenv("SDRLINK_CONTROL_PORT", "6000")
	t.Setenv("SDRLINK_DATA_PORT", "6001")
	t.Setenv("SDRLINK_LOG_FILE", "/var/log/sdrlink.log")

	path := writeConfig(t, "control:\n  host: 10.0.0.1\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Control.Host != "192.168.1.50" {
		t.Errorf("Expected env host, got %s", cfg.Control.Host)
	}
	if cfg.Control.Port != 6000 || cfg.Data.Port != 6001 {
		t.Errorf("Expected env ports, got %d/%d", cfg.Control.Port, cfg.Data.Port)
	}
	if cfg.Log.File != "/var/log/sdrlink.log" {
		t.Errorf("Expected env log file, got %s", cfg.Log.File)
	}
}

func TestLoad_InvalidEnvPortIgnored(t *testing.T) {
	t.Setenv("SDRLINK_CONTROL_PORT", "not-a-port")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Control.Port != 50000 {
		t.Errorf("Expected default port, got %d", cfg.Control.Port)
	}
}

func TestRead_DefersValidation(t *testing.T) {
	// Serial without a device is incomplete until a --port flag fills it in
	t.Setenv("SDRLINK_TRANSPORT", "serial")

	cfg, err := Read("")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if cfg.Control.Transport != TransportSerial {
		t.Errorf("Expected serial transport, got %s", cfg.Control.Transport)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Expected Validate to reject serial without a device")
	}

	cfg.Control.Device = "/dev/ttyUSB0"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate after override failed: %v", err)
	}

	if _, err := Load(""); err == nil {
		t.Error("Expected Load to validate")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad transport", func(c *Config) { c.Control.Transport = "carrier-pigeon" }, "invalid control.transport"},
		{"empty host", func(c *Config) { c.Control.Host = "" }, "control.host"},
		{"control port zero", func(c *Config) { c.Control.Port = 0 }, "control.port"},
		{"control port too large", func(c *Config) { c.Control.Port = 70000 }, "control.port"},
		{"serial without device", func(c *Config) { c.Control.Transport = TransportSerial }, "control.device"},
		{"serial bad baud", func(c *Config) {
			c.Control.Transport = TransportSerial
			c.Control.Device = "/dev/ttyUSB0"
			c.Control.Baud = 0
		}, "control.baud"},
		{"websocket without url", func(c *Config) { c.Control.Transport = TransportWebSocket }, "control.url"},
		{"data port too large", func(c *Config) { c.Data.Port = 65536 }, "data.port"},
		{"negative read buffer", func(c *Config) { c.Data.ReadBuffer = -1 }, "data.readBuffer"},
		{"sample bits", func(c *Config) { c.Data.SampleBits = 12 }, "data.sampleBits"},
		{"negative dial timeout", func(c *Config) { c.Control.DialTimeoutSec = -1 }, "dialTimeoutSec"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_EphemeralDataPort(t *testing.T) {
	cfg := Default()
	cfg.Data.Port = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("data port 0 should be allowed: %v", err)
	}
}

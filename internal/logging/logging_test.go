// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPrefixed(t *testing.T) {
	var got string
	f := Prefixed(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	}, "[control]")

	f("connected to %s:%d", "host", 50000)

	if got != "[control] connected to host:50000" {
		t.Errorf("got %q", got)
	}
}

func TestOrStd(t *testing.T) {
	if OrStd(nil) == nil {
		t.Fatal("OrStd(nil) returned nil")
	}
	called := false
	OrStd(func(string, ...interface{}) { called = true })("x")
	if !called {
		t.Error("OrStd should return the given hook")
	}
	Nop("ignored %d", 1)
}

func TestSetup_File(t *testing.T) {
	defer log.SetOutput(os.Stderr)

	path := filepath.Join(t.TempDir(), "sdrlink.log")
	closer := Setup(Options{File: path, MaxSizeMB: 1, MaxBackups: 1})

	Std("hello %s", "file")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "hello file") {
		t.Errorf("log file = %q", data)
	}
}

func TestSetup_StderrOnly(t *testing.T) {
	defer log.SetOutput(os.Stderr)

	closer := Setup(Options{})
	if err := closer.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}

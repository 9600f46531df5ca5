// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package logging holds the printf-style logging hook used across sdrlink and
// the process-level log setup.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logf is the logging hook components accept in their config
type Logf func(format string, v ...interface{})

// Std writes through the standard logger
func Std(format string, v ...interface{}) {
	log.Printf(format, v...)
}

// Nop discards everything
func Nop(string, ...interface{}) {}

// OrStd returns f, or Std when f is nil
func OrStd(f Logf) Logf {
	if f == nil {
		return Std
	}
	return f
}

// Prefixed returns a Logf that prepends prefix to every line
func Prefixed(f Logf, prefix string) Logf {
	f = OrStd(f)
	return func(format string, v ...interface{}) {
		f(prefix+" "+format, v...)
	}
}

// Options configures the process logger
type Options struct {
	File       string // empty logs to stderr only
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Console    bool // also write to stderr when File is set
}

// Setup points the standard logger at the configured outputs. The returned
// closer flushes and closes the log file, if any.
func Setup(opts Options) io.Closer {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if opts.File == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}
	}

	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}

	var out io.Writer = rotator
	if opts.Console {
		out = io.MultiWriter(rotator, os.Stderr)
	}
	log.SetOutput(out)

	return rotator
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

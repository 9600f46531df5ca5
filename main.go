// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// sdrlink - NetSDR receiver link tool
//
// A CLI tool for connecting to NetSDR-style receivers and decoding their
// control and IQ data traffic in human-readable format.

package main

import (
	"os"

	"github.com/Thermoquad/sdrlink/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/sdrlink/internal/logging"
	"github.com/Thermoquad/sdrlink/internal/testserver"
)

var (
	echoListen     string
	echoStreamTo   string
	echoIntervalMs int
	echoSamples    int
)

var echoServerCmd = &cobra.Command{
	Use:   "echo_server",
	Short: "Run a stand-in receiver for testing without hardware",
	Long: `Run a TCP echo server on the control port and optionally stream synthetic
IQ data frames over UDP.

Every byte received on a control connection is sent straight back, so a
control item request comes back as a well-formed frame. With --stream-to the
server also sends DATA_ITEM_0 frames carrying a 16-bit ramp with incrementing
sequence numbers, which the monitor command can decode and count.

Example:
  sdrlink echo_server --stream-to 127.0.0.1:50000
  sdrlink monitor --host 127.0.0.1 --show-data`,
	RunE: runEchoServer,
}

func init() {
	rootCmd.AddCommand(echoServerCmd)
	echoServerCmd.Flags().StringVar(&echoListen, "listen", "", "Control listen address (default: all interfaces on the control port)")
	echoServerCmd.Flags().StringVar(&echoStreamTo, "stream-to", "", "UDP address to stream data frames to")
	echoServerCmd.Flags().IntVar(&echoIntervalMs, "interval", 10, "Milliseconds between data frames")
	echoServerCmd.Flags().IntVar(&echoSamples, "samples", 256, "16-bit samples per data frame")
}

func runEchoServer(cmd *cobra.Command, args []string) error {
	addr := echoListen
	if addr == "" {
		addr = net.JoinHostPort("", strconv.Itoa(cfg.Control.Port))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := testserver.New(testserver.Config{
		ControlAddr:     addr,
		StreamTo:        echoStreamTo,
		Interval:        time.Duration(echoIntervalMs) * time.Millisecond,
		SamplesPerFrame: echoSamples,
		Logf:            logging.Std,
	})
	if err := srv.Start(ctx); err != nil {
		return err
	}
	defer srv.Close()

	fmt.Printf("sdrlink - Echo Server\n")
	fmt.Printf("Control: TCP %s\n", srv.Addr())
	if echoStreamTo != "" {
		fmt.Printf("Data:    UDP -> %s\n", echoStreamTo)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	<-ctx.Done()

	if echoStreamTo != "" {
		fmt.Printf("\nSent %d data frames\n", srv.FramesSent())
	}
	return nil
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/sdrlink/pkg/control"
	"github.com/Thermoquad/sdrlink/pkg/netsdr"
)

var (
	packetTestTimeout int
	packetTestRequest string
)

var errPacketTimeout = errors.New("no valid frame before timeout")

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid control frame",
	Long: `Wait for a valid control frame on the control channel until timeout.

This command connects the control channel, sends a control item request
(RECEIVER_STATE unless --request says otherwise; pass --request "" to only
listen) and waits for a complete frame that decodes cleanly. Bytes that do
not line up with a frame header are skipped.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Useful for testing connectivity to a receiver or a WebSocket bridge.`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
	packetTestCmd.Flags().StringVarP(&packetTestRequest, "request", "r", "RECEIVER_STATE", "Control item to request after connecting")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	var request []byte
	if packetTestRequest != "" {
		code, err := parseControlItem(packetTestRequest)
		if err != nil {
			return err
		}
		request = netsdr.NewControlItemRequest(code, 0)
	}

	client, err := NewControlClient(cfg.Control, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer client.Disconnect()

	fmt.Printf("sdrlink - Packet Test\n")
	fmt.Printf("Connection: %s\n", ConnectionInfo(cfg.Control))
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for valid control frame...\n\n")

	timeout := time.Duration(packetTestTimeout) * time.Second
	msg, skipped, err := waitForFrame(context.Background(), client, request, timeout)

	switch {
	case err == nil:
		if skipped > 0 {
			fmt.Printf("(skipped %d invalid bytes before sync)\n", skipped)
		}
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Type: %s (%d)\n", netsdr.FormatMessageType(msg.Type), msg.Type)
		fmt.Printf("  Item: %s (0x%04X)\n", netsdr.FormatControlItemCode(msg.Code), uint16(msg.Code))
		fmt.Printf("  Length: %d bytes\n", msg.Length())
		client.Disconnect()
		os.Exit(0)

	case errors.Is(err, errPacketTimeout):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", packetTestTimeout)
		client.Disconnect()
		os.Exit(1)

	default:
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		client.Disconnect()
		os.Exit(2)
	}

	return nil
}

// waitForFrame connects client, sends request if set and waits for the first
// control frame that decodes without error. skipped counts the bytes
// discarded before it. The timeout covers the connect.
func waitForFrame(ctx context.Context, client *control.Client, request []byte, timeout time.Duration) (*netsdr.Message, int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		msg     *netsdr.Message
		skipped int
	}
	found := make(chan result, 1)

	var splitter frameSplitter
	skipped := 0
	id := client.Subscribe(func(chunk []byte) {
		frames, junk := splitter.Push(chunk)
		skipped += len(junk)
		for _, frame := range frames {
			msg, err := netsdr.Decode(frame)
			if err != nil || !msg.Type.IsControl() {
				skipped += len(frame)
				continue
			}
			select {
			case found <- result{msg: msg, skipped: skipped}:
			default:
			}
			return
		}
	})
	defer client.Unsubscribe(id)

	if err := client.Connect(ctx); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, 0, errPacketTimeout
		}
		return nil, 0, err
	}

	if request != nil {
		if err := client.Send(request); err != nil {
			return nil, 0, err
		}
	}

	select {
	case r := <-found:
		return r.msg, r.skipped, nil
	case <-client.Done():
		// A frame may have landed just before the close
		select {
		case r := <-found:
			return r.msg, r.skipped, nil
		default:
		}
		return nil, 0, fmt.Errorf("connection closed before a valid frame arrived: %w", control.ErrNotConnected)
	case <-ctx.Done():
		return nil, 0, errPacketTimeout
	}
}

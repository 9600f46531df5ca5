// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/sdrlink/pkg/control"
	"github.com/Thermoquad/sdrlink/pkg/netsdr"
)

var (
	monitorRequest   string
	monitorChannel   uint8
	monitorReconnect bool
	monitorStatsSec  int
	monitorShowData  bool
	monitorSamples   int
	monitorNoData    bool
)

const (
	reconnectMinDelay = 1 * time.Second
	reconnectMaxDelay = 30 * time.Second
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Decode control and data channel traffic as it arrives",
	Long: `Connect the control channel, listen on the data channel and print every
decoded frame with timestamp, type and payload.

Control frames are always printed. Data frames are counted in the statistics
and only printed with --show-data, since a running receiver sends thousands
per second.

Use --request to ask the receiver for a control item after every connect,
for example --request RECEIVER_FREQUENCY or --request 0x0020.

With --reconnect the control channel is reopened with exponential backoff
(1s up to 30s) whenever the connection drops.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringVarP(&monitorRequest, "request", "r", "", "Control item to request after connecting")
	monitorCmd.Flags().Uint8Var(&monitorChannel, "channel", 0, "Receiver channel for --request")
	monitorCmd.Flags().BoolVar(&monitorReconnect, "reconnect", false, "Reconnect when the control channel drops")
	monitorCmd.Flags().IntVar(&monitorStatsSec, "stats-interval", 5, "Seconds between statistics reports (0 disables)")
	monitorCmd.Flags().BoolVar(&monitorShowData, "show-data", false, "Print every data frame")
	monitorCmd.Flags().IntVar(&monitorSamples, "samples", 0, "Print the first N samples of each shown data frame")
	monitorCmd.Flags().BoolVar(&monitorNoData, "no-data", false, "Do not open the data channel")
}

// monitor serializes output and statistics across the two receive goroutines
type monitor struct {
	mu          sync.Mutex
	splitter    frameSplitter
	controlStat *netsdr.Statistics
	dataStat    *netsdr.Statistics
	sampleBits  int
}

func newMonitor(sampleBits int) *monitor {
	return &monitor{
		controlStat: netsdr.NewStatistics(),
		dataStat:    netsdr.NewStatistics(),
		sampleBits:  sampleBits,
	}
}

func timestamp() string {
	return time.Now().Format("15:04:05.000")
}

func (m *monitor) onControl(chunk []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	frames, junk := m.splitter.Push(chunk)
	if len(junk) > 0 {
		fmt.Printf("[%s] [ERROR] skipped %d bytes to resync\n", timestamp(), len(junk))
		fmt.Print(netsdr.FormatHexDump(junk))
	}

	for _, frame := range frames {
		msg, err := netsdr.Decode(frame)
		m.controlStat.Update(frame, msg, err)
		if err != nil {
			fmt.Printf("[%s] [ERROR] %v\n", timestamp(), err)
			fmt.Print(netsdr.FormatHexDump(frame))
			continue
		}
		fmt.Printf("[%s] %s", timestamp(), netsdr.FormatMessage(msg))
	}
}

func (m *monitor) onData(frame []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, err := netsdr.Decode(frame)
	m.dataStat.Update(frame, msg, err)
	if err != nil {
		fmt.Printf("[%s] [ERROR] data: %v\n", timestamp(), err)
		return
	}
	if !monitorShowData {
		return
	}

	fmt.Printf("[%s] %s", timestamp(), netsdr.FormatMessage(msg))
	if monitorSamples > 0 {
		m.printSamples(msg.Body)
	}
}

func (m *monitor) printSamples(body []byte) {
	samples, err := netsdr.DecodeSamples(m.sampleBits, body)
	if err != nil {
		fmt.Printf("  Samples: %v\n", err)
		return
	}

	fmt.Print("  Samples:")
	n := 0
	for s := range samples {
		if n == monitorSamples {
			break
		}
		fmt.Printf(" %d", s)
		n++
	}
	fmt.Println()
}

func (m *monitor) printStats() {
	m.mu.Lock()
	defer m.mu.Unlock()

	fmt.Printf("\n--- Control Channel ---\n%s", m.controlStat.String())
	if !monitorNoData {
		fmt.Printf("--- Data Channel ---\n%s", m.dataStat.String())
	}
	fmt.Println()
}

func (m *monitor) resetStream() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.splitter.Reset()
}

func runMonitor(cmd *cobra.Command, args []string) error {
	var request []byte
	if monitorRequest != "" {
		code, err := parseControlItem(monitorRequest)
		if err != nil {
			return err
		}
		request = netsdr.NewControlItemRequest(code, monitorChannel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mon := newMonitor(cfg.Data.SampleBits)

	client, err := NewControlClient(cfg.Control, nil)
	if err != nil {
		return err
	}
	client.Subscribe(mon.onControl)
	defer client.Disconnect()

	fmt.Printf("sdrlink - Monitor\n")
	fmt.Printf("Control: %s\n", ConnectionInfo(cfg.Control))

	if !monitorNoData {
		listener := NewDataListener(cfg.Data)
		listener.Subscribe(mon.onData)
		if err := listener.StartListening(); err != nil {
			return err
		}
		defer listener.Dispose()
		fmt.Printf("Data:    UDP %v\n", listener.LocalAddr())
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	if monitorStatsSec > 0 {
		go func() {
			ticker := time.NewTicker(time.Duration(monitorStatsSec) * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					mon.printStats()
				}
			}
		}()
	}

	err = superviseControl(ctx, client, superviseOptions{
		dialTimeoutSec: cfg.Control.DialTimeoutSec,
		request:        request,
		reconnect:      monitorReconnect,
		onDrop:         mon.resetStream,
	})
	mon.printStats()
	return err
}

type superviseOptions struct {
	dialTimeoutSec int
	request        []byte // sent after every connect if set
	reconnect      bool
	onDrop         func()
	minDelay       time.Duration // 0 uses reconnectMinDelay
}

// superviseControl keeps the control channel open until ctx is done. Without
// reconnect it returns when the first connection ends.
func superviseControl(ctx context.Context, client *control.Client, opts superviseOptions) error {
	if opts.minDelay == 0 {
		opts.minDelay = reconnectMinDelay
	}
	delay := opts.minDelay

	for {
		dialCtx, cancel := dialTimeout(ctx, opts.dialTimeoutSec)
		err := client.Connect(dialCtx)
		cancel()

		if err == nil {
			delay = opts.minDelay
			if opts.request != nil {
				if err := client.Send(opts.request); err != nil {
					log.Printf("request failed: %v", err)
				}
			}

			select {
			case <-ctx.Done():
				return nil
			case <-client.Done():
			}
			if opts.onDrop != nil {
				opts.onDrop()
			}
		} else if ctx.Err() != nil {
			return nil
		}

		if !opts.reconnect {
			if err != nil {
				return err
			}
			fmt.Printf("Connection closed\n")
			return nil
		}

		log.Printf("reconnecting in %s", delay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, reconnectMaxDelay)
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"

	"github.com/Thermoquad/sdrlink/internal/events"
	"github.com/Thermoquad/sdrlink/internal/logging"
)

// ReadBufferSize is the size of a single receive read: the largest frame the
// device sends.
const ReadBufferSize = 8194

// State is the connection state of a Client
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Config configures a Client
type Config struct {
	Host string
	Port int

	// Factory creates the transport for each connect. Defaults to TCP.
	Factory TransportFactory

	// Logf receives lifecycle log lines. Defaults to logging.Std.
	Logf logging.Logf

	// OnStateChange, if set, is called after every state transition. It is
	// called without internal locks held and may call back into the Client.
	OnStateChange func(State)
}

// Client owns one control connection at a time. Received bytes are delivered
// to subscribers exactly as read, with no frame reassembly.
type Client struct {
	cfg    Config
	addr   string
	logf   logging.Logf
	events *events.Broadcaster

	mu        sync.Mutex
	state     State
	gen       uint64 // identifies the current connect cycle
	transport Transport
	stream    Stream
	cancel    context.CancelFunc
	done      chan struct{}
	attempt   *connectAttempt // set while Connecting
}

// connectAttempt lets concurrent Connect calls share one outcome
type connectAttempt struct {
	done chan struct{}
	err  error // valid once done is closed
}

func (a *connectAttempt) finish(err error) error {
	a.err = err
	close(a.done)
	return err
}

// NewClient creates a disconnected client
func NewClient(cfg Config) *Client {
	if cfg.Factory == nil {
		cfg.Factory = TCPFactory(TCPOptions{})
	}

	done := make(chan struct{})
	close(done)

	return &Client{
		cfg:    cfg,
		addr:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		logf:   logging.Prefixed(cfg.Logf, "[control]"),
		events: events.NewBroadcaster(),
		done:   done,
	}
}

// Subscribe registers a handler for received chunks. Handlers run on the
// receive goroutine, in order, and must not block for long.
func (c *Client) Subscribe(h func(data []byte)) string {
	return c.events.Subscribe(h)
}

// Unsubscribe removes a handler
func (c *Client) Unsubscribe(id string) {
	c.events.Unsubscribe(id)
}

// State returns the current connection state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the client is Connected
func (c *Client) IsConnected() bool {
	return c.State() == Connected
}

// Done returns a channel closed when the current connect cycle has ended and
// released its resources. It is already closed if the client never connected.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Connect opens a connection and starts the receive loop. It does nothing if
// the client is already connected. If another Connect is in flight it waits
// for that attempt and returns its result, or ctx.Err() if ctx ends first.
// ctx bounds only the connection attempt; the connection itself lives until
// Disconnect or until the remote side closes it. Failures are logged and
// returned, and leave the client Disconnected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case Connected:
		c.mu.Unlock()
		c.logf("already connected to %s", c.addr)
		return nil
	case Connecting:
		attempt := c.attempt
		c.mu.Unlock()
		c.logf("already connecting to %s, waiting", c.addr)
		select {
		case <-attempt.done:
			return attempt.err
		case <-ctx.Done():
			return fmt.Errorf("connect to %s: %w", c.addr, ctx.Err())
		}
	}

	c.gen++
	gen := c.gen
	loopCtx, cancel := context.WithCancel(context.Background())
	transport := c.cfg.Factory()
	done := make(chan struct{})
	attempt := &connectAttempt{done: make(chan struct{})}

	c.transport = transport
	c.cancel = cancel
	c.done = done
	c.attempt = attempt
	c.state = Connecting
	c.mu.Unlock()
	c.notify(Connecting)

	c.logf("connecting to %s", c.addr)

	stream, err := c.open(ctx, loopCtx, transport)
	if err != nil {
		c.logf("connect to %s failed: %v", c.addr, err)
		c.disconnect(gen)
		close(done)
		return attempt.finish(fmt.Errorf("connect to %s: %w", c.addr, err))
	}

	c.mu.Lock()
	if c.gen != gen || c.state != Connecting {
		// Disconnect ran while the transport was opening
		c.mu.Unlock()
		stream.Close()
		transport.Close()
		close(done)
		c.logf("connect to %s aborted", c.addr)
		return attempt.finish(fmt.Errorf("connect to %s: %w", c.addr, context.Canceled))
	}
	c.stream = stream
	c.state = Connected
	c.attempt = nil
	c.mu.Unlock()
	c.notify(Connected)

	c.logf("connected to %s", c.addr)

	// Cancelling the scope closes the stream, which unblocks a pending Read
	stop := context.AfterFunc(loopCtx, func() { stream.Close() })
	go c.receiveLoop(loopCtx, gen, stream, done, stop)

	return attempt.finish(nil)
}

// open connects the transport with a context bounded by both the caller and
// the connection scope, so Disconnect also aborts a pending dial.
func (c *Client) open(ctx, loopCtx context.Context, transport Transport) (Stream, error) {
	dialCtx, dialCancel := context.WithCancel(ctx)
	defer dialCancel()
	stop := context.AfterFunc(loopCtx, dialCancel)
	defer stop()

	if err := transport.Connect(dialCtx, c.cfg.Host, c.cfg.Port); err != nil {
		return nil, err
	}

	stream, err := transport.Stream()
	if err != nil {
		return nil, err
	}
	return &onceStream{Stream: stream}, nil
}

// Disconnect cancels the receive loop, closes the stream and the transport
// and returns to Disconnected. It does not wait for the receive loop to exit;
// use Done for that. Safe to call repeatedly and from subscriber handlers.
func (c *Client) Disconnect() {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	c.disconnect(gen)
}

// disconnect tears down connect cycle gen. A stale gen is ignored so a late
// loop cleanup cannot close a newer connection.
func (c *Client) disconnect(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.state == Disconnected {
		c.mu.Unlock()
		return
	}
	cancel, stream, transport := c.cancel, c.stream, c.transport
	c.cancel, c.stream, c.transport = nil, nil, nil
	c.attempt = nil
	c.state = Disconnected
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stream != nil {
		if err := stream.Close(); err != nil {
			c.logf("close stream: %v", err)
		}
	}
	if transport != nil {
		if err := transport.Close(); err != nil {
			c.logf("close transport: %v", err)
		}
	}

	c.logf("disconnected from %s", c.addr)
	c.notify(Disconnected)
}

// Send writes data to the device in one full write
func (c *Client) Send(data []byte) error {
	c.mu.Lock()
	stream, state, gen := c.stream, c.state, c.gen
	c.mu.Unlock()

	if state != Connected || stream == nil {
		return ErrNotConnected
	}

	n, err := stream.Write(data)
	if err == nil && n < len(data) {
		err = io.ErrShortWrite
	}
	if err != nil {
		c.mu.Lock()
		torn := c.gen != gen || c.state != Connected
		c.mu.Unlock()
		if torn {
			return fmt.Errorf("%w: %v", ErrNotConnected, err)
		}
		return fmt.Errorf("send failed: %w", err)
	}
	return nil
}

// SendString sends text as UTF-8 bytes
func (c *Client) SendString(text string) error {
	return c.Send([]byte(text))
}

// MustSend is Send for callers that treat a missing connection as a bug.
// It panics on ErrNotConnected and returns any other error.
func (c *Client) MustSend(data []byte) error {
	err := c.Send(data)
	if errors.Is(err, ErrNotConnected) {
		panic(err)
	}
	return err
}

func (c *Client) receiveLoop(ctx context.Context, gen uint64, stream Stream, done chan struct{}, stop func() bool) {
	defer close(done)
	defer c.disconnect(gen)
	defer stop()

	buf := make([]byte, ReadBufferSize)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			c.events.Publish(buf[:n])
		}

		switch {
		case ctx.Err() != nil:
			return
		case err == nil && n == 0, errors.Is(err, io.EOF):
			c.logf("connection closed by remote")
			return
		case err != nil:
			c.logf("receive failed: %v", err)
			return
		}
	}
}

func (c *Client) notify(s State) {
	if c.cfg.OnStateChange != nil {
		c.cfg.OnStateChange(s)
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package control

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

// logRecorder collects log lines; safe to use after the test returns
type logRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *logRecorder) Logf(format string, v ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, fmt.Sprintf(format, v...))
}

func (r *logRecorder) contains(s string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.lines {
		if strings.Contains(l, s) {
			return true
		}
	}
	return false
}

// chunkRecorder is a subscriber that records received chunks
type chunkRecorder struct {
	mu     sync.Mutex
	chunks [][]byte
}

func (r *chunkRecorder) handle(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = append(r.chunks, data)
}

func (r *chunkRecorder) get() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.chunks...)
}

func newTestClient(t *testing.T) (*Client, *MockTransportFactory, *logRecorder) {
	t.Helper()
	factory := &MockTransportFactory{}
	logs := &logRecorder{}
	c := NewClient(Config{
		Host:    "192.0.2.10",
		Port:    50000,
		Factory: factory.Factory(),
		Logf:    logs.Logf,
	})
	t.Cleanup(c.Disconnect)
	return c, factory, logs
}

func waitDone(t *testing.T, c *Client) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(waitFor):
		t.Fatal("receive loop did not exit")
	}
}

// ============================================================
// Lifecycle Tests
// ============================================================

func TestClient_ConnectAndReceive(t *testing.T) {
	c, factory, _ := newTestClient(t)
	rec := &chunkRecorder{}
	c.Subscribe(rec.handle)

	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, Connected, c.State())
	assert.True(t, c.IsConnected())

	tr := factory.Last()
	require.NotNil(t, tr)
	assert.Equal(t, "192.0.2.10", tr.Host)
	assert.Equal(t, 50000, tr.Port)

	// Chunks are delivered as read, not reassembled into frames
	tr.Conn.Feed([]byte{0x05, 0x00, 0x18})
	tr.Conn.Feed([]byte{0x00, 0x80})
	tr.Conn.Feed([]byte{0xAA})

	require.Eventually(t, func() bool { return len(rec.get()) == 3 }, waitFor, tick)
	chunks := rec.get()
	assert.Equal(t, []byte{0x05, 0x00, 0x18}, chunks[0])
	assert.Equal(t, []byte{0x00, 0x80}, chunks[1])
	assert.Equal(t, []byte{0xAA}, chunks[2])
}

func TestClient_ConnectWhileConnectedIsNoop(t *testing.T) {
	c, factory, logs := newTestClient(t)

	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Connect(context.Background()))

	assert.Equal(t, 1, factory.Count())
	connects, streams, closes := factory.Last().Calls()
	assert.Equal(t, 1, connects)
	assert.Equal(t, 1, streams)
	assert.Equal(t, 0, closes)
	assert.True(t, c.IsConnected())
	assert.True(t, logs.contains("already connected"))
}

func TestClient_DisconnectBeforeConnect(t *testing.T) {
	c, factory, _ := newTestClient(t)

	c.Disconnect()
	c.Disconnect()

	assert.Equal(t, 0, factory.Count())
	assert.Equal(t, Disconnected, c.State())
	waitDone(t, c)
}

func TestClient_DisconnectTwice(t *testing.T) {
	c, factory, _ := newTestClient(t)
	require.NoError(t, c.Connect(context.Background()))
	tr := factory.Last()

	c.Disconnect()
	waitDone(t, c)
	_, _, closes := tr.Calls()
	streamCloses := tr.Conn.CloseCalls

	c.Disconnect()

	_, _, closesAfter := tr.Calls()
	assert.Equal(t, closes, closesAfter, "second Disconnect touched the transport")
	assert.Equal(t, streamCloses, tr.Conn.CloseCalls, "second Disconnect touched the stream")
	assert.Equal(t, 1, closes)
	assert.True(t, tr.Conn.IsClosed())
	assert.Equal(t, Disconnected, c.State())
}

func TestClient_ZeroLengthReadDisconnects(t *testing.T) {
	c, factory, logs := newTestClient(t)
	require.NoError(t, c.Connect(context.Background()))
	tr := factory.Last()

	tr.Conn.Feed([]byte{})

	waitDone(t, c)
	assert.Equal(t, Disconnected, c.State())
	assert.True(t, tr.Conn.IsClosed())
	_, _, closes := tr.Calls()
	assert.Equal(t, 1, closes)
	assert.True(t, logs.contains("closed by remote"))
}

func TestClient_EOFDisconnects(t *testing.T) {
	c, factory, _ := newTestClient(t)
	rec := &chunkRecorder{}
	c.Subscribe(rec.handle)
	require.NoError(t, c.Connect(context.Background()))
	tr := factory.Last()

	tr.Conn.Feed([]byte{0x01})
	tr.Conn.FeedEOF()

	waitDone(t, c)
	assert.Equal(t, Disconnected, c.State())
	assert.Len(t, rec.get(), 1)
}

func TestClient_ReadErrorIsLogged(t *testing.T) {
	c, factory, logs := newTestClient(t)
	require.NoError(t, c.Connect(context.Background()))
	tr := factory.Last()

	// Closing the stream underneath the client looks like an I/O failure
	tr.Conn.Close()

	waitDone(t, c)
	assert.Equal(t, Disconnected, c.State())
	assert.True(t, logs.contains("receive failed"))
}

func TestClient_CancellationIsSilent(t *testing.T) {
	c, _, logs := newTestClient(t)
	require.NoError(t, c.Connect(context.Background()))

	c.Disconnect()
	waitDone(t, c)

	assert.False(t, logs.contains("receive failed"))
	assert.False(t, logs.contains("closed by remote"))
}

func TestClient_Reconnect(t *testing.T) {
	c, factory, _ := newTestClient(t)
	rec := &chunkRecorder{}
	c.Subscribe(rec.handle)

	require.NoError(t, c.Connect(context.Background()))
	first := factory.Last()
	first.Conn.FeedEOF()
	waitDone(t, c)

	require.NoError(t, c.Connect(context.Background()))
	second := factory.Last()
	require.NotSame(t, first, second)
	assert.True(t, c.IsConnected())

	second.Conn.Feed([]byte{0x42})
	require.Eventually(t, func() bool { return len(rec.get()) == 1 }, waitFor, tick)
	assert.False(t, second.Conn.IsClosed())
}

// ============================================================
// Connect Failure Tests
// ============================================================

func TestClient_ConnectFailure(t *testing.T) {
	tests := []struct {
		name      string
		configure func(*MockTransport)
	}{
		{"connect error", func(m *MockTransport) { m.ConnectError = errors.New("connection refused") }},
		{"stream error", func(m *MockTransport) { m.StreamError = errors.New("no stream") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, factory, logs := newTestClient(t)
			factory.Configure = tt.configure

			err := c.Connect(context.Background())
			require.Error(t, err)
			assert.Equal(t, Disconnected, c.State())
			assert.True(t, logs.contains("failed"))

			_, _, closes := factory.Last().Calls()
			assert.Equal(t, 1, closes, "partial transport must be released")
			waitDone(t, c)
		})
	}
}

func TestClient_DisconnectAbortsConnect(t *testing.T) {
	c, factory, _ := newTestClient(t)
	factory.Configure = func(m *MockTransport) { m.BlockConnect = true }

	errCh := make(chan error, 1)
	go func() { errCh <- c.Connect(context.Background()) }()

	require.Eventually(t, func() bool { return factory.Count() == 1 }, waitFor, tick)
	<-factory.Last().Connecting()
	assert.Equal(t, Connecting, c.State())

	c.Disconnect()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitFor):
		t.Fatal("Connect did not return after Disconnect")
	}
	assert.Equal(t, Disconnected, c.State())
}

func TestClient_ConnectWhileConnectingWaits(t *testing.T) {
	c, factory, logs := newTestClient(t)
	factory.Configure = func(m *MockTransport) { m.BlockConnect = true }

	first := make(chan error, 1)
	go func() { first <- c.Connect(context.Background()) }()

	require.Eventually(t, func() bool { return factory.Count() == 1 }, waitFor, tick)
	<-factory.Last().Connecting()

	second := make(chan error, 1)
	go func() { second <- c.Connect(context.Background()) }()

	require.Eventually(t, func() bool { return logs.contains("already connecting") }, waitFor, tick)
	select {
	case err := <-second:
		t.Fatalf("second Connect returned %v while the first was in flight", err)
	case <-time.After(20 * time.Millisecond):
	}

	c.Disconnect()

	for _, ch := range []chan error{first, second} {
		select {
		case err := <-ch:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(waitFor):
			t.Fatal("Connect did not return after Disconnect")
		}
	}
	assert.Equal(t, 1, factory.Count())
	assert.Equal(t, Disconnected, c.State())
}

func TestClient_ConnectWhileConnectingSharesFailure(t *testing.T) {
	c, factory, _ := newTestClient(t)
	factory.Configure = func(m *MockTransport) { m.BlockConnect = true }

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	first := make(chan error, 1)
	go func() { first <- c.Connect(ctx) }()

	require.Eventually(t, func() bool { return factory.Count() == 1 }, waitFor, tick)
	<-factory.Last().Connecting()

	err := c.Connect(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, <-first, context.DeadlineExceeded)
	assert.Equal(t, 1, factory.Count())
	assert.Equal(t, Disconnected, c.State())
}

func TestClient_ConnectWaiterHonoursOwnContext(t *testing.T) {
	c, factory, _ := newTestClient(t)
	factory.Configure = func(m *MockTransport) { m.BlockConnect = true }

	first := make(chan error, 1)
	go func() { first <- c.Connect(context.Background()) }()

	require.Eventually(t, func() bool { return factory.Count() == 1 }, waitFor, tick)
	<-factory.Last().Connecting()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.Connect(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The original attempt is untouched
	assert.Equal(t, Connecting, c.State())

	c.Disconnect()
	select {
	case err := <-first:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitFor):
		t.Fatal("Connect did not return after Disconnect")
	}
}

func TestClient_ConnectContextBoundsDial(t *testing.T) {
	c, factory, _ := newTestClient(t)
	factory.Configure = func(m *MockTransport) { m.BlockConnect = true }

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.Connect(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, Disconnected, c.State())
}

func TestClient_ConnectContextDoesNotBoundConnection(t *testing.T) {
	c, _, _ := newTestClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Connect(ctx))
	cancel()

	time.Sleep(20 * time.Millisecond)
	assert.True(t, c.IsConnected())
}

// ============================================================
// Send Tests
// ============================================================

func TestClient_Send(t *testing.T) {
	c, factory, _ := newTestClient(t)
	require.NoError(t, c.Connect(context.Background()))
	tr := factory.Last()

	require.NoError(t, c.Send([]byte{0x05, 0x20, 0x18, 0x00, 0x00}))
	require.NoError(t, c.SendString("hi"))

	assert.Equal(t, []byte{0x05, 0x20, 0x18, 0x00, 0x00, 'h', 'i'}, tr.Conn.WrittenBytes())
}

func TestClient_SendNotConnected(t *testing.T) {
	c, factory, _ := newTestClient(t)

	assert.ErrorIs(t, c.Send([]byte{0x01}), ErrNotConnected)
	assert.ErrorIs(t, c.SendString("x"), ErrNotConnected)
	assert.Equal(t, 0, factory.Count())

	require.NoError(t, c.Connect(context.Background()))
	c.Disconnect()
	assert.ErrorIs(t, c.Send([]byte{0x01}), ErrNotConnected)
}

func TestClient_SendRacingDisconnect(t *testing.T) {
	c, factory, _ := newTestClient(t)
	require.NoError(t, c.Connect(context.Background()))
	tr := factory.Last()
	tr.Conn.BeforeWrite = c.Disconnect

	err := c.Send([]byte{0x01})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, Disconnected, c.State())
}

func TestClient_SendWriteError(t *testing.T) {
	c, factory, _ := newTestClient(t)
	require.NoError(t, c.Connect(context.Background()))
	writeErr := errors.New("broken pipe")
	factory.Last().Conn.WriteError = writeErr

	err := c.Send([]byte{0x01})
	assert.ErrorIs(t, err, writeErr)
	assert.NotErrorIs(t, err, ErrNotConnected)
}

func TestClient_MustSendPanics(t *testing.T) {
	c, _, _ := newTestClient(t)
	assert.Panics(t, func() { _ = c.MustSend([]byte{0x01}) })
}

// ============================================================
// Observer Tests
// ============================================================

func TestClient_StateChanges(t *testing.T) {
	var mu sync.Mutex
	var states []State

	factory := &MockTransportFactory{}
	c := NewClient(Config{
		Host:    "localhost",
		Port:    50000,
		Factory: factory.Factory(),
		Logf:    func(string, ...interface{}) {},
		OnStateChange: func(s State) {
			mu.Lock()
			defer mu.Unlock()
			states = append(states, s)
		},
	})

	require.NoError(t, c.Connect(context.Background()))
	c.Disconnect()
	waitDone(t, c)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{Connecting, Connected, Disconnected}, states)
}

func TestClient_DisconnectFromHandler(t *testing.T) {
	c, factory, _ := newTestClient(t)
	c.Subscribe(func([]byte) { c.Disconnect() })
	require.NoError(t, c.Connect(context.Background()))

	factory.Last().Conn.Feed([]byte{0x01})

	waitDone(t, c)
	assert.Equal(t, Disconnected, c.State())
}

func TestClient_Unsubscribe(t *testing.T) {
	c, factory, _ := newTestClient(t)
	rec := &chunkRecorder{}
	other := &chunkRecorder{}
	id := c.Subscribe(rec.handle)
	c.Subscribe(other.handle)
	require.NoError(t, c.Connect(context.Background()))

	c.Unsubscribe(id)
	factory.Last().Conn.Feed([]byte{0x01})

	require.Eventually(t, func() bool { return len(other.get()) == 1 }, waitFor, tick)
	assert.Empty(t, rec.get())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "disconnected", Disconnected.String())
	assert.Equal(t, "connecting", Connecting.String())
	assert.Equal(t, "connected", Connected.String())
	assert.Equal(t, "unknown", State(42).String())
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package events delivers raw received bytes to registered handlers.
package events

import (
	"sync"

	"github.com/google/uuid"
)

// Handler receives one raw chunk. The slice is owned by the handler.
type Handler func(data []byte)

// Broadcaster is an ordered subscriber registry. Publish calls every handler
// synchronously, in subscription order, on the publishing goroutine, so each
// handler sees chunks in the order they were published and nothing is dropped.
type Broadcaster struct {
	mu       sync.RWMutex
	order    []string
	handlers map[string]Handler
}

// NewBroadcaster creates an empty registry
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{handlers: make(map[string]Handler)}
}

// Subscribe registers h and returns the id used to unsubscribe it
func (b *Broadcaster) Subscribe(h Handler) string {
	id := uuid.NewString()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[id] = h
	b.order = append(b.order, id)
	return id
}

// Unsubscribe removes a handler. Unknown ids are ignored.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.handlers[id]; !ok {
		return
	}
	delete(b.handlers, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i:i], b.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of subscribers
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

// Publish hands data to every subscriber. Each handler gets its own copy.
// Handlers may subscribe or unsubscribe from inside the callback; the change
// applies from the next Publish.
func (b *Broadcaster) Publish(data []byte) {
	b.mu.RLock()
	snapshot := make([]Handler, 0, len(b.order))
	for _, id := range b.order {
		snapshot = append(snapshot, b.handlers[id])
	}
	b.mu.RUnlock()

	for _, h := range snapshot {
		h(append([]byte(nil), data...))
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

// Package events carries in-process notifications from the sync engine to
// outer layers, so a UI can refresh after a pull lands remote changes.
package events

import "sync"

// TablesUpdated announces that a pull applied remote changes to the named
// tables.
type TablesUpdated struct {
	Tables []string
}

// Bus is a minimal publish/subscribe hub for engine events. Subscribers get
// a buffered channel; a subscriber that stops draining loses events rather
// than blocking the engine.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan TablesUpdated]struct{}
}

// NewBus constructs an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[chan TablesUpdated]struct{})}
}

// Subscribe registers a new subscriber and returns its channel together with
// an unsubscribe function. The unsubscribe function closes the channel.
func (b *Bus) Subscribe() (<-chan TablesUpdated, func()) {
	ch := make(chan TablesUpdated, 8)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}

	return ch, unsubscribe
}

// Publish delivers the event to every subscriber without blocking.
func (b *Bus) Publish(event TablesUpdated) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

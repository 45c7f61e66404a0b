// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishReachesAllSubscribers(t *testing.T) {
	bus := NewBus()

	first, stopFirst := bus.Subscribe()
	second, stopSecond := bus.Subscribe()
	defer stopFirst()
	defer stopSecond()

	bus.Publish(TablesUpdated{Tables: []string{"items"}})

	for _, ch := range []<-chan TablesUpdated{first, second} {
		select {
		case got := <-ch:
			assert.Equal(t, []string{"items"}, got.Tables)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()

	ch, stop := bus.Subscribe()
	stop()

	_, open := <-ch
	assert.False(t, open)

	// A second unsubscribe must be safe.
	require.NotPanics(t, stop)

	// Publishing after unsubscribe must not panic on the closed channel.
	require.NotPanics(t, func() {
		bus.Publish(TablesUpdated{Tables: []string{"folders"}})
	})
}

func TestBus_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	bus := NewBus()

	_, stop := bus.Subscribe()
	defer stop()

	done := make(chan struct{})
	go func() {
		// Overflow the buffer; Publish must drop, not block.
		for i := 0; i < 100; i++ {
			bus.Publish(TablesUpdated{Tables: []string{"items"}})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

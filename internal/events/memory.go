// README: In-process bus used by tests and single-node deployments.
package events

import (
	"context"
	"sync"
)

const subscriberBuffer = 16

// MemoryBus fans events out to buffered subscriber channels. A subscriber that
// cannot keep up has events dropped rather than blocking the publisher.
type MemoryBus struct {
	mu   sync.RWMutex
	subs map[string][]chan Event
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string][]chan Event)}
}

func (b *MemoryBus) Publish(_ context.Context, channel string, e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[channel] {
		select {
		case ch <- e:
		default:
			// subscriber full; event is lost, client must reconcile via pull
		}
	}
}

// Subscribe returns a receive channel for the named room and a cancel func
// that unregisters it.
func (b *MemoryBus) Subscribe(channel string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[channel]
		for i, c := range subs {
			if c == ch {
				b.subs[channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
	return ch, cancel
}

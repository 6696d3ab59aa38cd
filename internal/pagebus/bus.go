// Package pagebus is the page-scope broadcast channel: every subscriber in
// the page context observes every published envelope. Delivery is lossy:
// a subscriber that falls behind loses messages rather than blocking the
// publisher, matching the channel the shadow and bridge share.
package pagebus

import (
	"sync"

	"github.com/pvanko/walletgate/internal/model"
)

// subscriberBuffer bounds each subscriber's backlog. Overflow drops.
const subscriberBuffer = 16

// Bus is an in-process broadcast bus for envelopes.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan model.Envelope
	nextID int
	closed bool
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[int]chan model.Envelope)}
}

// Subscribe registers a listener and returns its channel plus a cancel
// function. Cancel is idempotent.
func (b *Bus) Subscribe() (<-chan model.Envelope, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan model.Envelope, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

// Publish delivers the envelope to every subscriber without blocking.
func (b *Bus) Publish(env model.Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- env:
		default:
			// Subscriber backlog full; the envelope is lost for it.
		}
	}
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

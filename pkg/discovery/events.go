package discovery

import (
	"context"
	"log"
	"sync"
)

// eventBuffer is the per-subscriber channel capacity.
const eventBuffer = 16

// ExitSubscription represents an active subscription to exit events.
// Caller must call Close() when done to clean up resources.
type ExitSubscription struct {
	events <-chan ExitEvent
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of exit events.
// The channel is closed when the subscription is closed or its context is cancelled.
func (s *ExitSubscription) Events() <-chan ExitEvent {
	return s.events
}

// Errors returns the channel of non-fatal subscription errors (e.g. malformed payloads).
func (s *ExitSubscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *ExitSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// exitHub fans exit events out to in-process subscribers.
type exitHub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan ExitEvent
}

func newExitHub() *exitHub {
	return &exitHub{subs: make(map[int]chan ExitEvent)}
}

func (h *exitHub) subscribe(ctx context.Context) *ExitSubscription {
	events := make(chan ExitEvent, eventBuffer)
	errs := make(chan error)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = events
	h.mu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)
	go func() {
		<-subCtx.Done()
		h.mu.Lock()
		delete(h.subs, id)
		close(events)
		close(errs)
		h.mu.Unlock()
	}()

	return &ExitSubscription{events: events, errors: errs, cancel: cancel}
}

// publish never blocks; a subscriber whose buffer is full misses the event.
func (h *exitHub) publish(ev ExitEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			log.Printf("[Discovery] Dropped exit event %v for slow subscriber %d", ev.Exit, id)
		}
	}
}

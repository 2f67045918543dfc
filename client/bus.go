package client

import (
	"log/slog"
	"sync"
)

// Listener receives the events of the type it was registered for.
// Listeners of one call are invoked from a single goroutine, in order.
type Listener func(Event)

// ListenerID identifies a registered listener so it can be removed.
type ListenerID uint64

type listenerEntry struct {
	id ListenerID
	fn Listener
}

// eventBus queues the events of one call and delivers them to listeners
// from its own goroutine, so publishers never block on listeners.
type eventBus struct {
	logger *slog.Logger

	mu        sync.Mutex
	listeners map[EventType][]listenerEntry
	nextID    ListenerID
	queue     []Event
	sealed    bool

	wake chan struct{}
	done chan struct{}
}

func newEventBus(logger *slog.Logger) *eventBus {
	b := &eventBus{
		logger:    logger,
		listeners: make(map[EventType][]listenerEntry),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go b.loop()
	return b
}

func (b *eventBus) on(t EventType, fn Listener) ListenerID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.listeners[t] = append(b.listeners[t], listenerEntry{id: b.nextID, fn: fn})
	return b.nextID
}

func (b *eventBus) off(t EventType, id ListenerID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	current := b.listeners[t]
	kept := make([]listenerEntry, 0, len(current))
	for _, l := range current {
		if l.id != id {
			kept = append(kept, l)
		}
	}
	b.listeners[t] = kept
}

// publish queues ev for delivery. It returns false once the bus is sealed.
func (b *eventBus) publish(ev Event) bool {
	b.mu.Lock()
	if b.sealed {
		b.mu.Unlock()
		return false
	}
	b.queue = append(b.queue, ev)
	b.mu.Unlock()
	b.signal()
	return true
}

// seal queues final, if any, as the last event the bus will ever deliver.
// It returns false if the bus was already sealed.
func (b *eventBus) seal(final *Event) bool {
	b.mu.Lock()
	if b.sealed {
		b.mu.Unlock()
		return false
	}
	if final != nil {
		b.queue = append(b.queue, *final)
	}
	b.sealed = true
	b.mu.Unlock()
	b.signal()
	return true
}

// drop seals the bus and discards every event not yet delivered.
func (b *eventBus) drop() {
	b.mu.Lock()
	b.sealed = true
	b.queue = nil
	b.mu.Unlock()
	b.signal()
}

func (b *eventBus) signal() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *eventBus) loop() {
	defer close(b.done)
	for {
		b.mu.Lock()
		if len(b.queue) == 0 {
			sealed := b.sealed
			b.mu.Unlock()
			if sealed {
				return
			}
			<-b.wake
			continue
		}
		ev := b.queue[0]
		b.queue[0] = Event{}
		b.queue = b.queue[1:]
		// Listeners may call on/off while we iterate.
		snapshot := append([]listenerEntry(nil), b.listeners[ev.Type]...)
		b.mu.Unlock()

		for _, l := range snapshot {
			b.invoke(l, ev)
		}
	}
}

func (b *eventBus) invoke(l listenerEntry, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event listener panicked",
				"event_type", ev.Type,
				"endpoint", ev.Endpoint,
				"fn_index", ev.FnIndex,
				"listener_id", l.id,
				"panic", r,
			)
		}
	}()
	l.fn(ev)
}

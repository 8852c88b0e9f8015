package core

import (
	"sync"
	"weak"
)

// Subscription is the handle returned by Bus.Subscribe. The caller must
// keep it reachable for as long as it wants to keep receiving events;
// once it is garbage collected the bus's weak reference to it expires
// and is purged lazily at the next Publish (spec §4.6, §9 "cyclic
// subscriber/publisher graphs").
type Subscription[T any] struct {
	cb func(T)
}

// Bus is a generic per-event-type publish/subscribe facility (spec
// §4.6). Subscribers are held by weak reference so a session and its
// clients can cross-subscribe without either keeping the other alive.
// Dispatch is synchronous on the publisher's goroutine; a subscriber
// callback must not call back into the same Bus.
type Bus[T any] struct {
	mu   sync.RWMutex
	subs []weak.Pointer[Subscription[T]]
}

// NewBus constructs an empty bus for event type T.
func NewBus[T any]() *Bus[T] {
	return &Bus[T]{}
}

// Subscribe registers cb and returns the handle that keeps it alive.
func (b *Bus[T]) Subscribe(cb func(T)) *Subscription[T] {
	sub := &Subscription[T]{cb: cb}
	wp := weak.Make(sub)

	b.mu.Lock()
	b.subs = append(b.subs, wp)
	b.mu.Unlock()

	return sub
}

// Unsubscribe removes sub from the bus immediately, without waiting for
// garbage collection.
func (b *Bus[T]) Unsubscribe(sub *Subscription[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, wp := range b.subs {
		if wp.Value() == sub {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish dispatches event to every live subscriber, in subscription
// order, then purges any weak references that have expired since the
// last publish.
func (b *Bus[T]) Publish(event T) {
	b.mu.RLock()
	snapshot := make([]weak.Pointer[Subscription[T]], len(b.subs))
	copy(snapshot, b.subs)
	b.mu.RUnlock()

	sawExpired := false
	for _, wp := range snapshot {
		if sub := wp.Value(); sub != nil {
			sub.cb(event)
		} else {
			sawExpired = true
		}
	}

	if sawExpired {
		b.purgeExpired()
	}
}

func (b *Bus[T]) purgeExpired() {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.subs[:0:0]
	for _, wp := range b.subs {
		if wp.Value() != nil {
			kept = append(kept, wp)
		}
	}
	b.subs = kept
}

// Len reports the number of weak references currently tracked, live or
// expired-but-not-yet-purged. Intended for tests and metrics only.
func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

package core

import "sync"

// ExpectedConsumers is the thread-safe set of receiver ids that every
// live chunk in a session's Buffer must be acked by before eviction
// (spec §3, §9 "Open question": the set model, not a shared counter, is
// the only way to correctly recompute remaining() when a *specific*
// receiver leaves).
//
// Grow is disallowed once someRemoved is true or the set would exceed
// maxConsumers. Shrink is always allowed. Every change is expected to be
// followed by the caller re-running Buffer's eviction sweep; this type
// only tracks membership, it does not know about chunks.
type ExpectedConsumers struct {
	mu           sync.RWMutex
	ids          map[ReceiverId]struct{}
	maxConsumers int
	someRemoved  bool
}

// NewExpectedConsumers creates an empty set bounded by maxConsumers.
func NewExpectedConsumers(maxConsumers int) *ExpectedConsumers {
	return &ExpectedConsumers{
		ids:          make(map[ReceiverId]struct{}),
		maxConsumers: maxConsumers,
	}
}

// MarkSomeRemoved freezes further growth. Called by Buffer the first
// time its eviction sweep actually drops a chunk.
func (c *ExpectedConsumers) MarkSomeRemoved() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.someRemoved = true
}

// Add admits id to the set. Fails if growth is frozen or the set is at
// capacity; succeeds idempotently if id is already present.
func (c *ExpectedConsumers) Add(id ReceiverId) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.ids[id]; ok {
		return true
	}
	if c.someRemoved {
		return false
	}
	if len(c.ids) >= c.maxConsumers {
		return false
	}
	c.ids[id] = struct{}{}
	return true
}

// Remove drops id from the set. Always allowed; no-op if absent.
func (c *ExpectedConsumers) Remove(id ReceiverId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.ids, id)
}

// Has reports whether id is currently expected to ack.
func (c *ExpectedConsumers) Has(id ReceiverId) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.ids[id]
	return ok
}

// Size returns the current cardinality of the set.
func (c *ExpectedConsumers) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ids)
}

// someRemovedSnapshot reports whether MarkSomeRemoved has ever been
// called. Exposed to Buffer so it does not need to duplicate the flag.
func (c *ExpectedConsumers) someRemovedSnapshot() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.someRemoved
}

// Snapshot returns a copy of the current member ids, safe to range over
// without holding the lock.
func (c *ExpectedConsumers) Snapshot() []ReceiverId {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ReceiverId, 0, len(c.ids))
	for id := range c.ids {
		out = append(out, id)
	}
	return out
}

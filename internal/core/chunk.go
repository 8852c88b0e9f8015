package core

import "sync"

// Chunk is a single atomic unit of payload delivered by one addChunk
// call (spec §3, §4.1). The payload is immutable once constructed and
// safe to share by handle across goroutines; only the ack counter
// mutates, and only upward.
//
// expected() is not cached on the Chunk: it is read live through a
// shared reference to the session's ExpectedConsumers set, because a
// receiver leaving must immediately shrink every live chunk's
// remaining-count without re-constructing the chunk (spec §4.1
// rationale).
type Chunk struct {
	mu       sync.Mutex
	payload  []byte
	acks     int
	expected *ExpectedConsumers
}

// NewChunk constructs a chunk with an immutable payload and a shared
// handle to the session's expected-consumer set.
func NewChunk(payload []byte, expected *ExpectedConsumers) *Chunk {
	return &Chunk{payload: payload, expected: expected}
}

// Data returns the immutable payload handle.
func (c *Chunk) Data() []byte {
	return c.payload
}

// Size returns the payload length.
func (c *Chunk) Size() int {
	return len(c.payload)
}

// IncrementAcks records one more ack, failing silently (a defensive cap,
// not an error) if acks already reached expected() at the moment of the
// call.
func (c *Chunk) IncrementAcks() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.acks >= c.expected.Size() {
		return
	}
	c.acks++
}

// Remaining returns max(0, expected()-acks), computed under the same
// lock that guards acks so the subtraction never observes a torn value.
func (c *Chunk) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.expected.Size() - c.acks
	if r < 0 {
		return 0
	}
	return r
}

// Acks returns the current ack count, for observability/testing.
func (c *Chunk) Acks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acks
}

package core

import (
	"sync"
	"sync/atomic"
)

// Buffer is the ordered, indexed collection of Chunks for one session: it
// owns admission, eviction, EOF, and the initial-freeze rule (spec §3,
// §4.2). All external calls are serialized through a single
// reader-writer lock; the eviction sweep itself runs under the writer
// lock, per spec §5's lock discipline.
type Buffer struct {
	mu sync.RWMutex

	chunks   map[ChunkIndex]*Chunk
	order    []ChunkIndex // ascending insertion order, compacted on sweep
	maxIndex ChunkIndex
	eof      bool
	freeze   bool // initialFreeze; starts true, monotonic false once dropped

	expected *ExpectedConsumers

	maxChunkSize int
	queueMax     int

	bytesIn  atomic.Uint64
	bytesOut atomic.Uint64
}

// NewBuffer constructs an empty buffer bound to the given admission
// limits and expected-consumer set.
func NewBuffer(maxChunkSize, queueMax int, expected *ExpectedConsumers) *Buffer {
	return &Buffer{
		chunks:       make(map[ChunkIndex]*Chunk),
		expected:     expected,
		maxChunkSize: maxChunkSize,
		queueMax:     queueMax,
		freeze:       true,
	}
}

// AddChunk admits a new chunk if ¬eof ∧ |chunks|<queueMax ∧
// bytes.size≤maxChunkSize, assigning it the next index. Returns 0 on any
// precondition failure, paired with the failing error.
func (b *Buffer) AddChunk(payload []byte) (ChunkIndex, error) {
	if len(payload) == 0 {
		return 0, ErrEmptyChunk
	}
	if len(payload) > b.maxChunkSize {
		return 0, ErrChunkTooLarge
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.eof {
		return 0, ErrEOFAlreadySet
	}
	if len(b.chunks) >= b.queueMax {
		return 0, ErrQueueFull
	}

	b.maxIndex++
	idx := b.maxIndex
	b.chunks[idx] = NewChunk(payload, b.expected)
	b.order = append(b.order, idx)
	b.bytesIn.Add(uint64(len(payload)))
	return idx, nil
}

// Get returns a handle to the chunk's bytes, or ok=false if the index is
// unknown (never existed or already evicted). Every hit increases
// bytesOut, including re-reads.
func (b *Buffer) Get(index ChunkIndex) ([]byte, bool) {
	b.mu.RLock()
	chunk, ok := b.chunks[index]
	b.mu.RUnlock()
	if !ok {
		return nil, false
	}
	b.bytesOut.Add(uint64(chunk.Size()))
	return chunk.Data(), true
}

// PeekSize returns the chunk's payload size without affecting bytesOut,
// for callers (like TransferSession.AckChunk) that need the size of an
// already-fetched chunk without counting a fresh read.
func (b *Buffer) PeekSize(index ChunkIndex) (int, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	chunk, ok := b.chunks[index]
	if !ok {
		return 0, false
	}
	return chunk.Size(), true
}

// Ack increments the chunk's ack counter and runs the eviction sweep,
// returning the indices evicted as a direct result of this call. Returns
// ok=false if the index is unknown.
func (b *Buffer) Ack(index ChunkIndex) (evicted []ChunkIndex, ok bool) {
	b.mu.RLock()
	chunk, present := b.chunks[index]
	b.mu.RUnlock()
	if !present {
		return nil, false
	}

	chunk.IncrementAcks()

	b.mu.Lock()
	evicted = b.sweepLocked()
	b.mu.Unlock()
	return evicted, true
}

// SetEof marks the buffer as having received its final chunk. No-op if
// eof is already set (the caller is expected to log a warning in that
// case; spec §4.2 treats a duplicate setEof as harmless).
func (b *Buffer) SetEof() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.eof {
		return false
	}
	b.eof = true
	return true
}

// AddExpectedConsumer admits id to the expected-consumer set, subject to
// ExpectedConsumers' own someRemoved/maxConsumers rules. No sweep is
// needed on growth: remaining() can only increase when membership grows,
// never reaching zero as a result.
func (b *Buffer) AddExpectedConsumer(id ReceiverId) bool {
	return b.expected.Add(id)
}

// RemoveExpectedConsumer drops id and runs the eviction sweep, since a
// shrinking consumer set can push chunks' remaining() to zero.
func (b *Buffer) RemoveExpectedConsumer(id ReceiverId) []ChunkIndex {
	b.expected.Remove(id)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sweepLocked()
}

// DropInitialFreeze lifts the freeze permanently and runs the sweep.
// Returns ok=false if the freeze was already lifted.
func (b *Buffer) DropInitialFreeze() (evicted []ChunkIndex, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.freeze {
		return nil, false
	}
	b.freeze = false
	return b.sweepLocked(), true
}

// sweepLocked removes every chunk whose remaining() is zero, in index
// order, and reports which indices it dropped. Must be called with mu
// held for writing. Skipped entirely while the initial freeze is active.
func (b *Buffer) sweepLocked() []ChunkIndex {
	if b.freeze {
		return nil
	}

	var evicted []ChunkIndex
	kept := b.order[:0:0]
	for _, idx := range b.order {
		chunk, ok := b.chunks[idx]
		if !ok {
			continue // already evicted by a prior sweep
		}
		if chunk.Remaining() == 0 {
			delete(b.chunks, idx)
			evicted = append(evicted, idx)
			continue
		}
		kept = append(kept, idx)
	}
	b.order = kept

	if len(evicted) > 0 {
		b.expected.MarkSomeRemoved()
	}
	return evicted
}

// NewChunkIsAllowed reports whether the queue has room for another
// chunk. The original implementation's newChunkIsAllowed() actually
// returned the inverse (true when the queue was full); this is the
// corrected, intent-matching polarity (spec §9).
func (b *Buffer) NewChunkIsAllowed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.chunks) < b.queueMax
}

func (b *Buffer) BytesIn() uint64  { return b.bytesIn.Load() }
func (b *Buffer) BytesOut() uint64 { return b.bytesOut.Load() }

func (b *Buffer) MaxIndex() ChunkIndex {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.maxIndex
}

func (b *Buffer) ChunkCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.chunks)
}

func (b *Buffer) Eof() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.eof
}

func (b *Buffer) InitialFreeze() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.freeze
}

func (b *Buffer) SomeChunkRemoved() bool {
	return b.expected.someRemovedSnapshot()
}

// IsEmpty reports whether the buffer currently holds no chunks.
func (b *Buffer) IsEmpty() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.chunks) == 0
}

// AvailableIndices returns the indices currently held, in ascending
// order. Used to populate GetChunkFailure{availableChunks} (spec §7)
// when a receiver asks for an index that is unknown or already
// evicted.
func (b *Buffer) AvailableIndices() []ChunkIndex {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]ChunkIndex, len(b.order))
	copy(out, b.order)
	return out
}

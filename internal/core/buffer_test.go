package core

import "testing"

func TestBufferAddChunkAssignsIncreasingIndices(t *testing.T) {
	b := NewBuffer(1024, 4, NewExpectedConsumers(2))

	i1, err := b.AddChunk([]byte("a"))
	if err != nil || i1 != 1 {
		t.Fatalf("AddChunk(1) = %d, %v; want 1, nil", i1, err)
	}
	i2, err := b.AddChunk([]byte("b"))
	if err != nil || i2 != 2 {
		t.Fatalf("AddChunk(2) = %d, %v; want 2, nil", i2, err)
	}
}

func TestBufferAddChunkRejectsOversizePayload(t *testing.T) {
	b := NewBuffer(4, 4, NewExpectedConsumers(1))

	if _, err := b.AddChunk([]byte("12345")); err != ErrChunkTooLarge {
		t.Fatalf("oversize payload: err = %v, want ErrChunkTooLarge", err)
	}
	if idx, err := b.AddChunk([]byte("1234")); err != nil || idx != 1 {
		t.Fatalf("exact-size payload rejected: idx=%d err=%v", idx, err)
	}
}

func TestBufferAddChunkRejectsAfterEof(t *testing.T) {
	b := NewBuffer(1024, 4, NewExpectedConsumers(1))
	b.SetEof()
	if _, err := b.AddChunk([]byte("x")); err != ErrEOFAlreadySet {
		t.Fatalf("err = %v, want ErrEOFAlreadySet", err)
	}
}

func TestBufferAddChunkRejectsWhenQueueFull(t *testing.T) {
	b := NewBuffer(1024, 1, NewExpectedConsumers(1))
	if _, err := b.AddChunk([]byte("x")); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := b.AddChunk([]byte("y")); err != ErrQueueFull {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
}

func TestBufferFreezePostponesEviction(t *testing.T) {
	expected := NewExpectedConsumers(1)
	expected.Add("r1")
	b := NewBuffer(1024, 4, expected)

	idx, _ := b.AddChunk([]byte("x"))
	evicted, ok := b.Ack(idx)
	if !ok {
		t.Fatalf("ack on frozen index failed")
	}
	if len(evicted) != 0 {
		t.Fatalf("chunk evicted while frozen: %v", evicted)
	}
	if _, ok := b.Get(idx); !ok {
		t.Fatalf("chunk vanished while frozen")
	}

	evicted, ok = b.DropInitialFreeze()
	if !ok {
		t.Fatalf("DropInitialFreeze failed")
	}
	if len(evicted) != 1 || evicted[0] != idx {
		t.Fatalf("evicted = %v, want [%d]", evicted, idx)
	}
	if _, ok := b.Get(idx); ok {
		t.Fatalf("chunk still present after freeze lifted and fully acked")
	}
}

func TestBufferDropInitialFreezeIdempotent(t *testing.T) {
	b := NewBuffer(1024, 4, NewExpectedConsumers(1))
	if _, ok := b.DropInitialFreeze(); !ok {
		t.Fatalf("first drop should succeed")
	}
	if _, ok := b.DropInitialFreeze(); ok {
		t.Fatalf("second drop should be a no-op")
	}
}

func TestBufferShrinkingConsumersTriggersEviction(t *testing.T) {
	expected := NewExpectedConsumers(2)
	expected.Add("r1")
	expected.Add("r2")
	b := NewBuffer(1024, 4, expected)
	b.DropInitialFreeze()

	idx, _ := b.AddChunk([]byte("x"))
	b.Ack(idx) // r1 acks; remaining=1

	evicted := b.RemoveExpectedConsumer("r2")
	if len(evicted) != 1 || evicted[0] != idx {
		t.Fatalf("evicted = %v, want [%d] after shrinking consumer set to zero remaining", evicted, idx)
	}
}

func TestBufferAddExpectedConsumerFrozenAfterEviction(t *testing.T) {
	expected := NewExpectedConsumers(2)
	expected.Add("r1")
	b := NewBuffer(1024, 4, expected)
	b.DropInitialFreeze()

	idx, _ := b.AddChunk([]byte("x"))
	b.Ack(idx) // evicts; someChunkRemoved -> true

	if b.AddExpectedConsumer("late") {
		t.Fatalf("late receiver admitted after someChunkRemoved")
	}
}

func TestBufferBytesInOutAccounting(t *testing.T) {
	expected := NewExpectedConsumers(1)
	expected.Add("r1")
	b := NewBuffer(1024, 4, expected)
	b.DropInitialFreeze()

	idx, _ := b.AddChunk([]byte("hello")) // 5 bytes
	if got := b.BytesIn(); got != 5 {
		t.Fatalf("BytesIn = %d, want 5", got)
	}

	b.Get(idx)
	b.Get(idx) // re-read counts again
	if got := b.BytesOut(); got != 10 {
		t.Fatalf("BytesOut = %d, want 10", got)
	}
}

func TestBufferNewChunkIsAllowedPolarity(t *testing.T) {
	b := NewBuffer(1024, 1, NewExpectedConsumers(1))
	if !b.NewChunkIsAllowed() {
		t.Fatalf("empty queue should allow a new chunk")
	}
	b.AddChunk([]byte("x"))
	if b.NewChunkIsAllowed() {
		t.Fatalf("full queue should not allow a new chunk")
	}
}

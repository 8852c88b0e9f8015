package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// New registers every collector against the default registry, so the
// whole package shares one Metrics instance across test functions
// rather than re-registering (and panicking) per test.
var m = New()

func TestSessionCreatedAndTerminated(t *testing.T) {
	before := testutil.ToFloat64(m.sessionsTotal)
	m.SessionCreated()
	if got := testutil.ToFloat64(m.sessionsTotal); got != before+1 {
		t.Fatalf("sessionsTotal = %v, want %v", got, before+1)
	}

	m.SessionTerminated("OK")
	if got := testutil.ToFloat64(m.sessionsByReason.WithLabelValues("OK")); got < 1 {
		t.Fatalf("sessionsByReason{OK} = %v, want >= 1", got)
	}
}

func TestChunkAddedUpdatesBufferedAndBytesIn(t *testing.T) {
	beforeAdded := testutil.ToFloat64(m.chunksAdded)
	beforeBytes := testutil.ToFloat64(m.bytesIn)

	m.ChunkAdded(128)

	if got := testutil.ToFloat64(m.chunksAdded); got != beforeAdded+1 {
		t.Fatalf("chunksAdded = %v, want %v", got, beforeAdded+1)
	}
	if got := testutil.ToFloat64(m.bytesIn); got != beforeBytes+128 {
		t.Fatalf("bytesIn = %v, want %v", got, beforeBytes+128)
	}
}

func TestChunksEvictedDecrementsBuffered(t *testing.T) {
	m.ChunkAdded(1)
	m.ChunkAdded(1)
	beforeBuffered := testutil.ToFloat64(m.chunksBuffered)
	beforeEvicted := testutil.ToFloat64(m.chunksEvicted)

	m.ChunksEvicted(2)

	if got := testutil.ToFloat64(m.chunksBuffered); got != beforeBuffered-2 {
		t.Fatalf("chunksBuffered = %v, want %v", got, beforeBuffered-2)
	}
	if got := testutil.ToFloat64(m.chunksEvicted); got != beforeEvicted+2 {
		t.Fatalf("chunksEvicted = %v, want %v", got, beforeEvicted+2)
	}
}

func TestBytesOutAccumulates(t *testing.T) {
	before := testutil.ToFloat64(m.bytesOut)
	m.BytesOut(64)
	if got := testutil.ToFloat64(m.bytesOut); got != before+64 {
		t.Fatalf("bytesOut = %v, want %v", got, before+64)
	}
}

func TestChunkRejectedLabelsByReason(t *testing.T) {
	before := testutil.ToFloat64(m.chunkRejects.WithLabelValues("too_large"))
	m.ChunkRejected("too_large")
	if got := testutil.ToFloat64(m.chunkRejects.WithLabelValues("too_large")); got != before+1 {
		t.Fatalf("chunkRejects{too_large} = %v, want %v", got, before+1)
	}
}

func TestRecordLatencyObserves(t *testing.T) {
	// Histograms can't be read back via ToFloat64; just confirm this
	// doesn't panic on a zero and a non-zero duration.
	m.RecordLatency(0)
	m.RecordLatency(50 * time.Millisecond)
}

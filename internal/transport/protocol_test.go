package transport

import (
	"testing"

	"github.com/adred-codev/filerelay/internal/core"
)

func TestFromSessionEventMapsNewChunkAvailable(t *testing.T) {
	env := fromSessionEvent(core.SessionEvent{
		Kind:         core.EventNewChunkAvailable,
		ChunkIndex:   3,
		NewChunkSize: 128,
	})
	if env.Type != "newChunkAvailable" {
		t.Fatalf("Type = %q, want newChunkAvailable", env.Type)
	}
	if env.Index != 3 || env.ChunkSize != 128 {
		t.Fatalf("Index/ChunkSize = %d/%d, want 3/128", env.Index, env.ChunkSize)
	}
}

func TestFromSessionEventMapsComplete(t *testing.T) {
	env := fromSessionEvent(core.SessionEvent{Kind: core.EventComplete, Reason: core.ReasonNoReceivers})
	if env.Type != "complete" {
		t.Fatalf("Type = %q, want complete", env.Type)
	}
	if env.Reason != string(core.ReasonNoReceivers) {
		t.Fatalf("Reason = %q, want %q", env.Reason, core.ReasonNoReceivers)
	}
}

func TestFromSessionEventMapsBytesInUpdatedWithoutExposingDelta(t *testing.T) {
	env := fromSessionEvent(core.SessionEvent{Kind: core.EventBytesInUpdated, Bytes: 4096, Delta: 128})
	if env.Type != "bytesInUpdated" {
		t.Fatalf("Type = %q, want bytesInUpdated", env.Type)
	}
	if env.Bytes != 4096 {
		t.Fatalf("Bytes = %d, want 4096", env.Bytes)
	}
}

func TestFromSessionEventUnknownKindFallsBack(t *testing.T) {
	env := fromSessionEvent(core.SessionEvent{Kind: core.SessionEventKind(999)})
	if env.Type != "unknown" {
		t.Fatalf("Type = %q, want unknown", env.Type)
	}
}

func TestFromSenderEvent(t *testing.T) {
	env := fromSenderEvent(core.SenderEvent{Kind: core.EventNewChunkIsAllowed, Allowed: true})
	if env.Type != "newChunkIsAllowed" || !env.Allowed {
		t.Fatalf("env = %+v, want Type=newChunkIsAllowed Allowed=true", env)
	}
}

func TestFromClientEventMapsAllKinds(t *testing.T) {
	cases := []struct {
		kind core.ClientEventKind
		want string
	}{
		{core.EventClientConnected, "peerConnected"},
		{core.EventClientDisconnected, "peerDisconnected"},
		{core.EventClientNameChanged, "peerNameChanged"},
	}
	for _, c := range cases {
		env := fromClientEvent(core.ClientEvent{Kind: c.kind, PublicID: "pub1"})
		if env.Type != c.want {
			t.Fatalf("fromClientEvent(%v).Type = %q, want %q", c.kind, env.Type, c.want)
		}
		if env.PublicID != "pub1" {
			t.Fatalf("PublicID = %q, want pub1", env.PublicID)
		}
	}
}

func TestToUint64Slice(t *testing.T) {
	got := toUint64Slice([]core.ChunkIndex{1, 2, 3})
	want := []uint64{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

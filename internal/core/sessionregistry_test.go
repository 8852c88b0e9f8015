package core

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSessionRegistryCreateRejectsDuplicateSender(t *testing.T) {
	clients := NewClientRegistry(10, time.Hour)
	registry := NewSessionRegistry(testConfig(), clients, zerolog.Nop())
	sender := newTestClient(t, clients, "sp", "S")

	if _, _, err := registry.Create(sender); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, _, err := registry.Create(sender); err != ErrSessionExists {
		t.Fatalf("duplicate create: err = %v, want ErrSessionExists", err)
	}
}

func TestSessionRegistryCreateRejectsOverSessionLimit(t *testing.T) {
	clients := NewClientRegistry(10, time.Hour)
	cfg := testConfig()
	cfg.SessionLimit = 1
	registry := NewSessionRegistry(cfg, clients, zerolog.Nop())

	s1 := newTestClient(t, clients, "sp1", "S1")
	s2 := newTestClient(t, clients, "sp2", "S2")

	if _, _, err := registry.Create(s1); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, _, err := registry.Create(s2); err != ErrSessionLimitReached {
		t.Fatalf("second create: err = %v, want ErrSessionLimitReached", err)
	}
}

func TestSessionRegistryRemoveIsIdempotent(t *testing.T) {
	clients := NewClientRegistry(10, time.Hour)
	registry := NewSessionRegistry(testConfig(), clients, zerolog.Nop())
	sender := newTestClient(t, clients, "sp", "S")
	registry.Create(sender)

	registry.Remove(sender.PublicID())
	registry.Remove(sender.PublicID()) // must not panic

	if _, ok := registry.Get(sender.PublicID()); ok {
		t.Fatalf("session still present after Remove")
	}
}

func TestSessionRegistrySessionIdIsSenderPublicId(t *testing.T) {
	clients := NewClientRegistry(10, time.Hour)
	registry := NewSessionRegistry(testConfig(), clients, zerolog.Nop())
	sender := newTestClient(t, clients, "sp", "S-public")
	s, _, err := registry.Create(sender)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if s.ID() != "S-public" {
		t.Fatalf("ID() = %q, want sender's publicId", s.ID())
	}
}

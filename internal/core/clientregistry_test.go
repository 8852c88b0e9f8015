package core

import (
	"testing"
	"time"
)

func TestClientRegistryCreateRejectsDuplicateAndOverCapacity(t *testing.T) {
	r := NewClientRegistry(1, time.Minute)
	if _, err := r.Create("priv1", "pub1"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := r.Create("priv1", "pubX"); err != ErrClientExists {
		t.Fatalf("duplicate create: err = %v, want ErrClientExists", err)
	}
	if _, err := r.Create("priv2", "pub2"); err != ErrClientLimitReached {
		t.Fatalf("over-capacity create: err = %v, want ErrClientLimitReached", err)
	}
}

func TestClientRegistryRemoveIsIdempotentAndPublishesDestroyed(t *testing.T) {
	r := NewClientRegistry(4, time.Minute)
	c, _ := r.Create("priv1", "pub1")

	destroyed := make(chan string, 1)
	sub := r.Destroyed().Subscribe(func(c *Client) { destroyed <- c.PublicID() })
	defer func() { _ = sub }()

	r.Remove("priv1")
	select {
	case id := <-destroyed:
		if id != "pub1" {
			t.Fatalf("destroyed id = %q, want pub1", id)
		}
	default:
		t.Fatalf("Destroyed was not published")
	}

	r.Remove("priv1") // idempotent, must not panic or re-publish
	if _, ok := r.Get("priv1"); ok {
		t.Fatalf("client still present after removal")
	}
	_ = c
}

func TestClientInactivityTimerEvictsOnDisconnect(t *testing.T) {
	r := NewClientRegistry(4, 10*time.Millisecond)
	r.Create("priv1", "pub1")
	c, _ := r.Get("priv1")

	c.MarkDisconnected()
	time.Sleep(50 * time.Millisecond)

	if _, ok := r.Get("priv1"); ok {
		t.Fatalf("client not evicted after timeout while disconnected")
	}
}

func TestClientInactivityTimerStoppedOnReconnect(t *testing.T) {
	r := NewClientRegistry(4, 20*time.Millisecond)
	r.Create("priv1", "pub1")
	c, _ := r.Get("priv1")

	c.MarkDisconnected()
	c.MarkConnected()
	time.Sleep(50 * time.Millisecond)

	if _, ok := r.Get("priv1"); !ok {
		t.Fatalf("client evicted despite reconnecting before timeout")
	}
}

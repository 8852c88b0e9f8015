package admission

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/adred-codev/filerelay/internal/config"
)

func testGuard(cfg config.GuardConfig) *Guard {
	return New(cfg, zerolog.Nop())
}

func TestShouldAcceptConnectionRejectsAtMaxConnections(t *testing.T) {
	g := testGuard(config.GuardConfig{MaxConnections: 2, CPURejectThreshold: 100})
	g.AddConnection()
	g.AddConnection()

	accept, reason := g.ShouldAcceptConnection()
	if accept {
		t.Fatalf("expected rejection at max connections")
	}
	if reason != "at max connections" {
		t.Fatalf("reason = %q, want %q", reason, "at max connections")
	}
}

func TestShouldAcceptConnectionAllowsUnderLimits(t *testing.T) {
	g := testGuard(config.GuardConfig{MaxConnections: 4, CPURejectThreshold: 100})
	g.AddConnection()

	accept, reason := g.ShouldAcceptConnection()
	if !accept {
		t.Fatalf("expected acceptance, got rejection: %s", reason)
	}
}

func TestRemoveConnectionFreesCapacity(t *testing.T) {
	g := testGuard(config.GuardConfig{MaxConnections: 1, CPURejectThreshold: 100})
	g.AddConnection()
	if accept, _ := g.ShouldAcceptConnection(); accept {
		t.Fatalf("expected rejection while at capacity")
	}

	g.RemoveConnection()
	if accept, reason := g.ShouldAcceptConnection(); !accept {
		t.Fatalf("expected acceptance after freeing capacity, got: %s", reason)
	}
}

func TestShouldAcceptConnectionRejectsOverMemoryLimit(t *testing.T) {
	g := testGuard(config.GuardConfig{MaxConnections: 10, CPURejectThreshold: 100, MemoryLimitBytes: 1})
	g.UpdateResources()

	accept, reason := g.ShouldAcceptConnection()
	if accept {
		t.Fatalf("expected rejection over memory limit")
	}
	if reason != "memory limit exceeded" {
		t.Fatalf("reason = %q, want %q", reason, "memory limit exceeded")
	}
}

func TestAllowSessionCreateRateLimits(t *testing.T) {
	g := testGuard(config.GuardConfig{MaxSessionsPerSecond: 1})

	if !g.AllowSessionCreate() {
		t.Fatalf("first session create should be allowed")
	}
	// second-in-a-row allowed by the burst allowance, but a tight loop
	// should eventually exhaust it well before real time passes.
	allowedCount := 1
	for i := 0; i < 10; i++ {
		if g.AllowSessionCreate() {
			allowedCount++
		}
	}
	if allowedCount > 3 {
		t.Fatalf("rate limiter allowed %d calls in a burst, want a small bounded burst", allowedCount)
	}
}

func TestStartMonitoringStopsOnSignal(t *testing.T) {
	g := testGuard(config.GuardConfig{PollInterval: time.Millisecond})
	stop := make(chan struct{})
	g.StartMonitoring(stop)
	time.Sleep(10 * time.Millisecond)
	close(stop)
	// no assertion beyond not hanging/panicking; goroutine leak would show
	// up under -race in CI.
}

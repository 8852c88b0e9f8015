// Package admission implements the ResourceGuard spec §7 points to as
// the concrete mechanism behind "ResourceExhausted ... surfaced at the
// HTTP collaborator layer": a static-configuration admission check
// consulted by the transport Hub before it calls
// ClientRegistry.Create/SessionRegistry.Create, grounded on
// src/resource_guard.go.
package admission

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"golang.org/x/time/rate"

	"github.com/adred-codev/filerelay/internal/config"
)

// Guard enforces configured CPU/memory/connection thresholds and
// rate-limits session creation. It does not calculate capacity from
// measurements or auto-adjust limits; it only enforces what cfg says.
type Guard struct {
	cfg    config.GuardConfig
	logger zerolog.Logger

	sessionLimiter *rate.Limiter

	currentCPU    atomic.Value // float64
	currentMemory atomic.Value // int64 bytes
	currentConns  atomic.Int64
}

// New constructs a Guard from cfg. Call StartMonitoring to keep the CPU
// and memory readings current.
func New(cfg config.GuardConfig, logger zerolog.Logger) *Guard {
	g := &Guard{
		cfg:            cfg,
		logger:         logger.With().Str("component", "admission").Logger(),
		sessionLimiter: rate.NewLimiter(rate.Limit(cfg.MaxSessionsPerSecond), int(cfg.MaxSessionsPerSecond*2)+1),
	}
	g.currentCPU.Store(0.0)
	g.currentMemory.Store(int64(0))
	return g
}

// AddConnection/RemoveConnection track the live connection count the
// guard checks against MaxConnections.
func (g *Guard) AddConnection()    { g.currentConns.Add(1) }
func (g *Guard) RemoveConnection() { g.currentConns.Add(-1) }

// ShouldAcceptConnection reports whether a new WebSocket connection may
// be admitted, in order: hard connection limit, CPU emergency brake,
// memory emergency brake.
func (g *Guard) ShouldAcceptConnection() (accept bool, reason string) {
	conns := g.currentConns.Load()
	cpuPct := g.currentCPU.Load().(float64)
	memBytes := g.currentMemory.Load().(int64)

	if conns >= int64(g.cfg.MaxConnections) {
		return false, "at max connections"
	}
	if cpuPct > g.cfg.CPURejectThreshold {
		return false, "cpu overload"
	}
	if g.cfg.MemoryLimitBytes > 0 && memBytes > g.cfg.MemoryLimitBytes {
		return false, "memory limit exceeded"
	}
	return true, ""
}

// AllowSessionCreate rate-limits SessionRegistry.Create calls so a
// burst of senders cannot overload session setup.
func (g *Guard) AllowSessionCreate() bool {
	return g.sessionLimiter.Allow()
}

// UpdateResources refreshes the CPU/memory readings. Call periodically
// from StartMonitoring or a host-managed ticker.
func (g *Guard) UpdateResources() {
	if pct, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(pct) > 0 {
		g.currentCPU.Store(pct[0])
	}
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	g.currentMemory.Store(int64(mem.Alloc))
}

// StartMonitoring polls UpdateResources on cfg.PollInterval until stop
// is closed.
func (g *Guard) StartMonitoring(stop <-chan struct{}) {
	interval := g.cfg.PollInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				g.UpdateResources()
				g.logger.Debug().
					Float64("cpu_percent", g.currentCPU.Load().(float64)).
					Int64("memory_bytes", g.currentMemory.Load().(int64)).
					Int64("connections", g.currentConns.Load()).
					Msg("resource state updated")
			}
		}
	}()
}

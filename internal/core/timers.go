package core

import (
	"sync"
	"time"
)

// cancellableTimer wraps time.AfterFunc with an explicit stopped flag so
// a fire that races with Stop is guaranteed to no-op, matching the
// original's TimerCallback cancel-on-destruct pattern (spec §5 "a timer
// firing during teardown must be a no-op").
type cancellableTimer struct {
	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func newCancellableTimer(d time.Duration, fn func()) *cancellableTimer {
	ct := &cancellableTimer{}
	ct.timer = time.AfterFunc(d, func() {
		ct.mu.Lock()
		stopped := ct.stopped
		ct.mu.Unlock()
		if !stopped {
			fn()
		}
	})
	return ct
}

// Stop cancels the timer permanently. Safe to call more than once and
// safe to call concurrently with the timer firing.
func (ct *cancellableTimer) Stop() {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	if ct.stopped {
		return
	}
	ct.stopped = true
	ct.timer.Stop()
}

// cancellableTimer does not report the time left until it fires:
// time.Timer does not expose it, so callers that need a countdown (spec
// §12 supplement, FreezeRemaining) track the deadline themselves; see
// TransferSession.freezeDeadline.

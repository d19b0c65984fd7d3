package mirror

import (
	"sync"
	"time"
)

// delay is a cancellable one-shot timer. Callers keep the returned handle and
// compare it by identity when the callback runs, so a callback from a handle
// that has since been replaced can recognize itself as stale.
type delay struct {
	mu      sync.Mutex
	stopped bool
	timer   *time.Timer
}

// startDelay schedules fn to run once after d. The callback never runs after
// Stop returns, though it may be running concurrently with Stop if it already
// started.
func startDelay(d time.Duration, fn func()) *delay {
	h := &delay{}
	h.timer = time.AfterFunc(d, func() {
		h.mu.Lock()
		if h.stopped {
			h.mu.Unlock()
			return
		}
		h.stopped = true
		h.mu.Unlock()
		fn()
	})
	return h
}

// Stop cancels the delay. Stopping an already-fired or stopped delay is a
// no-op.
func (h *delay) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
	if h.timer != nil {
		h.timer.Stop()
	}
}

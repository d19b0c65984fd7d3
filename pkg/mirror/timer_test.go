package mirror

import (
	"sync/atomic"
	"testing"
	"time"

	kmtesting "github.com/kmirror-dev/kmirror/internal/testing"
)

func TestDelayFires(t *testing.T) {
	var fired atomic.Bool
	h := startDelay(10*time.Millisecond, func() { fired.Store(true) })
	defer h.Stop()
	kmtesting.Eventually(t, time.Second, time.Millisecond, fired.Load, "delay never fired")
}

func TestDelayStopPreventsCallback(t *testing.T) {
	var fired atomic.Bool
	h := startDelay(30*time.Millisecond, func() { fired.Store(true) })
	h.Stop()
	kmtesting.Consistently(t, 80*time.Millisecond, 5*time.Millisecond, func() bool {
		return !fired.Load()
	}, "stopped delay fired")
}

func TestDelayStopAfterFireIsNoop(t *testing.T) {
	var fired atomic.Bool
	h := startDelay(time.Millisecond, func() { fired.Store(true) })
	kmtesting.Eventually(t, time.Second, time.Millisecond, fired.Load, "delay never fired")
	h.Stop()
	h.Stop()
}

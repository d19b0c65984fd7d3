package ui

import (
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea/v2"
)

// showToastMsg displays a transient notification for the given TTL.
type showToastMsg struct {
	text string
	ttl  time.Duration
}

type toastTickMsg struct{}

// toaster rate-limits transient error notifications so a failing watch does
// not storm the screen. Duplicate texts are suppressed for longer.
type toaster struct {
	mu          sync.Mutex
	minInterval time.Duration
	lastToast   time.Time
	lastText    string
}

func newToaster(minInterval time.Duration) *toaster {
	return &toaster{minInterval: minInterval}
}

// Error returns a Cmd showing msg as a toast, or nil when rate-limited.
func (l *toaster) Error(msg string) tea.Cmd {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return nil
	}
	l.mu.Lock()
	now := time.Now()
	suppressDup := msg == l.lastText && now.Sub(l.lastToast) < 30*time.Second
	allow := now.Sub(l.lastToast) >= l.minInterval && !suppressDup
	if allow {
		l.lastToast = now
		l.lastText = msg
	}
	l.mu.Unlock()
	if !allow {
		return nil
	}
	return func() tea.Msg { return showToastMsg{text: msg, ttl: 5 * time.Second} }
}

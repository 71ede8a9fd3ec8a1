package core

import (
	"context"
	"sync"
	"time"
)

// Action kinds with independent rate budgets.
const (
	ActionJoin        = "join"
	ActionCreateRoom  = "create_room"
	ActionSendMessage = "send_message"
	ActionReaction    = "reaction"
	ActionTyping      = "typing"
)

// LimitRule is a fixed-window budget: at most Max hits per Window.
type LimitRule struct {
	Max    int
	Window time.Duration
}

type rateWindow struct {
	count   int
	resetAt time.Time
}

// Limiter counts actions per (connection, action) in fixed windows.
// Expired windows are swept periodically so long-lived connections do not
// grow memory without bound.
type Limiter struct {
	mu      sync.Mutex
	rules   map[string]LimitRule
	windows map[string]*rateWindow
	now     func() time.Time
}

// NewLimiter builds a limiter with the given per-action rules. Actions
// without a rule are never limited.
func NewLimiter(rules map[string]LimitRule) *Limiter {
	return &Limiter{
		rules:   rules,
		windows: make(map[string]*rateWindow),
		now:     time.Now,
	}
}

// Hit records one action for the connection and reports whether it is
// over budget. The first hit of a window always passes.
func (l *Limiter) Hit(connID, action string) (limited bool) {
	rule, ok := l.rules[action]
	if !ok || rule.Max <= 0 {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := connID + ":" + action
	now := l.now()

	window, exists := l.windows[key]
	if !exists || now.After(window.resetAt) {
		l.windows[key] = &rateWindow{count: 1, resetAt: now.Add(rule.Window)}
		return false
	}

	window.count++
	return window.count > rule.Max
}

// Forget drops all windows of a connection. Called on disconnect.
func (l *Limiter) Forget(connID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for action := range l.rules {
		delete(l.windows, connID+":"+action)
	}
}

// Sweep deletes expired windows. Returns how many were removed.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, window := range l.windows {
		if now.After(window.resetAt) {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// StartSweeper sweeps every interval until the context is cancelled.
func (l *Limiter) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Sweep()
			case <-ctx.Done():
				return
			}
		}
	}()
}

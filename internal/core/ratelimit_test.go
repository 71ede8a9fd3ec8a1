package core

import (
	"testing"
	"time"
)

func TestLimiterAllowsUpToMax(t *testing.T) {
	l := NewLimiter(map[string]LimitRule{
		ActionSendMessage: {Max: 3, Window: time.Minute},
	})

	for i := 0; i < 3; i++ {
		if l.Hit("c1", ActionSendMessage) {
			t.Fatalf("hit %d should be within budget", i+1)
		}
	}
	if !l.Hit("c1", ActionSendMessage) {
		t.Fatal("hit over budget should be limited")
	}
}

func TestLimiterWindowReset(t *testing.T) {
	now := time.Now()
	l := NewLimiter(map[string]LimitRule{
		ActionJoin: {Max: 1, Window: time.Minute},
	})
	l.now = func() time.Time { return now }

	if l.Hit("c1", ActionJoin) {
		t.Fatal("first hit should pass")
	}
	if !l.Hit("c1", ActionJoin) {
		t.Fatal("second hit should be limited")
	}

	now = now.Add(2 * time.Minute)
	if l.Hit("c1", ActionJoin) {
		t.Fatal("hit in fresh window should pass")
	}
}

func TestLimiterBudgetsAreIndependent(t *testing.T) {
	l := NewLimiter(map[string]LimitRule{
		ActionJoin:        {Max: 1, Window: time.Minute},
		ActionSendMessage: {Max: 1, Window: time.Minute},
	})

	l.Hit("c1", ActionJoin)
	if !l.Hit("c1", ActionJoin) {
		t.Fatal("join budget should be exhausted")
	}
	if l.Hit("c1", ActionSendMessage) {
		t.Fatal("send budget should be untouched by join hits")
	}
	if l.Hit("c2", ActionJoin) {
		t.Fatal("another connection's budget should be untouched")
	}
}

func TestLimiterUnknownActionNeverLimited(t *testing.T) {
	l := NewLimiter(nil)
	for i := 0; i < 100; i++ {
		if l.Hit("c1", ActionTyping) {
			t.Fatal("actions without a rule must not be limited")
		}
	}
}

func TestLimiterForget(t *testing.T) {
	l := NewLimiter(map[string]LimitRule{
		ActionJoin: {Max: 1, Window: time.Minute},
	})

	l.Hit("c1", ActionJoin)
	if !l.Hit("c1", ActionJoin) {
		t.Fatal("budget should be exhausted")
	}

	l.Forget("c1")
	if l.Hit("c1", ActionJoin) {
		t.Fatal("forgotten connection should start fresh")
	}
}

func TestLimiterSweepRemovesExpired(t *testing.T) {
	now := time.Now()
	l := NewLimiter(map[string]LimitRule{
		ActionJoin: {Max: 5, Window: time.Minute},
	})
	l.now = func() time.Time { return now }

	l.Hit("c1", ActionJoin)
	l.Hit("c2", ActionJoin)

	if removed := l.Sweep(); removed != 0 {
		t.Fatalf("expected no expired windows, swept %d", removed)
	}

	now = now.Add(2 * time.Minute)
	if removed := l.Sweep(); removed != 2 {
		t.Fatalf("expected 2 expired windows, swept %d", removed)
	}
}

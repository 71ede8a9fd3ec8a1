package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/polyglotchat/polyglot-server/internal/auth"
	"github.com/polyglotchat/polyglot-server/internal/store"
	"github.com/polyglotchat/polyglot-server/internal/store/memory"
	"github.com/polyglotchat/polyglot-server/internal/translate"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// mustEventBefore asserts that want arrives before any event of notYet,
// draining unrelated events along the way.
func mustEventBefore(t *testing.T, ch <-chan *Event, want, notYet EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == want {
				return ev
			}
			if ev.Kind == notYet {
				t.Fatalf("event kind %v arrived before %v", notYet, want)
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", want)
	return nil
}

func mustNoEvent(t *testing.T, ch <-chan *Event, kind EventKind, within time.Duration) {
	t.Helper()

	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event kind %v received: %+v", kind, ev)
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func newTestClient(id, username string) *Client {
	return NewClient(id, &auth.Identity{UserID: "u-" + id, Username: username, Role: "member"})
}

// echoProvider "translates" by tagging the text with the target locale.
// It records calls so tests can assert the provider was (not) consulted.
type echoProvider struct {
	mu    sync.Mutex
	calls int
}

func (p *echoProvider) Localize(_ context.Context, text, _, targetLocale string) (string, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return "[" + targetLocale + "] " + text, nil
}

func (p *echoProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// brokenProvider times out on every call, exhausting the retry budget.
type brokenProvider struct{}

func (brokenProvider) Localize(context.Context, string, string, string) (string, error) {
	return "", &translate.TransientError{Err: context.DeadlineExceeded}
}

// faultyStore wraps a working store and fails selected operations.
type faultyStore struct {
	store.Store
	createErr  error
	getRoomErr error
}

func (s *faultyStore) CreateMessage(ctx context.Context, msg *store.Message) (*store.Message, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.Store.CreateMessage(ctx, msg)
}

func (s *faultyStore) GetRoom(ctx context.Context, name string) (*store.Room, error) {
	if s.getRoomErr != nil {
		return nil, s.getRoomErr
	}
	return s.Store.GetRoom(ctx, name)
}

type hubOption func(*hubSetup)

type hubSetup struct {
	provider translate.Provider
	rules    map[string]LimitRule
	store    store.Store
}

func withProvider(p translate.Provider) hubOption {
	return func(s *hubSetup) { s.provider = p }
}

func withLimits(rules map[string]LimitRule) hubOption {
	return func(s *hubSetup) { s.rules = rules }
}

func withStore(st store.Store) hubOption {
	return func(s *hubSetup) { s.store = st }
}

func newTestHub(t *testing.T, opts ...hubOption) (*Hub, context.CancelFunc) {
	t.Helper()

	setup := &hubSetup{}
	for _, opt := range opts {
		opt(setup)
	}

	var gateway *translate.Gateway
	if setup.provider != nil {
		gateway = translate.NewGateway(setup.provider, translate.Config{
			MaxConcurrent: 2,
			MaxRetries:    2,
			BackoffBase:   time.Millisecond,
			CacheSize:     100,
			CacheTTL:      time.Minute,
		}, nil)
	}

	st := setup.store
	if st == nil {
		st = memory.New()
	}
	hub := NewHub(st, gateway, NewRegistry(), NewLimiter(setup.rules), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

package core

import (
	"testing"

	"github.com/polyglotchat/polyglot-server/internal/auth"
)

func TestRegistryJoinMovesBetweenRooms(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", &auth.Identity{UserID: "u1", Username: "alice"})

	vacated, ok := r.Join("c1", "general", "en")
	if !ok || vacated != "" {
		t.Fatalf("first join: vacated=%q ok=%v", vacated, ok)
	}

	vacated, ok = r.Join("c1", "random", "")
	if !ok || vacated != "general" {
		t.Fatalf("second join should vacate general: vacated=%q ok=%v", vacated, ok)
	}

	if members := r.MembersOf("general"); len(members) != 0 {
		t.Fatalf("general should be empty, got %+v", members)
	}
	if members := r.MembersOf("random"); len(members) != 1 || members[0].Username != "alice" {
		t.Fatalf("unexpected random members: %+v", members)
	}
}

func TestRegistryRejoinSameRoomDoesNotVacate(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", &auth.Identity{UserID: "u1", Username: "alice"})

	r.Join("c1", "general", "en")
	vacated, ok := r.Join("c1", "general", "fr")
	if !ok || vacated != "" {
		t.Fatalf("rejoin should not vacate: vacated=%q ok=%v", vacated, ok)
	}

	session, _ := r.Get("c1")
	if session.Lang != "fr" {
		t.Fatalf("rejoin should update lang, got %q", session.Lang)
	}
}

func TestRegistryLanguageDefaultsAndUpdates(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", &auth.Identity{UserID: "u1", Username: "alice"})

	session, ok := r.Get("c1")
	if !ok || session.Lang != "en" {
		t.Fatalf("expected default lang en, got %+v", session)
	}

	if !r.SetLanguage("c1", "ja") {
		t.Fatal("set language failed for registered connection")
	}
	session, _ = r.Get("c1")
	if session.Lang != "ja" {
		t.Fatalf("expected ja, got %q", session.Lang)
	}

	if r.SetLanguage("ghost", "de") {
		t.Fatal("set language should fail for unknown connection")
	}
}

func TestRegistryLanguagesOfDeduplicates(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", &auth.Identity{UserID: "u1", Username: "alice"})
	r.Register("c2", &auth.Identity{UserID: "u2", Username: "bob"})
	r.Register("c3", &auth.Identity{UserID: "u3", Username: "carol"})

	r.Join("c1", "general", "en")
	r.Join("c2", "general", "es")
	r.Join("c3", "general", "es")

	langs := r.LanguagesOf("general")
	if len(langs) != 2 || langs[0] != "en" || langs[1] != "es" {
		t.Fatalf("expected [en es], got %v", langs)
	}
}

func TestRegistryMembersSortedByUsername(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", &auth.Identity{UserID: "u1", Username: "zoe"})
	r.Register("c2", &auth.Identity{UserID: "u2", Username: "anna"})

	r.Join("c1", "general", "en")
	r.Join("c2", "general", "en")

	members := r.MembersOf("general")
	if len(members) != 2 || members[0].Username != "anna" || members[1].Username != "zoe" {
		t.Fatalf("unexpected order: %+v", members)
	}
}

func TestRegistryDisconnect(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", &auth.Identity{UserID: "u1", Username: "alice"})
	r.Join("c1", "general", "en")

	if vacated := r.Disconnect("c1"); vacated != "general" {
		t.Fatalf("expected vacated general, got %q", vacated)
	}
	if _, ok := r.Get("c1"); ok {
		t.Fatal("session should be gone after disconnect")
	}
	if vacated := r.Disconnect("c1"); vacated != "" {
		t.Fatalf("double disconnect should vacate nothing, got %q", vacated)
	}
}

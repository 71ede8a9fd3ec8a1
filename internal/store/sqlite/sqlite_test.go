package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/polyglotchat/polyglot-server/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateMessageIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateMessage(ctx, &store.Message{
		Room: "general", Author: "alice", Original: "hello", SourceLocale: "en", MsgID: "m1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	second, err := s.CreateMessage(ctx, &store.Message{
		Room: "general", Author: "alice", Original: "changed", SourceLocale: "en", MsgID: "m1",
	})
	if err != nil {
		t.Fatalf("duplicate create: %v", err)
	}
	if second.Original != first.Original {
		t.Fatalf("duplicate create altered the message: %q vs %q", second.Original, first.Original)
	}

	history, err := s.History(ctx, "general", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 message, got %d", len(history))
	}
}

func TestCreateMessageWithReply(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateMessage(ctx, &store.Message{
		Room: "general", Author: "bob", Original: "me too", SourceLocale: "en", MsgID: "m2",
		ReplyTo: &store.ReplyRef{MsgID: "m1", Author: "alice", Message: "hello"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	msg, err := s.FindByMsgID(ctx, "general", "m2")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if msg.ReplyTo == nil || msg.ReplyTo.MsgID != "m1" || msg.ReplyTo.Author != "alice" {
		t.Fatalf("reply not persisted: %+v", msg.ReplyTo)
	}
}

func TestMergeTranslationsIsAdditive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateMessage(ctx, &store.Message{
		Room: "general", Author: "alice", Original: "hello", SourceLocale: "en", MsgID: "m1",
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := s.MergeTranslations(ctx, "general", "m1", map[string]string{"es": "hola"}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if err := s.MergeTranslations(ctx, "general", "m1", map[string]string{"es": "HOLA", "fr": "salut", "de": ""}); err != nil {
		t.Fatalf("second merge: %v", err)
	}

	msg, err := s.FindByMsgID(ctx, "general", "m1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if msg.Translations["es"] != "hola" {
		t.Fatalf("existing translation clobbered: %q", msg.Translations["es"])
	}
	if msg.Translations["fr"] != "salut" {
		t.Fatalf("new translation missing: %v", msg.Translations)
	}
	if _, ok := msg.Translations["de"]; ok {
		t.Fatal("empty translation should be ignored")
	}

	if err := s.MergeTranslations(ctx, "general", "ghost", map[string]string{"es": "hola"}); err != store.ErrMessageNotFound {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestHistoryOrderAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Minute)
	for i, id := range []string{"m1", "m2", "m3"} {
		if _, err := s.CreateMessage(ctx, &store.Message{
			Room: "general", Author: "alice", Original: id, SourceLocale: "en", MsgID: id,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	history, err := s.History(ctx, "general", 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history))
	}
	if history[0].MsgID != "m2" || history[1].MsgID != "m3" {
		t.Fatalf("limit should keep the newest in chronological order, got %q %q", history[0].MsgID, history[1].MsgID)
	}
}

func TestToggleReaction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateMessage(ctx, &store.Message{
		Room: "general", Author: "alice", Original: "hello", SourceLocale: "en", MsgID: "m1",
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	reactions, err := s.ToggleReaction(ctx, "general", "m1", "👍", "alice")
	if err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	if got := reactions["👍"]; len(got) != 1 || got[0] != "alice" {
		t.Fatalf("after add: %v", reactions)
	}

	reactions, err = s.ToggleReaction(ctx, "general", "m1", "👍", "alice")
	if err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	if got := reactions["👍"]; len(got) != 0 {
		t.Fatalf("reaction not removed: %v", reactions)
	}

	if _, err := s.ToggleReaction(ctx, "general", "ghost", "👍", "alice"); err != store.ErrMessageNotFound {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestRoomLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, "general", "u1", store.RoomModeGlobal)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if !room.IsAdmin("u1") || !room.IsMember("u1") {
		t.Fatalf("owner should be admin and member: %+v", room)
	}

	if _, err := s.CreateRoom(ctx, "general", "u2", store.RoomModeGlobal); err != store.ErrRoomExists {
		t.Fatalf("expected ErrRoomExists, got %v", err)
	}

	if err := s.AddMember(ctx, "general", "u2"); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if err := s.AddMember(ctx, "general", "u2"); err != nil {
		t.Fatalf("re-add member: %v", err)
	}

	room, err = s.GetRoom(ctx, "general")
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if len(room.MemberIDs) != 2 {
		t.Fatalf("expected 2 members, got %v", room.MemberIDs)
	}
	if room.IsAdmin("u2") {
		t.Fatal("plain member must not be admin")
	}

	updated, err := s.UpdateRoomMode(ctx, "general", store.RoomModeNative)
	if err != nil {
		t.Fatalf("update mode: %v", err)
	}
	if updated.Mode != store.RoomModeNative {
		t.Fatalf("mode not updated: %+v", updated)
	}

	if _, err := s.UpdateRoomMode(ctx, "ghost", store.RoomModeNative); err != store.ErrRoomNotFound {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestDeleteRoomCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateRoom(ctx, "general", "u1", store.RoomModeGlobal); err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, err := s.CreateMessage(ctx, &store.Message{
		Room: "general", Author: "alice", Original: "hello", SourceLocale: "en", MsgID: "m1",
	}); err != nil {
		t.Fatalf("create message: %v", err)
	}
	if err := s.MergeTranslations(ctx, "general", "m1", map[string]string{"es": "hola"}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if _, err := s.ToggleReaction(ctx, "general", "m1", "👍", "alice"); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	if err := s.DeleteRoom(ctx, "general", "u2"); err != store.ErrNotOwner {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := s.DeleteRoom(ctx, "general", "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := s.GetRoom(ctx, "general"); err != store.ErrRoomNotFound {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	if _, err := s.FindByMsgID(ctx, "general", "m1"); err != store.ErrMessageNotFound {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

// Package memory provides an in-process Store. It backs tests and
// zero-setup runs; data does not survive a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/polyglotchat/polyglot-server/internal/store"
)

// Store keeps rooms and messages in memory, messages indexed by MsgID per
// room so reaction/translation updates touch a single entry.
type Store struct {
	mu      sync.Mutex
	rooms   map[string]*store.Room
	byRoom  map[string][]*store.Message // insertion order
	byMsgID map[string]map[string]*store.Message
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		rooms:   make(map[string]*store.Room),
		byRoom:  make(map[string][]*store.Message),
		byMsgID: make(map[string]map[string]*store.Message),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

func (s *Store) CreateMessage(_ context.Context, msg *store.Message) (*store.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byMsgID[msg.Room][msg.MsgID]; ok {
		return existing.Clone(), nil
	}

	stored := msg.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	if stored.Translations == nil {
		stored.Translations = make(map[string]string)
	}
	if stored.Reactions == nil {
		stored.Reactions = make(map[string][]string)
	}

	s.byRoom[msg.Room] = append(s.byRoom[msg.Room], stored)
	if s.byMsgID[msg.Room] == nil {
		s.byMsgID[msg.Room] = make(map[string]*store.Message)
	}
	s.byMsgID[msg.Room][msg.MsgID] = stored

	return stored.Clone(), nil
}

func (s *Store) MergeTranslations(_ context.Context, room, msgID string, partial map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.byMsgID[room][msgID]
	if !ok {
		return store.ErrMessageNotFound
	}
	for locale, text := range partial {
		if _, exists := msg.Translations[locale]; exists {
			continue
		}
		if text == "" {
			continue
		}
		msg.Translations[locale] = text
	}
	return nil
}

func (s *Store) History(_ context.Context, room string, limit int) ([]*store.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.byRoom[room]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*store.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Clone())
	}
	return out, nil
}

func (s *Store) FindByMsgID(_ context.Context, room, msgID string) (*store.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.byMsgID[room][msgID]
	if !ok {
		return nil, store.ErrMessageNotFound
	}
	return msg.Clone(), nil
}

func (s *Store) ToggleReaction(_ context.Context, room, msgID, emoji, username string) (map[string][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.byMsgID[room][msgID]
	if !ok {
		return nil, store.ErrMessageNotFound
	}

	users := msg.Reactions[emoji]
	removed := false
	for i, u := range users {
		if u == username {
			users = append(users[:i], users[i+1:]...)
			removed = true
			break
		}
	}
	if removed {
		if len(users) == 0 {
			delete(msg.Reactions, emoji)
		} else {
			msg.Reactions[emoji] = users
		}
	} else {
		msg.Reactions[emoji] = append(users, username)
	}

	out := make(map[string][]string, len(msg.Reactions))
	for k, v := range msg.Reactions {
		out[k] = append([]string(nil), v...)
	}
	return out, nil
}

func (s *Store) CreateRoom(_ context.Context, name, ownerID string, mode store.RoomMode) (*store.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rooms[name]; exists {
		return nil, store.ErrRoomExists
	}

	room := &store.Room{
		Name:      name,
		Mode:      mode,
		OwnerID:   ownerID,
		AdminIDs:  []string{ownerID},
		MemberIDs: []string{ownerID},
		CreatedAt: time.Now(),
	}
	s.rooms[name] = room
	return cloneRoom(room), nil
}

func (s *Store) GetRoom(_ context.Context, name string) (*store.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[name]
	if !ok {
		return nil, store.ErrRoomNotFound
	}
	return cloneRoom(room), nil
}

func (s *Store) UpdateRoomMode(_ context.Context, name string, mode store.RoomMode) (*store.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[name]
	if !ok {
		return nil, store.ErrRoomNotFound
	}
	room.Mode = mode
	return cloneRoom(room), nil
}

func (s *Store) AddMember(_ context.Context, name, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[name]
	if !ok {
		return store.ErrRoomNotFound
	}
	for _, id := range room.MemberIDs {
		if id == userID {
			return nil
		}
	}
	room.MemberIDs = append(room.MemberIDs, userID)
	return nil
}

func (s *Store) DeleteRoom(_ context.Context, name, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[name]
	if !ok {
		return store.ErrRoomNotFound
	}
	if room.OwnerID != userID {
		return store.ErrNotOwner
	}

	delete(s.rooms, name)
	delete(s.byRoom, name)
	delete(s.byMsgID, name)
	return nil
}

func cloneRoom(r *store.Room) *store.Room {
	cp := *r
	cp.AdminIDs = append([]string(nil), r.AdminIDs...)
	cp.MemberIDs = append([]string(nil), r.MemberIDs...)
	return &cp
}

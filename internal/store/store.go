package store

import (
	"context"
	"errors"
	"time"
)

// RoomMode controls how messages in a room are delivered.
type RoomMode string

const (
	// RoomModeGlobal auto-translates every message into the languages of
	// the room's members.
	RoomModeGlobal RoomMode = "Global"
	// RoomModeNative delivers originals only.
	RoomModeNative RoomMode = "Native"
)

// Valid reports whether the mode is one of the known values.
func (m RoomMode) Valid() bool {
	return m == RoomModeGlobal || m == RoomModeNative
}

// Room is a chat room record. Invariant: OwnerID is in AdminIDs, and
// AdminIDs is a subset of MemberIDs.
type Room struct {
	Name      string
	Mode      RoomMode
	OwnerID   string
	AdminIDs  []string
	MemberIDs []string
	CreatedAt time.Time
}

// IsAdmin reports whether the given user administers the room.
func (r *Room) IsAdmin(userID string) bool {
	if r.OwnerID == userID {
		return true
	}
	for _, id := range r.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsMember reports whether the given user belongs to the room.
func (r *Room) IsMember(userID string) bool {
	for _, id := range r.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// ReplyRef points at the message a reply is threaded under.
type ReplyRef struct {
	MsgID   string
	Author  string
	Message string
}

// Message is a persisted chat message. MsgID is the client-generated
// idempotency key; storing the same MsgID twice never duplicates the record.
type Message struct {
	Room         string
	Author       string
	Original     string
	SourceLocale string
	MsgID        string
	Translations map[string]string
	Reactions    map[string][]string
	ReplyTo      *ReplyRef
	CreatedAt    time.Time
}

// Clone returns a deep copy safe to hand across goroutines.
func (m *Message) Clone() *Message {
	cp := *m
	cp.Translations = make(map[string]string, len(m.Translations))
	for k, v := range m.Translations {
		cp.Translations[k] = v
	}
	cp.Reactions = make(map[string][]string, len(m.Reactions))
	for k, v := range m.Reactions {
		cp.Reactions[k] = append([]string(nil), v...)
	}
	if m.ReplyTo != nil {
		ref := *m.ReplyTo
		cp.ReplyTo = &ref
	}
	return &cp
}

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomExists      = errors.New("room already exists")
	ErrMessageNotFound = errors.New("message not found")
	ErrNotOwner        = errors.New("only the room owner may do this")
)

// MessageStore is the persistence contract consumed by the chat engine.
type MessageStore interface {
	// CreateMessage persists a message with whatever translations it
	// carries (normally none). Idempotent on MsgID: a second call with
	// the same MsgID returns the stored message unchanged.
	CreateMessage(ctx context.Context, msg *Message) (*Message, error)

	// MergeTranslations adds the given locales to a stored message.
	// Locales already present are left untouched, so concurrent merges
	// for different locales of the same message are safe.
	MergeTranslations(ctx context.Context, room, msgID string, partial map[string]string) error

	// History returns up to limit messages of a room, oldest first.
	History(ctx context.Context, room string, limit int) ([]*Message, error)

	// FindByMsgID looks a single message up by its idempotency key.
	FindByMsgID(ctx context.Context, room, msgID string) (*Message, error)

	// ToggleReaction atomically adds username to the emoji's reaction set
	// if absent, removes it if present, and returns the updated map.
	ToggleReaction(ctx context.Context, room, msgID, emoji, username string) (map[string][]string, error)
}

// RoomDirectory is the room lookup/update contract. Room creation is
// normally driven by an external collaborator; the engine only creates
// rooms for the explicit unknown-room policy and updates modes/membership.
type RoomDirectory interface {
	CreateRoom(ctx context.Context, name, ownerID string, mode RoomMode) (*Room, error)
	GetRoom(ctx context.Context, name string) (*Room, error)
	UpdateRoomMode(ctx context.Context, name string, mode RoomMode) (*Room, error)
	AddMember(ctx context.Context, room, userID string) error
	// DeleteRoom removes a room and cascades deletion of its messages.
	// Only the owner may delete.
	DeleteRoom(ctx context.Context, name, userID string) error
}

// Store is the full persistence surface.
type Store interface {
	MessageStore
	RoomDirectory
	Close() error
}

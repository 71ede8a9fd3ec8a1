package core

import "time"

// MessageState tracks a message through the translation pipeline.
type MessageState int

const (
	// StateCreated: original persisted and broadcast; terminal for
	// Native-mode rooms.
	StateCreated MessageState = iota
	// StateTranslating: fan-out started, nothing arrived yet.
	StateTranslating
	// StatePartiallyTranslated: at least one locale arrived.
	StatePartiallyTranslated
	// StateComplete: every requested locale resolved or permanently failed.
	StateComplete
)

// ReplyRef points at the message a reply threads under.
type ReplyRef struct {
	MsgID   string
	Author  string
	Message string
}

// Message is the domain model for a chat message.
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

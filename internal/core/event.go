package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventReceiveMessage delivers a chat message (original text) to a room.
	EventReceiveMessage EventKind = iota
	// EventMessageStatus acknowledges a send to its author: sent or failed.
	EventMessageStatus
	// EventTranslationsReady delivers translations for one message as they
	// resolve, one or more locales per event.
	EventTranslationsReady
	// EventTranslationWarning tells recipients a locale fell back to the
	// original text after provider retries ran out.
	EventTranslationWarning
	// EventRoomHistory delivers message history to a client upon joining a room.
	EventRoomHistory
	// EventRoomUsers delivers the current member list of a room.
	EventRoomUsers
	// EventRoomInfo reports a room's mode and the recipient's admin flag.
	EventRoomInfo
	// EventRoomCreated confirms a room creation to its creator.
	EventRoomCreated
	// EventReactionUpdate broadcasts a message's reaction map after a toggle.
	EventReactionUpdate
	// EventUserTyping reports a member starting or stopping typing.
	EventUserTyping
	// EventError notifies a client about a domain error.
	EventError
)

// MessageStatus values for EventMessageStatus.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Member describes one room occupant in EventRoomUsers.
type Member struct {
	ID       string
	Username string
	Lang     string
	Online   bool
}

// RoomInfo describes a room to one recipient; IsAdmin is per-recipient.
type RoomInfo struct {
	Name    string
	Mode    string
	IsAdmin bool
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind      EventKind
	Room      string
	User      string
	Message   *Message
	Messages  []*Message // for EventRoomHistory
	Members   []Member   // for EventRoomUsers
	RoomInfo  *RoomInfo  // for EventRoomInfo, EventRoomCreated
	MsgID     string
	Status    string            // for EventMessageStatus
	Reactions map[string][]string
	Locales   map[string]string // for EventTranslationsReady
	IsTyping  bool
	Error     *CoreError
	Warning   string
}

package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoinRoom subscribes the client to a room, leaving its
	// previous room first.
	CommandJoinRoom CommandKind = iota
	// CommandLeaveRoom unsubscribes the client from a room.
	CommandLeaveRoom
	// CommandSetLanguage changes the client's preferred language.
	CommandSetLanguage
	// CommandSendMessage delivers a chat message to room participants.
	CommandSendMessage
	// CommandCreateRoom asks the room directory for a new room.
	CommandCreateRoom
	// CommandUpdateRoomMode switches a room between Global and Native.
	CommandUpdateRoomMode
	// CommandAddReaction toggles an emoji reaction on a message.
	CommandAddReaction
	// CommandTyping reports typing start/stop.
	CommandTyping

	// commandMergeTranslations re-enters the hub loop with resolved
	// translations for a message. Internal only.
	commandMergeTranslations
	// commandTranslationFailed reports locales whose retries ran out.
	commandTranslationFailed
	// commandDeliverHistory hands a prepared history snapshot back to the
	// loop for delivery. Internal only.
	commandDeliverHistory
)

// Command represents an action requested by a client (or, for internal
// kinds, by the translation pipeline).
type Command struct {
	Kind     CommandKind
	Room     string
	Lang     string
	Mode     string
	MsgID    string
	Emoji    string
	IsTyping bool
	Message  *Message

	// Internal fields.
	client   *Client
	locales  map[string]string
	failed   []string
	history  []*Message
	warnings []string
}

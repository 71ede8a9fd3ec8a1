package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeHello          = "hello"
	InboundTypeJoinRoom       = "join_room"
	InboundTypeLeaveRoom      = "leave_room"
	InboundTypeSetLanguage    = "set_language"
	InboundTypeSendMessage    = "send_message"
	InboundTypeCreateRoom     = "create_room"
	InboundTypeUpdateRoomMode = "update_room_mode"
	InboundTypeAddReaction    = "add_reaction"
	InboundTypeTypingStart    = "typing_start"
	InboundTypeTypingStop     = "typing_stop"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventRoomHistory        = "room_history"
	EventRoomUsers          = "room_users"
	EventRoomInfo           = "room_info"
	EventRoomCreated        = "room_created"
	EventReceiveMessage     = "receive_message"
	EventMessageStatus      = "message_status"
	EventTranslationsReady  = "translations_ready"
	EventTranslationError   = "translation_error"
	EventReactionUpdate     = "reaction_update"
	EventUserTyping         = "user_typing"
	EventErrorEvent         = "error_event"
)

// HelloData authenticates the connection. It must be the first frame.
type HelloData struct {
	Token    string `json:"token"`
	Protocol int    `json:"protocol,omitempty"`
}

// JoinRoomData requests to join a specific room.
type JoinRoomData struct {
	Room string `json:"room"`
	Lang string `json:"lang"`
}

// LeaveRoomData leaves the current room.
type LeaveRoomData struct {
	Room string `json:"room"`
}

// SetLanguageData changes the preferred language for translations.
type SetLanguageData struct {
	Room string `json:"room"`
	Lang string `json:"lang"`
}

// ReplyRef references the message a reply threads under.
type ReplyRef struct {
	MsgID   string `json:"msgId"`
	Author  string `json:"author"`
	Message string `json:"message"`
}

// SendMessageData is a chat message from the client. MsgID is the
// client-generated idempotency key.
type SendMessageData struct {
	Room         string    `json:"room"`
	Author       string    `json:"author"`
	Message      string    `json:"message"`
	SourceLocale string    `json:"sourceLocale"`
	MsgID        string    `json:"msgId"`
	ReplyTo      *ReplyRef `json:"replyTo,omitempty"`
}

// CreateRoomData asks for a new room.
type CreateRoomData struct {
	Name string `json:"name"`
	Mode string `json:"mode"`
}

// UpdateRoomModeData switches a room between Global and Native.
type UpdateRoomModeData struct {
	Room string `json:"room"`
	Mode string `json:"mode"`
}

// AddReactionData toggles an emoji reaction on a message.
type AddReactionData struct {
	Room  string `json:"room"`
	MsgID string `json:"msgId"`
	Emoji string `json:"emoji"`
}

// TypingData reports typing activity.
type TypingData struct {
	Room   string `json:"room"`
	Author string `json:"author"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventMessage is emitted to room members for each chat message.
type EventMessage struct {
	Author       string              `json:"author"`
	Message      string              `json:"message"`
	Original     string              `json:"original"`
	Time         string              `json:"time"`
	MsgID        string              `json:"msgId"`
	Lang         string              `json:"lang"`
	Translations map[string]string   `json:"translations"`
	Reactions    map[string][]string `json:"reactions"`
	ReplyTo      *ReplyRef           `json:"replyTo,omitempty"`
}

// EventMessageStatusData acknowledges a send to its author.
type EventMessageStatusData struct {
	MsgID  string `json:"msgId"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// EventTranslationsReadyData streams resolved locales for one message.
type EventTranslationsReadyData struct {
	MsgID        string            `json:"msgId"`
	Translations map[string]string `json:"translations"`
}

// EventRoomUser is one occupant in a room_users event.
type EventRoomUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Lang     string `json:"lang"`
	Status   string `json:"status"`
}

// EventRoomInfoData reports a room's mode and the recipient's admin flag.
type EventRoomInfoData struct {
	Name    string `json:"name"`
	Mode    string `json:"mode"`
	IsAdmin bool   `json:"isAdmin"`
}

// EventRoomCreatedData confirms a room creation.
type EventRoomCreatedData struct {
	Name string `json:"name"`
	Mode string `json:"mode"`
}

// EventReactionUpdateData broadcasts a message's reaction map.
type EventReactionUpdateData struct {
	MsgID     string              `json:"msgId"`
	Reactions map[string][]string `json:"reactions"`
}

// EventUserTypingData reports a member typing.
type EventUserTypingData struct {
	Author   string `json:"author"`
	IsTyping bool   `json:"isTyping"`
}

// EventErrorData is a non-fatal warning or error surfaced to a client.
type EventErrorData struct {
	Message string `json:"message"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

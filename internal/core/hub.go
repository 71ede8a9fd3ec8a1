package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/polyglotchat/polyglot-server/internal/store"
	"github.com/polyglotchat/polyglot-server/internal/translate"
)

const (
	maxMessageLen = 2000
	maxRoomName   = 50
	historyLimit  = 50
)

// Hub drives the message lifecycle: it validates client commands,
// persists messages, broadcasts originals and streams per-locale
// translation updates as they resolve. All shared state mutates on the
// Run loop; translation I/O runs off-loop and re-enters as internal
// commands, which preserves the original-before-translations ordering
// per message.
type Hub struct {
	store    store.Store
	gateway  *translate.Gateway
	registry *Registry
	limiter  *Limiter
	log      *zerolog.Logger

	commands   chan *Command
	register   chan *Client
	unregister chan *Client
	groups     map[string]*broadcastGroup
	pending    map[string]*translationProgress // msgID -> fan-out progress, loop-owned

	ctx  context.Context
	done chan struct{}
}

// NewHub constructs a hub over its injected collaborators.
func NewHub(st store.Store, gateway *translate.Gateway, registry *Registry, limiter *Limiter, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if registry == nil {
		registry = NewRegistry()
	}
	if limiter == nil {
		limiter = NewLimiter(nil)
	}
	return &Hub{
		store:      st,
		gateway:    gateway,
		registry:   registry,
		limiter:    limiter,
		log:        logger,
		commands:   make(chan *Command, 64),
		register:   make(chan *Client, 8),
		unregister: make(chan *Client, 8),
		groups:     make(map[string]*broadcastGroup),
		pending:    make(map[string]*translationProgress),
		done:       make(chan struct{}),
	}
}

// RegisterClient hands an authenticated connection to the hub.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// UnregisterClient removes a connection. The transport closes the
// client's Commands channel afterwards.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Run processes commands until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.ctx = ctx
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.registry.Register(client.ID, client.Identity)
			go h.pump(client)
		case client := <-h.unregister:
			h.handleDisconnect(client)
		case cmd := <-h.commands:
			h.handleCommand(cmd)
		case <-ctx.Done():
			return
		}
	}
}

// pump forwards one client's commands into the hub loop.
func (h *Hub) pump(c *Client) {
	for cmd := range c.Commands {
		cmd.client = c
		select {
		case h.commands <- cmd:
		case <-h.done:
			return
		}
	}
}

func (h *Hub) handleCommand(cmd *Command) {
	switch cmd.Kind {
	case CommandJoinRoom:
		h.handleJoin(cmd)
	case CommandLeaveRoom:
		h.handleLeave(cmd)
	case CommandSetLanguage:
		h.handleSetLanguage(cmd)
	case CommandSendMessage:
		h.handleSend(cmd)
	case CommandCreateRoom:
		h.handleCreateRoom(cmd)
	case CommandUpdateRoomMode:
		h.handleUpdateRoomMode(cmd)
	case CommandAddReaction:
		h.handleReaction(cmd)
	case CommandTyping:
		h.handleTyping(cmd)
	case commandMergeTranslations:
		h.handleMergeTranslations(cmd)
	case commandTranslationFailed:
		h.handleTranslationFailed(cmd)
	case commandDeliverHistory:
		h.handleDeliverHistory(cmd)
	}
}

// ==== joins, leaves, presence ====

func (h *Hub) handleJoin(cmd *Command) {
	c := cmd.client
	if c.Identity == nil {
		h.emitError(c, ErrCodeUnauthorized, "authenticate before joining")
		return
	}
	if cmd.Room == "" || utf8.RuneCountInString(cmd.Room) > maxRoomName {
		h.emitError(c, ErrCodeBadRequest, "invalid room name")
		return
	}
	if h.limiter.Hit(c.ID, ActionJoin) {
		h.emitError(c, ErrCodeRateLimited, "too many joins, slow down")
		return
	}

	// Resolve the room before touching the registry so a directory
	// failure leaves no half-joined member behind.
	room, err := h.lookupOrCreateRoom(cmd.Room, c.UserID())
	if err != nil {
		h.log.Error().Err(err).Str("room", cmd.Room).Msg("room lookup failed")
		h.emitError(c, ErrCodeRoomNotFound, "failed to resolve room")
		return
	}

	vacated, ok := h.registry.Join(c.ID, cmd.Room, cmd.Lang)
	if !ok {
		h.emitError(c, ErrCodeUnauthorized, "connection not registered")
		return
	}
	if vacated != "" {
		h.group(vacated).unsubscribe(c)
		h.broadcastRoomUsers(vacated)
	}
	h.group(cmd.Room).subscribe(c)

	if err := h.store.AddMember(h.ctx, room.Name, c.UserID()); err != nil {
		h.log.Warn().Err(err).Str("room", room.Name).Msg("failed to record membership")
	}

	c.send(&Event{
		Kind: EventRoomInfo,
		Room: room.Name,
		RoomInfo: &RoomInfo{
			Name:    room.Name,
			Mode:    string(room.Mode),
			IsAdmin: room.IsAdmin(c.UserID()),
		},
	})

	lang := cmd.Lang
	if lang == "" {
		if session, found := h.registry.Get(c.ID); found {
			lang = session.Lang
		}
	}
	go h.prepareHistory(c, room.Name, lang)

	h.broadcastRoomUsers(cmd.Room)
}

// lookupOrCreateRoom resolves a room, creating unknown rooms as Global
// owned by the joiner. Explicit policy: an unknown room name is a new
// room, not an error.
func (h *Hub) lookupOrCreateRoom(name, ownerID string) (*store.Room, error) {
	room, err := h.store.GetRoom(h.ctx, name)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, store.ErrRoomNotFound) {
		return nil, err
	}

	room, err = h.store.CreateRoom(h.ctx, name, ownerID, store.RoomModeGlobal)
	if errors.Is(err, store.ErrRoomExists) {
		return h.store.GetRoom(h.ctx, name)
	}
	return room, err
}

// prepareHistory loads the room snapshot and fills translation gaps for
// the joiner's language, then re-enters the loop for delivery. Runs off
// the hub loop so a slow provider cannot stall other rooms.
func (h *Hub) prepareHistory(c *Client, room, lang string) {
	history, err := h.store.History(context.Background(), room, historyLimit)
	if err != nil {
		h.log.Error().Err(err).Str("room", room).Msg("failed to fetch room history")
		h.emitError(c, ErrCodePersistence, "failed to fetch room history")
		return
	}

	var warnings []string
	for _, msg := range history {
		if lang == "" || msg.SourceLocale == lang {
			continue
		}
		if _, ok := msg.Translations[lang]; ok {
			continue
		}
		if h.gateway == nil || !h.gateway.Enabled() {
			continue
		}
		translated, err := h.gateway.TranslateOne(context.Background(), msg.Original, msg.SourceLocale, lang)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("Translation unavailable for %s. Showing original message.", lang))
			continue
		}
		if translated == msg.Original {
			continue
		}
		msg.Translations[lang] = translated
		if err := h.store.MergeTranslations(context.Background(), room, msg.MsgID, map[string]string{lang: translated}); err != nil {
			h.log.Warn().Err(err).Str("msg_id", msg.MsgID).Msg("failed to persist history translation")
		}
	}

	messages := make([]*Message, 0, len(history))
	for _, msg := range history {
		messages = append(messages, fromStore(msg))
	}

	select {
	case h.commands <- &Command{
		Kind:     commandDeliverHistory,
		Room:     room,
		client:   c,
		history:  messages,
		warnings: warnings,
	}:
	case <-h.done:
	}
}

func (h *Hub) handleDeliverHistory(cmd *Command) {
	cmd.client.send(&Event{
		Kind:     EventRoomHistory,
		Room:     cmd.Room,
		Messages: cmd.history,
	})
	for _, warning := range cmd.warnings {
		cmd.client.send(&Event{Kind: EventTranslationWarning, Room: cmd.Room, Warning: warning})
	}
}

func (h *Hub) handleLeave(cmd *Command) {
	c := cmd.client
	if !h.registry.Leave(c.ID, cmd.Room) {
		h.emitError(c, ErrCodeRoomMismatch, "not in this room")
		return
	}
	h.group(cmd.Room).unsubscribe(c)
	h.broadcastRoomUsers(cmd.Room)
}

func (h *Hub) handleSetLanguage(cmd *Command) {
	c := cmd.client
	if cmd.Lang == "" {
		h.emitError(c, ErrCodeBadRequest, "lang is required")
		return
	}
	if !h.registry.SetLanguage(c.ID, cmd.Lang) {
		h.emitError(c, ErrCodeUnauthorized, "connection not registered")
		return
	}
	if cmd.Room != "" {
		h.broadcastRoomUsers(cmd.Room)
	}
}

func (h *Hub) handleDisconnect(c *Client) {
	vacated := h.registry.Disconnect(c.ID)
	h.limiter.Forget(c.ID)
	for _, group := range h.groups {
		group.unsubscribe(c)
	}
	if vacated != "" {
		h.broadcastRoomUsers(vacated)
	}
}

// ==== messages ====

func (h *Hub) handleSend(cmd *Command) {
	c := cmd.client
	if c.Identity == nil {
		h.emitError(c, ErrCodeUnauthorized, "authenticate before sending")
		return
	}
	if h.limiter.Hit(c.ID, ActionSendMessage) {
		h.emitError(c, ErrCodeRateLimited, "sending too fast, slow down")
		return
	}

	session, found := h.registry.Get(c.ID)
	if !found || cmd.Room == "" || session.Room != cmd.Room {
		h.emitError(c, ErrCodeRoomMismatch, "join the room before sending")
		return
	}
	if cmd.Message == nil || cmd.Message.MsgID == "" {
		h.emitError(c, ErrCodeBadRequest, "msgId is required")
		return
	}

	trimmed := strings.TrimSpace(cmd.Message.Original)
	if trimmed == "" {
		h.emitError(c, ErrCodeBadRequest, "message is empty")
		return
	}
	if utf8.RuneCountInString(trimmed) > maxMessageLen {
		h.emitError(c, ErrCodeMessageTooBig, "message exceeds 2000 characters")
		return
	}
	text := SanitizeText(trimmed)

	sourceLocale := cmd.Message.SourceLocale
	if sourceLocale == "" {
		sourceLocale = "auto"
	}

	stored, err := h.store.CreateMessage(h.ctx, &store.Message{
		Room:         cmd.Room,
		Author:       c.Username(),
		Original:     text,
		SourceLocale: sourceLocale,
		MsgID:        cmd.Message.MsgID,
		ReplyTo:      toStoreReply(cmd.Message.ReplyTo),
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		// Never broadcast a message that was not durably recorded.
		h.log.Error().Err(err).Str("msg_id", cmd.Message.MsgID).Msg("failed to persist message")
		c.send(&Event{
			Kind:   EventMessageStatus,
			MsgID:  cmd.Message.MsgID,
			Status: StatusFailed,
			Error:  coreError(ErrCodePersistence, "failed to save message"),
		})
		return
	}

	c.send(&Event{Kind: EventMessageStatus, MsgID: stored.MsgID, Status: StatusSent})

	broadcast := fromStore(stored)
	h.group(cmd.Room).broadcast(&Event{
		Kind:    EventReceiveMessage,
		Room:    cmd.Room,
		User:    c.Username(),
		Message: broadcast,
	})

	room, err := h.store.GetRoom(h.ctx, cmd.Room)
	if err != nil {
		h.log.Warn().Err(err).Str("room", cmd.Room).Msg("room mode lookup failed, skipping translation")
		return
	}
	if room.Mode != store.RoomModeGlobal || h.gateway == nil || !h.gateway.Enabled() {
		return
	}

	targets := h.targetLanguages(cmd.Room, stored.SourceLocale)
	if len(targets) == 0 {
		return
	}
	h.pending[stored.MsgID] = &translationProgress{state: StateTranslating, remaining: len(targets)}
	go h.fanOutTranslations(cmd.Room, stored.MsgID, stored.Original, stored.SourceLocale, targets)
}

// translationProgress tracks one message through the fan-out lifecycle.
// Messages without a fan-out (Native rooms, no targets) stay at
// StateCreated and never enter the map.
type translationProgress struct {
	state     MessageState
	remaining int
}

// advanceTranslation records resolved or permanently failed locales and
// reports the resulting state.
func (h *Hub) advanceTranslation(msgID string, count int, resolved bool) MessageState {
	progress, ok := h.pending[msgID]
	if !ok {
		return StateCreated
	}
	if resolved {
		progress.state = StatePartiallyTranslated
	}
	progress.remaining -= count
	if progress.remaining <= 0 {
		delete(h.pending, msgID)
		return StateComplete
	}
	return progress.state
}

// targetLanguages is the distinct member languages of the room minus the
// message's source language.
func (h *Hub) targetLanguages(room, sourceLang string) []string {
	var targets []string
	for _, lang := range h.registry.LanguagesOf(room) {
		if lang == sourceLang {
			continue
		}
		targets = append(targets, lang)
	}
	return targets
}

// fanOutTranslations streams per-locale results back into the hub loop.
// It deliberately runs to completion even if every member disconnects:
// the merge still persists, there is just nobody left to notify.
func (h *Hub) fanOutTranslations(room, msgID, text, sourceLang string, targets []string) {
	_, failed := h.gateway.TranslateMany(context.Background(), text, sourceLang, targets, func(lang, translated string) {
		select {
		case h.commands <- &Command{
			Kind:    commandMergeTranslations,
			Room:    room,
			MsgID:   msgID,
			locales: map[string]string{lang: translated},
		}:
		case <-h.done:
		}
	})

	if len(failed) > 0 {
		select {
		case h.commands <- &Command{
			Kind:   commandTranslationFailed,
			Room:   room,
			MsgID:  msgID,
			failed: failed,
		}:
		case <-h.done:
		}
	}
}

func (h *Hub) handleMergeTranslations(cmd *Command) {
	if err := h.store.MergeTranslations(context.Background(), cmd.Room, cmd.MsgID, cmd.locales); err != nil {
		h.log.Error().Err(err).Str("msg_id", cmd.MsgID).Msg("failed to merge translations")
		return
	}
	h.group(cmd.Room).broadcast(&Event{
		Kind:    EventTranslationsReady,
		Room:    cmd.Room,
		MsgID:   cmd.MsgID,
		Locales: cmd.locales,
	})

	if h.advanceTranslation(cmd.MsgID, len(cmd.locales), true) == StateComplete {
		h.log.Debug().Str("msg_id", cmd.MsgID).Msg("translation fan-out complete")
	}
}

func (h *Hub) handleTranslationFailed(cmd *Command) {
	for _, lang := range cmd.failed {
		h.group(cmd.Room).broadcast(&Event{
			Kind:    EventTranslationWarning,
			Room:    cmd.Room,
			MsgID:   cmd.MsgID,
			Warning: fmt.Sprintf("Translation unavailable for %s. Showing original message.", lang),
		})
	}

	if h.advanceTranslation(cmd.MsgID, len(cmd.failed), false) == StateComplete {
		h.log.Debug().Str("msg_id", cmd.MsgID).Msg("translation fan-out complete with failures")
	}
}

// ==== reactions, typing ====

func (h *Hub) handleReaction(cmd *Command) {
	c := cmd.client
	if c.Identity == nil {
		h.emitError(c, ErrCodeUnauthorized, "authenticate before reacting")
		return
	}
	if h.limiter.Hit(c.ID, ActionReaction) {
		h.emitError(c, ErrCodeRateLimited, "too many reactions, slow down")
		return
	}
	session, found := h.registry.Get(c.ID)
	if !found || session.Room != cmd.Room {
		h.emitError(c, ErrCodeNotMember, "join the room before reacting")
		return
	}
	if cmd.MsgID == "" || cmd.Emoji == "" {
		h.emitError(c, ErrCodeBadRequest, "msgId and emoji are required")
		return
	}

	reactions, err := h.store.ToggleReaction(h.ctx, cmd.Room, cmd.MsgID, cmd.Emoji, c.Username())
	if err != nil {
		if errors.Is(err, store.ErrMessageNotFound) {
			h.emitError(c, ErrCodeBadRequest, "unknown message")
			return
		}
		h.log.Error().Err(err).Str("msg_id", cmd.MsgID).Msg("failed to toggle reaction")
		h.emitError(c, ErrCodePersistence, "failed to update reaction")
		return
	}

	h.group(cmd.Room).broadcast(&Event{
		Kind:      EventReactionUpdate,
		Room:      cmd.Room,
		MsgID:     cmd.MsgID,
		Reactions: reactions,
	})
}

func (h *Hub) handleTyping(cmd *Command) {
	c := cmd.client
	if h.limiter.Hit(c.ID, ActionTyping) {
		return
	}
	session, found := h.registry.Get(c.ID)
	if !found || session.Room != cmd.Room {
		return
	}
	h.group(cmd.Room).broadcastExcept(&Event{
		Kind:     EventUserTyping,
		Room:     cmd.Room,
		User:     c.Username(),
		IsTyping: cmd.IsTyping,
	}, c)
}

// ==== room administration ====

func (h *Hub) handleCreateRoom(cmd *Command) {
	c := cmd.client
	if c.Identity == nil {
		h.emitError(c, ErrCodeUnauthorized, "authenticate before creating rooms")
		return
	}
	if cmd.Room == "" || utf8.RuneCountInString(cmd.Room) > maxRoomName {
		h.emitError(c, ErrCodeBadRequest, "invalid room name")
		return
	}
	if h.limiter.Hit(c.ID, ActionCreateRoom) {
		h.emitError(c, ErrCodeRateLimited, "too many rooms created, slow down")
		return
	}

	mode := store.RoomMode(cmd.Mode)
	if cmd.Mode == "" {
		mode = store.RoomModeGlobal
	}
	if !mode.Valid() {
		h.emitError(c, ErrCodeBadRequest, "mode must be Global or Native")
		return
	}

	room, err := h.store.CreateRoom(h.ctx, cmd.Room, c.UserID(), mode)
	if err != nil {
		if errors.Is(err, store.ErrRoomExists) {
			h.emitError(c, ErrCodeRoomExists, "room name already exists")
			return
		}
		h.log.Error().Err(err).Str("room", cmd.Room).Msg("failed to create room")
		h.emitError(c, ErrCodePersistence, "failed to create room")
		return
	}

	c.send(&Event{
		Kind: EventRoomCreated,
		Room: room.Name,
		RoomInfo: &RoomInfo{
			Name:    room.Name,
			Mode:    string(room.Mode),
			IsAdmin: true,
		},
	})
}

func (h *Hub) handleUpdateRoomMode(cmd *Command) {
	c := cmd.client
	if c.Identity == nil {
		h.emitError(c, ErrCodeUnauthorized, "authenticate first")
		return
	}

	mode := store.RoomMode(cmd.Mode)
	if !mode.Valid() {
		h.emitError(c, ErrCodeBadRequest, "mode must be Global or Native")
		return
	}

	room, err := h.store.GetRoom(h.ctx, cmd.Room)
	if err != nil {
		if errors.Is(err, store.ErrRoomNotFound) {
			h.emitError(c, ErrCodeRoomNotFound, "room not found")
			return
		}
		h.log.Error().Err(err).Str("room", cmd.Room).Msg("failed to load room")
		h.emitError(c, ErrCodePersistence, "failed to load room")
		return
	}
	if !room.IsAdmin(c.UserID()) {
		h.emitError(c, ErrCodeNotAdmin, "only room admins may change the mode")
		return
	}

	updated, err := h.store.UpdateRoomMode(h.ctx, cmd.Room, mode)
	if err != nil {
		h.log.Error().Err(err).Str("room", cmd.Room).Msg("failed to update room mode")
		h.emitError(c, ErrCodePersistence, "failed to update room mode")
		return
	}

	// Each member gets their own isAdmin flag.
	for member := range h.group(cmd.Room).clients {
		member.send(&Event{
			Kind: EventRoomInfo,
			Room: updated.Name,
			RoomInfo: &RoomInfo{
				Name:    updated.Name,
				Mode:    string(updated.Mode),
				IsAdmin: updated.IsAdmin(member.UserID()),
			},
		})
	}
}

// ==== helpers ====

func (h *Hub) group(room string) *broadcastGroup {
	group, exists := h.groups[room]
	if !exists {
		group = newBroadcastGroup(room)
		h.groups[room] = group
	}
	return group
}

func (h *Hub) broadcastRoomUsers(room string) {
	group := h.group(room)
	if group.empty() {
		delete(h.groups, room)
		return
	}
	group.broadcast(&Event{
		Kind:    EventRoomUsers,
		Room:    room,
		Members: h.registry.MembersOf(room),
	})
}

func (h *Hub) emitError(c *Client, code, msg string) {
	c.send(&Event{Kind: EventError, Error: coreError(code, msg)})
}

func fromStore(msg *store.Message) *Message {
	out := &Message{
		Room:         msg.Room,
		Author:       msg.Author,
		Original:     msg.Original,
		SourceLocale: msg.SourceLocale,
		MsgID:        msg.MsgID,
		Translations: msg.Translations,
		Reactions:    msg.Reactions,
		CreatedAt:    msg.CreatedAt,
	}
	if out.Translations == nil {
		out.Translations = make(map[string]string)
	}
	if out.Reactions == nil {
		out.Reactions = make(map[string][]string)
	}
	if msg.ReplyTo != nil {
		out.ReplyTo = &ReplyRef{
			MsgID:   msg.ReplyTo.MsgID,
			Author:  msg.ReplyTo.Author,
			Message: msg.ReplyTo.Message,
		}
	}
	return out
}

func toStoreReply(ref *ReplyRef) *store.ReplyRef {
	if ref == nil {
		return nil
	}
	return &store.ReplyRef{
		MsgID:   ref.MsgID,
		Author:  ref.Author,
		Message: ref.Message,
	}
}

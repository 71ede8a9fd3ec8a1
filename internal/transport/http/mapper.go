package http

import (
	"encoding/json"
	"time"

	"github.com/polyglotchat/polyglot-server/internal/core"
	"github.com/polyglotchat/polyglot-server/internal/proto"
)

func decodeHello(data json.RawMessage) (*proto.HelloData, error) {
	var hello proto.HelloData
	if err := json.Unmarshal(data, &hello); err != nil {
		return nil, err
	}
	return &hello, nil
}

func inboundToCommand(client *core.Client, inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeHello:
		// Duplicate hello after authentication.
		return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "already authenticated"}, nil

	case proto.InboundTypeJoinRoom:
		var join proto.JoinRoomData
		if err := json.Unmarshal(inbound.Data, &join); err != nil {
			return nil, nil, err
		}
		if join.Room == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "room is required"}, nil
		}
		return &core.Command{
			Kind: core.CommandJoinRoom,
			Room: join.Room,
			Lang: join.Lang,
		}, nil, nil

	case proto.InboundTypeLeaveRoom:
		var leave proto.LeaveRoomData
		if err := json.Unmarshal(inbound.Data, &leave); err != nil {
			return nil, nil, err
		}
		if leave.Room == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "room is required"}, nil
		}
		return &core.Command{
			Kind: core.CommandLeaveRoom,
			Room: leave.Room,
		}, nil, nil

	case proto.InboundTypeSetLanguage:
		var set proto.SetLanguageData
		if err := json.Unmarshal(inbound.Data, &set); err != nil {
			return nil, nil, err
		}
		if set.Lang == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "lang is required"}, nil
		}
		return &core.Command{
			Kind: core.CommandSetLanguage,
			Room: set.Room,
			Lang: set.Lang,
		}, nil, nil

	case proto.InboundTypeSendMessage:
		var msg proto.SendMessageData
		if err := json.Unmarshal(inbound.Data, &msg); err != nil {
			return nil, nil, err
		}
		if msg.Room == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "room is required"}, nil
		}
		if msg.MsgID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "msgId is required"}, nil
		}
		return &core.Command{
			Kind:  core.CommandSendMessage,
			Room:  msg.Room,
			MsgID: msg.MsgID,
			Message: &core.Message{
				Room:         msg.Room,
				Author:       client.Username(),
				Original:     msg.Message,
				SourceLocale: msg.SourceLocale,
				MsgID:        msg.MsgID,
				ReplyTo:      replyFromProto(msg.ReplyTo),
			},
		}, nil, nil

	case proto.InboundTypeCreateRoom:
		var create proto.CreateRoomData
		if err := json.Unmarshal(inbound.Data, &create); err != nil {
			return nil, nil, err
		}
		if create.Name == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "name is required"}, nil
		}
		return &core.Command{
			Kind: core.CommandCreateRoom,
			Room: create.Name,
			Mode: create.Mode,
		}, nil, nil

	case proto.InboundTypeUpdateRoomMode:
		var update proto.UpdateRoomModeData
		if err := json.Unmarshal(inbound.Data, &update); err != nil {
			return nil, nil, err
		}
		if update.Room == "" || update.Mode == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "room and mode are required"}, nil
		}
		return &core.Command{
			Kind: core.CommandUpdateRoomMode,
			Room: update.Room,
			Mode: update.Mode,
		}, nil, nil

	case proto.InboundTypeAddReaction:
		var react proto.AddReactionData
		if err := json.Unmarshal(inbound.Data, &react); err != nil {
			return nil, nil, err
		}
		if react.Room == "" || react.MsgID == "" || react.Emoji == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "room, msgId and emoji are required"}, nil
		}
		return &core.Command{
			Kind:  core.CommandAddReaction,
			Room:  react.Room,
			MsgID: react.MsgID,
			Emoji: react.Emoji,
		}, nil, nil

	case proto.InboundTypeTypingStart, proto.InboundTypeTypingStop:
		var typing proto.TypingData
		if err := json.Unmarshal(inbound.Data, &typing); err != nil {
			return nil, nil, err
		}
		if typing.Room == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "room is required"}, nil
		}
		return &core.Command{
			Kind:     core.CommandTyping,
			Room:     typing.Room,
			IsTyping: inbound.Type == proto.InboundTypeTypingStart,
		}, nil, nil

	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}, nil
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventReceiveMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventReceiveMessage,
			Data:  messageToProto(event.Message),
		}

	case core.EventMessageStatus:
		data := proto.EventMessageStatusData{
			MsgID:  event.MsgID,
			Status: event.Status,
		}
		if event.Error != nil {
			data.Error = event.Error.Message
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageStatus,
			Data:  data,
		}

	case core.EventTranslationsReady:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventTranslationsReady,
			Data: proto.EventTranslationsReadyData{
				MsgID:        event.MsgID,
				Translations: event.Locales,
			},
		}

	case core.EventTranslationWarning:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventTranslationError,
			Data:  proto.EventErrorData{Message: event.Warning},
		}

	case core.EventRoomHistory:
		messages := make([]proto.EventMessage, 0, len(event.Messages))
		for _, msg := range event.Messages {
			messages = append(messages, messageToProto(msg))
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventRoomHistory,
			Data:  messages,
		}

	case core.EventRoomUsers:
		users := make([]proto.EventRoomUser, 0, len(event.Members))
		for _, member := range event.Members {
			status := "offline"
			if member.Online {
				status = "online"
			}
			users = append(users, proto.EventRoomUser{
				ID:       member.ID,
				Username: member.Username,
				Lang:     member.Lang,
				Status:   status,
			})
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventRoomUsers,
			Data:  users,
		}

	case core.EventRoomInfo:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventRoomInfo,
			Data: proto.EventRoomInfoData{
				Name:    event.RoomInfo.Name,
				Mode:    event.RoomInfo.Mode,
				IsAdmin: event.RoomInfo.IsAdmin,
			},
		}

	case core.EventRoomCreated:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventRoomCreated,
			Data: proto.EventRoomCreatedData{
				Name: event.RoomInfo.Name,
				Mode: event.RoomInfo.Mode,
			},
		}

	case core.EventReactionUpdate:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventReactionUpdate,
			Data: proto.EventReactionUpdateData{
				MsgID:     event.MsgID,
				Reactions: event.Reactions,
			},
		}

	case core.EventUserTyping:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserTyping,
			Data: proto.EventUserTypingData{
				Author:   event.User,
				IsTyping: event.IsTyping,
			},
		}

	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Event: proto.EventErrorEvent,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}

	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func messageToProto(msg *core.Message) proto.EventMessage {
	return proto.EventMessage{
		Author:       msg.Author,
		Message:      msg.Original,
		Original:     msg.Original,
		Time:         msg.CreatedAt.Format(time.RFC3339),
		MsgID:        msg.MsgID,
		Lang:         msg.SourceLocale,
		Translations: msg.Translations,
		Reactions:    msg.Reactions,
		ReplyTo:      replyToProto(msg.ReplyTo),
	}
}

func replyFromProto(ref *proto.ReplyRef) *core.ReplyRef {
	if ref == nil {
		return nil
	}
	return &core.ReplyRef{
		MsgID:   ref.MsgID,
		Author:  ref.Author,
		Message: ref.Message,
	}
}

func replyToProto(ref *core.ReplyRef) *proto.ReplyRef {
	if ref == nil {
		return nil
	}
	return &proto.ReplyRef{
		MsgID:   ref.MsgID,
		Author:  ref.Author,
		Message: ref.Message,
	}
}

package http

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/mdelcroix/courier/internal/core"
	"github.com/mdelcroix/courier/internal/proto"
)

// inboundToCommand turns a JSON envelope into a hub command. The hub works on
// wire payloads, so the mapper assembles the same colon-separated form the TCP
// clients send.
func (h *WSHandler) inboundToCommand(sess *session, inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeHello:
		var hello proto.HelloData
		if err := json.Unmarshal(inbound.Data, &hello); err != nil {
			return nil, nil, err
		}
		user := strings.ReplaceAll(hello.User, " ", "")
		if hello.Token != "" && h.auth != nil {
			claims, err := h.auth.ValidateToken(hello.Token)
			if err != nil {
				return nil, &proto.Error{Code: "invalid_token", Msg: "token rejected"}, nil
			}
			user = claims.Username
		}
		if user == "" || user == proto.HomeReceiver {
			return nil, &proto.Error{Code: core.ErrCodeBadPayload, Msg: "user is required"}, nil
		}
		sess.user = user
		return &core.Command{
			Kind:  core.CommandBind,
			Frame: proto.Frame{Command: proto.CommandMessage, Payload: user + ":" + proto.HomeReceiver + ":"},
		}, nil, nil

	case proto.InboundTypeMsg:
		if sess.user == "" {
			return nil, &proto.Error{Code: core.ErrCodeNotRegistered, Msg: "hello first"}, nil
		}
		var msg proto.MsgData
		if err := json.Unmarshal(inbound.Data, &msg); err != nil {
			return nil, nil, err
		}
		if msg.Receiver == "" || msg.Text == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadPayload, Msg: "receiver and text are required"}, nil
		}
		payload := sess.user + ":" + msg.Receiver + ":" + msg.Text
		if msg.ReplyTo != 0 {
			payload += ":" + strconv.FormatInt(msg.ReplyTo, 10)
		}
		return &core.Command{
			Kind:  core.CommandSendMessage,
			Frame: proto.Frame{Command: proto.CommandMessage, Payload: payload},
		}, nil, nil

	case proto.InboundTypeReact:
		if sess.user == "" {
			return nil, &proto.Error{Code: core.ErrCodeNotRegistered, Msg: "hello first"}, nil
		}
		var react proto.ReactData
		if err := json.Unmarshal(inbound.Data, &react); err != nil {
			return nil, nil, err
		}
		if react.Receiver == "" || react.MessageID == 0 {
			return nil, &proto.Error{Code: core.ErrCodeBadPayload, Msg: "receiver and message_id are required"}, nil
		}
		cmd := proto.CommandAddReact
		if react.Remove {
			cmd = proto.CommandRmReact
		}
		payload := sess.user + ":" + react.Receiver + ":" +
			strconv.FormatInt(react.MessageID, 10) + ";" + strconv.Itoa(react.Count)
		return &core.Command{
			Kind:  core.CommandReact,
			Frame: proto.Frame{Command: cmd, Payload: payload},
		}, nil, nil

	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}, nil
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventChatMessage:
		var replyTo int64
		if event.Message.ReplyTo != nil {
			replyTo = *event.Message.ReplyTo
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: "message",
			Data: proto.EventMessage{
				ID:       event.Message.ID,
				Sender:   event.Message.Sender,
				Receiver: event.Message.Receiver,
				Text:     event.Message.Body,
				ReplyTo:  replyTo,
			},
		}
	case core.EventReaction:
		data := proto.EventReaction{Removed: event.Frame.Command == proto.CommandRmReact}
		if react, err := proto.ParseReaction(event.Frame.Payload); err == nil {
			data.Sender = react.Sender
			data.MessageID = react.MessageID
			data.Count = react.Count
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: "reaction",
			Data:  data,
		}
	case core.EventConnCount:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: "conn_count",
			Data:  proto.EventConnCount{Count: event.Count},
		}
	case core.EventGreeting:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: "hello",
		}
	case core.EventWelcome:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: "welcome",
			Data:  proto.EventUser{User: event.User},
		}
	case core.EventGoodBye:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: "good_bye",
			Data:  proto.EventUser{User: event.User},
		}
	case core.EventLastID:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: "last_id",
			Data:  proto.EventLastID{LastID: event.LastID},
		}
	case core.EventError:
		return proto.Outbound{
			Type: proto.OutboundTypeError,
			Error: &proto.Error{
				Code: event.Error.Code,
				Msg:  event.Error.Message,
			},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

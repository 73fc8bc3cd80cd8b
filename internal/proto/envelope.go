package proto

import "encoding/json"

// JSON envelope used by the WebSocket bridge. Browser clients speak this
// instead of the byte-framed TCP protocol; both feed the same hub.

// Inbound is the envelope for messages coming from a WebSocket client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeHello = "hello"
	InboundTypeMsg   = "msg"
	InboundTypeReact = "react"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
)

// HelloData binds a username to the connection.
type HelloData struct {
	User  string `json:"user"`
	Token string `json:"token,omitempty"`
}

// MsgData is a chat message from a WebSocket client.
type MsgData struct {
	Receiver string `json:"receiver"`
	Text     string `json:"text"`
	ReplyTo  int64  `json:"reply_to,omitempty"`
}

// ReactData adjusts the reaction count on a stored message.
type ReactData struct {
	Receiver  string `json:"receiver"`
	MessageID int64  `json:"message_id"`
	Count     int    `json:"count"`
	Remove    bool   `json:"remove,omitempty"`
}

// Outbound is the envelope for messages sent to a WebSocket client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventMessage mirrors a routed chat frame.
type EventMessage struct {
	ID       int64  `json:"id,omitempty"`
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Text     string `json:"text"`
	ReplyTo  int64  `json:"reply_to,omitempty"`
}

// EventConnCount mirrors a ConnNb frame.
type EventConnCount struct {
	Count int `json:"count"`
}

// EventReaction mirrors a routed reaction frame.
type EventReaction struct {
	Sender    string `json:"sender"`
	MessageID int64  `json:"message_id"`
	Count     int    `json:"count"`
	Removed   bool   `json:"removed,omitempty"`
}

// EventUser names the subject of welcome and good-bye events.
type EventUser struct {
	User string `json:"user"`
}

// EventLastID mirrors a LastID frame.
type EventLastID struct {
	LastID int64 `json:"last_id"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

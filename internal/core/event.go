package core

import (
	"github.com/mdelcroix/courier/internal/proto"
	"github.com/mdelcroix/courier/internal/store"
)

// EventKind is a notification the hub emits to clients.
type EventKind int

const (
	// EventChatMessage delivers a routed chat message.
	EventChatMessage EventKind = iota
	// EventReaction delivers a routed reaction update.
	EventReaction
	// EventConnCount pushes the number of live connections.
	EventConnCount
	// EventGreeting greets a freshly accepted connection.
	EventGreeting
	// EventWelcome acknowledges a username binding.
	EventWelcome
	// EventGoodBye announces that a named user disconnected.
	EventGoodBye
	// EventLastID tells a fresh connection the highest stored message id.
	EventLastID
	// EventError notifies a client about a domain error.
	EventError
)

// Event is sent to clients to describe what happened. Frame is the wire-ready
// TCP form; the typed fields let the WebSocket bridge build its JSON envelope
// without re-parsing the payload.
type Event struct {
	Kind    EventKind
	Frame   proto.Frame
	Message store.Message // for EventChatMessage
	Count   int           // for EventConnCount
	LastID  int64         // for EventLastID
	User    string        // for EventWelcome / EventGoodBye
	Error   *CoreError    // for EventError
}

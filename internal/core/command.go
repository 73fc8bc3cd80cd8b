package core

import "github.com/mdelcroix/courier/internal/proto"

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandSendMessage routes a chat message frame.
	CommandSendMessage CommandKind = iota
	// CommandReact routes an AddReact or RmReact frame.
	CommandReact
	// CommandBind binds the sender's username without delivering anything;
	// used by transports that announce the user up front.
	CommandBind
)

// Command represents an action requested by a client. Frame is the wire form;
// the hub parses the payload itself so both transports stay thin.
type Command struct {
	Kind  CommandKind
	Frame proto.Frame
}

package proto

import "fmt"

// Command is the one-byte header that opens every frame on the wire.
type Command byte

const (
	// CommandMessage carries a chat message in either direction.
	CommandMessage Command = 0x00
	// CommandHelloWorld greets a client right after it connects.
	CommandHelloWorld Command = 0x01
	// CommandWelcome acknowledges a username registration.
	CommandWelcome Command = 0x02
	// CommandGoodBye announces a disconnect.
	CommandGoodBye Command = 0x03
	// CommandConnNb pushes the number of live connections.
	CommandConnNb Command = 0x04
	// CommandAddReact adds a reaction to a stored message.
	CommandAddReact Command = 0x05
	// CommandRmReact removes a reaction from a stored message.
	CommandRmReact Command = 0x06
	// CommandLastID reports the highest stored message id.
	CommandLastID Command = 0x07

	commandMax = CommandLastID
)

// Valid reports whether c is a known command value.
func (c Command) Valid() bool {
	return c <= commandMax
}

func (c Command) String() string {
	switch c {
	case CommandMessage:
		return "message"
	case CommandHelloWorld:
		return "hello_world"
	case CommandWelcome:
		return "welcome"
	case CommandGoodBye:
		return "good_bye"
	case CommandConnNb:
		return "conn_nb"
	case CommandAddReact:
		return "add_react"
	case CommandRmReact:
		return "rm_react"
	case CommandLastID:
		return "last_id"
	default:
		return fmt.Sprintf("command(%#x)", byte(c))
	}
}

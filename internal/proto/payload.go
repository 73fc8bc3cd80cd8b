package proto

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// HomeReceiver addresses every connected client instead of a single user.
const HomeReceiver = "home"

// ErrBadPayload is returned when a payload does not split into the expected
// colon-separated fields.
var ErrBadPayload = errors.New("proto: malformed payload")

// ChatPayload is the content of a Message frame:
// "sender:receiver:text" with an optional trailing ":replyTo" id.
type ChatPayload struct {
	Sender   string
	Receiver string
	Text     string
	ReplyTo  int64
}

// ParseChat splits a Message payload. Sender and receiver have surrounding
// whitespace stripped, matching how the server keys its username index.
func ParseChat(payload string) (ChatPayload, error) {
	parts := strings.Split(payload, ":")
	if len(parts) < 3 {
		return ChatPayload{}, ErrBadPayload
	}

	p := ChatPayload{
		Sender:   strings.ReplaceAll(parts[0], " ", ""),
		Receiver: strings.ReplaceAll(parts[1], " ", ""),
		Text:     parts[2],
	}
	if len(parts) == 4 {
		id, err := strconv.ParseInt(parts[3], 10, 64)
		if err != nil {
			return ChatPayload{}, fmt.Errorf("%w: reply id %q", ErrBadPayload, parts[3])
		}
		p.ReplyTo = id
	}
	return p, nil
}

// Addressing extracts just the sender and receiver fields from any routed
// payload, without requiring the rest to parse.
func Addressing(payload string) (sender, receiver string, err error) {
	parts := strings.SplitN(payload, ":", 3)
	if len(parts) < 2 {
		return "", "", ErrBadPayload
	}
	sender = strings.ReplaceAll(parts[0], " ", "")
	receiver = strings.ReplaceAll(parts[1], " ", "")
	return sender, receiver, nil
}

// ReactionPayload is the content of an AddReact or RmReact frame:
// "sender:receiver:messageID;count".
type ReactionPayload struct {
	Sender    string
	Receiver  string
	MessageID int64
	Count     int
}

// ParseReaction splits a reaction payload.
func ParseReaction(payload string) (ReactionPayload, error) {
	parts := strings.Split(payload, ":")
	if len(parts) < 3 {
		return ReactionPayload{}, ErrBadPayload
	}

	fields := strings.SplitN(parts[2], ";", 2)
	if len(fields) != 2 {
		return ReactionPayload{}, fmt.Errorf("%w: reaction body %q", ErrBadPayload, parts[2])
	}
	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return ReactionPayload{}, fmt.Errorf("%w: message id %q", ErrBadPayload, fields[0])
	}
	count, err := strconv.Atoi(fields[1])
	if err != nil {
		return ReactionPayload{}, fmt.Errorf("%w: reaction count %q", ErrBadPayload, fields[1])
	}

	return ReactionPayload{
		Sender:    strings.ReplaceAll(parts[0], " ", ""),
		Receiver:  strings.ReplaceAll(parts[1], " ", ""),
		MessageID: id,
		Count:     count,
	}, nil
}

// WithMessageID folds a freshly assigned storage id in front of a payload, the
// shape clients use to correlate echoes with stored messages.
func WithMessageID(id int64, payload string) string {
	return strconv.FormatInt(id, 10) + ":" + payload
}

package core

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/mdelcroix/courier/internal/proto"
	"github.com/mdelcroix/courier/internal/store"
)

// Hub owns all connection state: the set of live clients and the
// username index bound from each client's first routed frame. A single
// goroutine (Run) serializes every mutation, so none of it is locked.
type Hub struct {
	store store.MessageStore // nil disables persistence
	log   *zerolog.Logger

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundCommand
	done       chan struct{}

	clients map[*Client]struct{}
	byName  map[string]*Client
}

type inboundCommand struct {
	client *Client
	cmd    *Command
}

// NewHub creates a hub. The message store may be nil, in which case messages
// are routed but not persisted.
func NewHub(st store.MessageStore, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		store:      st,
		log:        logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundCommand),
		done:       make(chan struct{}),
		clients:    make(map[*Client]struct{}),
		byName:     make(map[string]*Client),
	}
}

// Run processes registrations and commands until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.addClient(ctx, c)
		case c := <-h.unregister:
			h.removeClient(c)
		case in := <-h.inbound:
			h.route(ctx, in.client, in.cmd)
		case <-ctx.Done():
			return
		}
	}
}

// RegisterClient adds a client to the hub and starts pumping its commands.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		return
	}
	go h.pump(c)
}

// UnregisterClient removes a client. The caller closes c.Commands afterwards
// to stop the pump.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) pump(c *Client) {
	for cmd := range c.Commands {
		select {
		case h.inbound <- inboundCommand{client: c, cmd: cmd}:
		case <-h.done:
			return
		}
	}
}

func (h *Hub) addClient(ctx context.Context, c *Client) {
	h.clients[c] = struct{}{}
	h.log.Debug().Str("client_id", c.ID).Msg("client registered")

	h.sendEvent(c, &Event{
		Kind:  EventGreeting,
		Frame: proto.ServerFrame(proto.CommandHelloWorld, "hello"),
	})

	if h.store != nil {
		if lastID, err := h.store.LastMessageID(ctx); err != nil {
			h.log.Warn().Err(err).Msg("failed to read last message id")
		} else {
			h.sendEvent(c, &Event{
				Kind:   EventLastID,
				LastID: lastID,
				Frame:  proto.ServerFrame(proto.CommandLastID, strconv.FormatInt(lastID, 10)),
			})
		}
	}

	h.broadcastConnCount()
}

func (h *Hub) removeClient(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)

	if c.Username != "" && h.byName[c.Username] == c {
		delete(h.byName, c.Username)
		h.broadcast(&Event{
			Kind:  EventGoodBye,
			User:  c.Username,
			Frame: proto.ServerFrame(proto.CommandGoodBye, c.Username),
		})
	}
	h.log.Debug().Str("client_id", c.ID).Str("username", c.Username).Msg("client unregistered")

	h.broadcastConnCount()
}

// route implements the messenger's delivery rules: bind the sender's username
// to its connection, persist what needs persisting, then fan out to the home
// feed or deliver to the addressed user with an echo back to the sender.
func (h *Hub) route(ctx context.Context, origin *Client, cmd *Command) {
	payload := cmd.Frame.Payload

	sender, receiver, err := proto.Addressing(payload)
	if err != nil {
		h.sendEvent(origin, errorEvent(ErrCodeBadPayload, err.Error()))
		return
	}

	h.bindUsername(origin, sender)

	var ev *Event
	switch cmd.Kind {
	case CommandBind:
		return

	case CommandSendMessage:
		chat, err := proto.ParseChat(payload)
		if err != nil {
			h.sendEvent(origin, errorEvent(ErrCodeBadPayload, err.Error()))
			return
		}
		msg := store.Message{
			Sender:   chat.Sender,
			Receiver: chat.Receiver,
			Body:     chat.Text,
		}
		if chat.ReplyTo != 0 {
			replyTo := chat.ReplyTo
			msg.ReplyTo = &replyTo
		}
		if h.store != nil {
			if err := h.store.SaveMessage(ctx, &msg); err != nil {
				h.log.Error().Err(err).Msg("failed to persist message")
				h.sendEvent(origin, errorEvent(ErrCodeStoreFailure, "message not stored"))
				return
			}
			payload = proto.WithMessageID(msg.ID, payload)
		}
		ev = &Event{
			Kind:    EventChatMessage,
			Frame:   proto.Frame{Command: cmd.Frame.Command, Payload: payload},
			Message: msg,
		}

	case CommandReact:
		react, err := proto.ParseReaction(payload)
		if err != nil {
			h.sendEvent(origin, errorEvent(ErrCodeBadPayload, err.Error()))
			return
		}
		if h.store != nil {
			if err := h.store.UpdateReaction(ctx, react.MessageID, react.Count); err != nil {
				h.log.Error().Err(err).Int64("message_id", react.MessageID).
					Msg("failed to update reaction")
				h.sendEvent(origin, errorEvent(ErrCodeStoreFailure, "reaction not stored"))
				return
			}
		}
		ev = &Event{Kind: EventReaction, Frame: cmd.Frame}

	default:
		h.sendEvent(origin, errorEvent(ErrCodeBadPayload, "unknown command"))
		return
	}

	if receiver == proto.HomeReceiver {
		h.broadcast(ev)
		return
	}
	if target, ok := h.byName[receiver]; ok && target != origin {
		h.sendEvent(target, ev)
	}
	// The sender gets the frame back as its delivery confirmation.
	h.sendEvent(origin, ev)
}

// bindUsername indexes the connection under the sender's name. "home" is the
// broadcast address and is never a username.
func (h *Hub) bindUsername(c *Client, sender string) {
	if sender == "" || sender == proto.HomeReceiver || c.Username == sender {
		return
	}
	if c.Username != "" && h.byName[c.Username] == c {
		delete(h.byName, c.Username)
	}
	c.Username = sender
	h.byName[sender] = c
	h.sendEvent(c, &Event{
		Kind:  EventWelcome,
		User:  sender,
		Frame: proto.ServerFrame(proto.CommandWelcome, sender),
	})
}

func (h *Hub) broadcastConnCount() {
	count := len(h.clients)
	h.broadcast(&Event{
		Kind:  EventConnCount,
		Count: count,
		Frame: proto.ServerFrame(proto.CommandConnNb, strconv.Itoa(count)),
	})
}

func (h *Hub) broadcast(ev *Event) {
	for c := range h.clients {
		h.sendEvent(c, ev)
	}
}

func (h *Hub) sendEvent(c *Client, ev *Event) {
	select {
	case c.Events <- ev:
	default:
		// Drop if slow consumer.
		h.log.Debug().Str("client_id", c.ID).Msg("dropped event for slow client")
	}
}

func errorEvent(code, msg string) *Event {
	return &Event{Kind: EventError, Error: coreError(code, msg)}
}

package core

// Client is a live connection as seen by the hub. Username starts empty and is
// bound by the hub from the sender field of the client's first routed frame;
// only the hub goroutine touches it.
type Client struct {
	ID       string
	Username string
	Commands chan *Command
	Events   chan *Event
}

// NewClient constructs a client with initialized channels.
func NewClient(id string) *Client {
	return &Client{
		ID:       id,
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, 8),
	}
}

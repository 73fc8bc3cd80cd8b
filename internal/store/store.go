package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// User represents a registered account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsConnected  bool
	Avatar       []byte
	CreatedAt    time.Time
}

// Message represents a persisted chat message. Receiver is a username or
// "home" for the shared feed.
type Message struct {
	ID        int64
	Sender    string
	Receiver  string
	Body      string
	ReplyTo   *int64
	Reactions int
	IsRead    bool
	CreatedAt time.Time
}

// UserStore handles account persistence.
type UserStore interface {
	// CreateUser creates a new user with a hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// SetConnected flips the online flag for a user.
	SetConnected(ctx context.Context, username string, connected bool) error

	// UpdateAvatar replaces the stored avatar picture.
	UpdateAvatar(ctx context.Context, username string, avatar []byte) error

	// GetAvatar returns the stored avatar picture.
	GetAvatar(ctx context.Context, username string) ([]byte, error)

	// ListUsernames returns every registered username.
	ListUsernames(ctx context.Context) ([]string, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message and fills in its assigned ID.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListMessages retrieves stored messages, oldest first. If beforeID is
	// non-nil only messages older than that id are returned. Limit bounds
	// the result size; zero means no bound.
	ListMessages(ctx context.Context, limit int, beforeID *int64) ([]*Message, error)

	// UpdateReaction sets the reaction count on a message.
	UpdateReaction(ctx context.Context, messageID int64, count int) error

	// MarkRead marks every message between sender and receiver as read.
	MarkRead(ctx context.Context, sender, receiver string) error

	// LastMessageID returns the highest assigned message id, 0 when empty.
	LastMessageID(ctx context.Context) (int64, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}

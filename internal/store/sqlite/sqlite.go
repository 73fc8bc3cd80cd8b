package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mdelcroix/courier/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens (and if necessary creates) the database at dbPath and applies the
// schema.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with a hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash)
		VALUES (?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.getUserByID(ctx, id)
}

func (s *SQLiteStore) getUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, is_connected, created_at
		FROM users
		WHERE id = ?
	`
	return scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, is_connected, created_at
		FROM users
		WHERE username = ?
	`
	return scanUser(s.db.QueryRowContext(ctx, query, username))
}

func scanUser(row *sql.Row) (*store.User, error) {
	var u store.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsConnected, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// SetConnected flips the online flag for a user.
func (s *SQLiteStore) SetConnected(ctx context.Context, username string, connected bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_connected = ? WHERE username = ?`, connected, username)
	if err != nil {
		return fmt.Errorf("update is_connected: %w", err)
	}
	return requireRows(result)
}

// UpdateAvatar replaces the stored avatar picture.
func (s *SQLiteStore) UpdateAvatar(ctx context.Context, username string, avatar []byte) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET avatar = ? WHERE username = ?`, avatar, username)
	if err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}
	return requireRows(result)
}

// GetAvatar returns the stored avatar picture.
func (s *SQLiteStore) GetAvatar(ctx context.Context, username string) ([]byte, error) {
	var avatar []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT avatar FROM users WHERE username = ?`, username).Scan(&avatar)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select avatar: %w", err)
	}
	return avatar, nil
}

// ListUsernames returns every registered username.
func (s *SQLiteStore) ListUsernames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT username FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("select usernames: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan username: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ==== MessageStore implementation ====

// SaveMessage persists a message and fills in its assigned ID.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	query := `
		INSERT INTO messages (sender, receiver, body, reply_to, reactions, is_read)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		msg.Sender, msg.Receiver, msg.Body, msg.ReplyTo, msg.Reactions, msg.IsRead)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	msg.ID = id
	return nil
}

// ListMessages retrieves stored messages, oldest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, limit int, beforeID *int64) ([]*store.Message, error) {
	query := `
		SELECT id, sender, receiver, body, reply_to, reactions, is_read, created_at
		FROM messages
	`
	args := []any{}
	if beforeID != nil {
		query += ` WHERE id < ?`
		args = append(args, *beforeID)
	}
	query += ` ORDER BY id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	defer rows.Close()

	msgs := []*store.Message{}
	for rows.Next() {
		var m store.Message
		if err := rows.Scan(&m.ID, &m.Sender, &m.Receiver, &m.Body,
			&m.ReplyTo, &m.Reactions, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

// UpdateReaction sets the reaction count on a message.
func (s *SQLiteStore) UpdateReaction(ctx context.Context, messageID int64, count int) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE messages SET reactions = ? WHERE id = ?`, count, messageID)
	if err != nil {
		return fmt.Errorf("update reactions: %w", err)
	}
	return requireRows(result)
}

// MarkRead marks every message between sender and receiver as read.
func (s *SQLiteStore) MarkRead(ctx context.Context, sender, receiver string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE messages SET is_read = 1 WHERE sender = ? AND receiver = ?`,
		sender, receiver)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// LastMessageID returns the highest assigned message id, 0 when empty.
func (s *SQLiteStore) LastMessageID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(id) FROM messages`).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("select max id: %w", err)
	}
	return id.Int64, nil
}

func requireRows(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

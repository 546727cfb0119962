// Package store persists user accounts and the durable message log in
// sqlite. It owns all persisted message state; callers only trigger status
// transitions.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"
)

// Delivery statuses of a message. A message moves sent -> delivered -> read,
// or sent -> read when the receiver was offline at send time. "read" is
// terminal.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

var (
	// ErrUserExists is returned when registering an already-taken username.
	ErrUserExists = errors.New("username already taken")
	// ErrInvalidCredentials is returned on unknown username or password
	// mismatch. The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Message is one row of the durable message log.
type Message struct {
	ID        int64  `json:"id"`
	Sender    string `json:"sender"`
	Receiver  string `json:"receiver"`
	Text      string `json:"text"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// Store wraps the sqlite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at path and ensures
// the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("store: opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sender TEXT NOT NULL,
			receiver TEXT NOT NULL,
			text TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'sent',
			timestamp INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender, receiver, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_receiver_status ON messages(receiver, sender, status)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("store: initializing schema: %w", err)
		}
	}
	return nil
}

// CreateUser registers a new user with a bcrypt-hashed password.
func (s *Store) CreateUser(ctx context.Context, username, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("store: hashing password: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO users (username, password_hash) VALUES (?, ?)",
		username, string(hashed),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrUserExists
		}
		return fmt.Errorf("store: creating user: %w", err)
	}
	return nil
}

// Authenticate verifies a username/password pair. It returns
// ErrInvalidCredentials for unknown users and wrong passwords alike.
func (s *Store) Authenticate(ctx context.Context, username, password string) error {
	var hashed string
	err := s.db.QueryRowContext(ctx,
		"SELECT password_hash FROM users WHERE username = ?", username,
	).Scan(&hashed)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return fmt.Errorf("store: looking up user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// ListUsers returns every registered username except exclude, ordered
// alphabetically.
func (s *Store) ListUsers(ctx context.Context, exclude string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT username FROM users WHERE username != ? ORDER BY username", exclude,
	)
	if err != nil {
		return nil, fmt.Errorf("store: listing users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, err
		}
		users = append(users, username)
	}
	return users, rows.Err()
}

// AppendMessage persists a new message with status "sent" and returns its
// assigned id.
func (s *Store) AppendMessage(ctx context.Context, sender, receiver, text string, timestamp int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (sender, receiver, text, status, timestamp) VALUES (?, ?, ?, ?, ?)",
		sender, receiver, text, StatusSent, timestamp,
	)
	if err != nil {
		return 0, fmt.Errorf("store: appending message: %w", err)
	}
	return res.LastInsertId()
}

// UpdateMessageStatus sets the status of a single message.
func (s *Store) UpdateMessageStatus(ctx context.Context, id int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE messages SET status = ? WHERE id = ?", status, id,
	)
	if err != nil {
		return fmt.Errorf("store: updating message status: %w", err)
	}
	return nil
}

// MarkConversationRead bulk-transitions every message from sender to
// receiver that is not yet read, and reports how many rows changed. The
// single UPDATE statement makes the transition atomic with respect to
// concurrent sends.
func (s *Store) MarkConversationRead(ctx context.Context, receiver, sender string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE messages SET status = ? WHERE receiver = ? AND sender = ? AND status != ?",
		StatusRead, receiver, sender, StatusRead,
	)
	if err != nil {
		return 0, fmt.Errorf("store: marking conversation read: %w", err)
	}
	return res.RowsAffected()
}

// History returns every message between two users ordered by timestamp
// ascending, with the insertion id as tie-break so repeated queries see a
// stable total order.
func (s *Store) History(ctx context.Context, userA, userB string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sender, receiver, text, status, timestamp
		 FROM messages
		 WHERE (sender = ? AND receiver = ?) OR (sender = ? AND receiver = ?)
		 ORDER BY timestamp ASC, id ASC`,
		userA, userB, userB, userA,
	)
	if err != nil {
		return nil, fmt.Errorf("store: querying history: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Sender, &m.Receiver, &m.Text, &m.Status, &m.Timestamp); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

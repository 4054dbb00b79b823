package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pingchat/pingchat-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &SQLiteStore{db: db}, nil
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema without migrations.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user.
func (s *SQLiteStore) CreateUser(ctx context.Context, username string, isOnline bool) (*store.User, error) {
	query := `
		INSERT INTO users (username, is_online)
		VALUES (?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, isOnline)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.FindUserByID(ctx, id)
}

// FindUserByID retrieves a user by ID.
func (s *SQLiteStore) FindUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, username, is_online, created_at
		FROM users
		WHERE id = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.IsOnline,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// FindUserByUsername retrieves a user by username.
func (s *SQLiteStore) FindUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, is_online, created_at
		FROM users
		WHERE username = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.IsOnline,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// UpdateUserOnlineFlag flips the persisted presence flag.
func (s *SQLiteStore) UpdateUserOnlineFlag(ctx context.Context, id int64, isOnline bool) error {
	query := `
		UPDATE users SET is_online = ?
		WHERE id = ?
	`
	if _, err := s.db.ExecContext(ctx, query, isOnline, id); err != nil {
		return fmt.Errorf("update online flag: %w", err)
	}

	return nil
}

// ==== RoomStore implementation ====

// PairKey builds the canonical unordered-pair key for a direct room.
func PairKey(userA, userB int64) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("dm:%d:%d", userA, userB)
}

// FindOrCreateRoom resolves the room for an unordered user pair,
// creating it at most once. The pair_key UNIQUE constraint plus the
// conflict-tolerant insert serialize concurrent first messages.
func (s *SQLiteStore) FindOrCreateRoom(ctx context.Context, userA, userB int64) (*store.Room, error) {
	pairKey := PairKey(userA, userB)

	room, err := s.getRoomByPairKey(ctx, pairKey)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check existing room: %w", err)
	}

	query := `
		INSERT INTO rooms (sender_id, receiver_id, pair_key)
		VALUES (?, ?, ?)
		ON CONFLICT(pair_key) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, userA, userB, pairKey); err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}

	// Re-read by key: on conflict the insert was a no-op and the row
	// belongs to the concurrent winner.
	return s.getRoomByPairKey(ctx, pairKey)
}

func (s *SQLiteStore) getRoomByPairKey(ctx context.Context, pairKey string) (*store.Room, error) {
	query := `
		SELECT id, sender_id, receiver_id, pair_key, created_at
		FROM rooms
		WHERE pair_key = ?
	`
	var room store.Room
	err := s.db.QueryRowContext(ctx, query, pairKey).Scan(
		&room.ID,
		&room.SenderID,
		&room.ReceiverID,
		&room.PairKey,
		&room.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query room: %w", err)
	}

	return &room, nil
}

// ListRoomsForUser returns every room the user participates in.
func (s *SQLiteStore) ListRoomsForUser(ctx context.Context, userID int64) ([]*store.Room, error) {
	query := `
		SELECT id, sender_id, receiver_id, pair_key, created_at
		FROM rooms
		WHERE sender_id = ? OR receiver_id = ?
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*store.Room
	for rows.Next() {
		var room store.Room
		if err := rows.Scan(&room.ID, &room.SenderID, &room.ReceiverID, &room.PairKey, &room.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, &room)
	}

	return rooms, rows.Err()
}

// ==== MessageStore implementation ====

// CreateMessage persists a message and fills in its ID and timestamp.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *store.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO messages (content, room_id, sender_id, receiver_id, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		msg.Content, msg.RoomID, msg.SenderID, msg.ReceiverID, msg.IsRead, msg.CreatedAt)
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

// ListMessagesForRoom returns up to limit most recent messages of a
// room, in ascending timestamp order.
func (s *SQLiteStore) ListMessagesForRoom(ctx context.Context, roomID int64, limit int) ([]*store.Message, error) {
	query := `
		SELECT id, content, room_id, sender_id, receiver_id, is_read, created_at
		FROM messages
		WHERE room_id = ?
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	// Reverse to get chronological order.
	for i := 0; i < len(messages)/2; i++ {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}

	return messages, rows.Err()
}

// ListMessagesForPair returns all messages exchanged between two users
// regardless of direction, in ascending timestamp order.
func (s *SQLiteStore) ListMessagesForPair(ctx context.Context, userA, userB int64) ([]*store.Message, error) {
	query := `
		SELECT id, content, room_id, sender_id, receiver_id, is_read, created_at
		FROM messages
		WHERE (sender_id = ? AND receiver_id = ?)
		   OR (sender_id = ? AND receiver_id = ?)
		ORDER BY id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userA, userB, userB, userA)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	return messages, rows.Err()
}

func scanMessages(rows *sql.Rows) ([]*store.Message, error) {
	var messages []*store.Message
	for rows.Next() {
		var msg store.Message
		if err := rows.Scan(&msg.ID, &msg.Content, &msg.RoomID, &msg.SenderID, &msg.ReceiverID, &msg.IsRead, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	return messages, nil
}

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
// An absent user, room or message is a normal outcome for callers,
// never a reason to drop a connection.
var ErrNotFound = errors.New("not found")

// User is a chat participant. Username is unique and immutable once
// created; IsOnline is the last-known presence flag kept alongside the
// registry so a cold registry still has a usable roster hint.
type User struct {
	ID        int64
	Username  string
	IsOnline  bool
	CreatedAt time.Time
}

// Room is one two-party conversation. SenderID/ReceiverID record who
// the pair was first created for; lookup is always unordered. PairKey
// is "dm:{minUserID}:{maxUserID}" and carries a uniqueness constraint
// so concurrent first messages cannot create two rooms.
type Room struct {
	ID         int64
	SenderID   int64
	ReceiverID int64
	PairKey    string
	CreatedAt  time.Time
}

// Message is a persisted chat message. Immutable once created.
type Message struct {
	ID         int64
	Content    string
	RoomID     int64
	SenderID   int64
	ReceiverID int64
	IsRead     bool
	CreatedAt  time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a user with the given username and online flag.
	CreateUser(ctx context.Context, username string, isOnline bool) (*User, error)

	// FindUserByUsername retrieves a user by username, ErrNotFound if absent.
	FindUserByUsername(ctx context.Context, username string) (*User, error)

	// FindUserByID retrieves a user by ID, ErrNotFound if absent.
	FindUserByID(ctx context.Context, id int64) (*User, error)

	// UpdateUserOnlineFlag flips the persisted presence flag.
	UpdateUserOnlineFlag(ctx context.Context, id int64, isOnline bool) error
}

// RoomStore handles room persistence and pair resolution.
type RoomStore interface {
	// FindOrCreateRoom resolves the room for an unordered user pair,
	// creating it at most once. Safe under concurrent first messages.
	FindOrCreateRoom(ctx context.Context, userA, userB int64) (*Room, error)

	// ListRoomsForUser returns every room the user participates in.
	ListRoomsForUser(ctx context.Context, userID int64) ([]*Room, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// CreateMessage persists a message and fills in its ID and timestamp.
	CreateMessage(ctx context.Context, msg *Message) error

	// ListMessagesForRoom returns up to limit most recent messages of a
	// room, in ascending timestamp order.
	ListMessagesForRoom(ctx context.Context, roomID int64, limit int) ([]*Message, error)

	// ListMessagesForPair returns all messages exchanged between two
	// users regardless of direction, in ascending timestamp order.
	ListMessagesForPair(ctx context.Context, userA, userB int64) ([]*Message, error)
}

// Store aggregates all storage interfaces. The coordinator never
// composes queries itself; joins and filters live behind this contract.
type Store interface {
	UserStore
	RoomStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}

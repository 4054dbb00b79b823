// Package presence tracks which users are currently connected and
// which connection belongs to which user. The registry is injected so
// a single-instance deployment can keep it in process memory while a
// multi-instance deployment shares one Redis-backed roster.
package presence

import "context"

// Entry is one online user in the roster.
type Entry struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// Registry is the shared presence store. All operations are point
// reads/writes; no multi-key transaction is required. A connection ID
// maps to at most one user; rebinding the same user from a second
// connection is last-write-wins.
type Registry interface {
	// SetOnline adds the user to the online roster.
	SetOnline(ctx context.Context, userID int64, username string) error

	// RemoveOnline removes the user from the online roster.
	RemoveOnline(ctx context.Context, userID int64) error

	// BindConnection records which user owns a connection.
	BindConnection(ctx context.Context, connID string, userID int64) error

	// UnbindConnection removes a connection ownership record.
	UnbindConnection(ctx context.Context, connID string) error

	// UserForConnection resolves the owning user of a connection.
	// The second return is false when the connection is unknown.
	UserForConnection(ctx context.Context, connID string) (int64, bool, error)

	// ListOnline returns the roster ordered by username.
	ListOnline(ctx context.Context) ([]Entry, error)

	// ConnectionForUsername resolves the live connection of an online
	// user via the reverse index. The second return is false when the
	// user is offline or unknown.
	ConnectionForUsername(ctx context.Context, username string) (string, bool, error)

	// Close releases registry resources.
	Close() error
}

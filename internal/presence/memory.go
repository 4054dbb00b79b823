package presence

import (
	"context"
	"sort"
	"sync"
)

// MemoryRegistry is an in-process Registry. Presence is instance-local:
// with more than one coordinator the roster is incomplete, so this
// implementation suits single-instance deployments and tests.
type MemoryRegistry struct {
	mu sync.RWMutex

	online map[int64]string // userID -> username
	conns  map[string]int64 // connID -> userID
	names  map[string]int64 // username -> userID (reverse index)
	byUser map[int64]string // userID -> connID (last connection wins)
}

// NewMemoryRegistry creates an empty in-process registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		online: make(map[int64]string),
		conns:  make(map[string]int64),
		names:  make(map[string]int64),
		byUser: make(map[int64]string),
	}
}

// SetOnline adds the user to the online roster.
func (m *MemoryRegistry) SetOnline(_ context.Context, userID int64, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.online[userID] = username
	m.names[username] = userID
	return nil
}

// RemoveOnline removes the user from the online roster.
func (m *MemoryRegistry) RemoveOnline(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if username, ok := m.online[userID]; ok {
		delete(m.names, username)
	}
	delete(m.online, userID)
	delete(m.byUser, userID)
	return nil
}

// BindConnection records which user owns a connection.
func (m *MemoryRegistry) BindConnection(_ context.Context, connID string, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.conns[connID] = userID
	m.byUser[userID] = connID
	return nil
}

// UnbindConnection removes a connection ownership record.
func (m *MemoryRegistry) UnbindConnection(_ context.Context, connID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if userID, ok := m.conns[connID]; ok {
		// Only drop the user binding if it still points at this
		// connection; a newer connection may have taken over.
		if m.byUser[userID] == connID {
			delete(m.byUser, userID)
		}
	}
	delete(m.conns, connID)
	return nil
}

// UserForConnection resolves the owning user of a connection.
func (m *MemoryRegistry) UserForConnection(_ context.Context, connID string) (int64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	userID, ok := m.conns[connID]
	return userID, ok, nil
}

// ListOnline returns the roster ordered by username.
func (m *MemoryRegistry) ListOnline(_ context.Context) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]Entry, 0, len(m.online))
	for userID, username := range m.online {
		entries = append(entries, Entry{UserID: userID, Username: username})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Username < entries[j].Username
	})
	return entries, nil
}

// ConnectionForUsername resolves the live connection of an online user.
func (m *MemoryRegistry) ConnectionForUsername(_ context.Context, username string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	userID, ok := m.names[username]
	if !ok {
		return "", false, nil
	}
	connID, ok := m.byUser[userID]
	return connID, ok, nil
}

// Close is a no-op for the in-process registry.
func (m *MemoryRegistry) Close() error {
	return nil
}

package http

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/pingchat/pingchat-server/internal/core"
	"github.com/pingchat/pingchat-server/internal/presence"
	"github.com/pingchat/pingchat-server/internal/store"
	"github.com/pingchat/pingchat-server/internal/store/sqlite"
)

// createTestStore creates an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", nil)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	if err := st.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	return st
}

// createTestHub wires a running hub over an in-memory store and registry.
func createTestHub(t *testing.T) (*core.Hub, *core.History, presence.Registry) {
	t.Helper()

	st := createTestStore(t)
	registry := presence.NewMemoryRegistry()
	logger := zerolog.Nop()
	history := core.NewHistory(st, 100)
	hub := core.NewHub(st, registry, history, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	return hub, history, registry
}

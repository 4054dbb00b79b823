package core

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pingchat/pingchat-server/internal/presence"
	"github.com/pingchat/pingchat-server/internal/store"
	"github.com/pingchat/pingchat-server/internal/store/sqlite"
)

// newTestStore creates an in-memory SQLite store with schema applied.
func newTestStore(t *testing.T) store.Store {
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

// newTestHub wires a hub with an in-memory store and registry.
func newTestHub(t *testing.T) (*Hub, store.Store, presence.Registry) {
	t.Helper()

	st := newTestStore(t)
	registry := presence.NewMemoryRegistry()
	logger := zerolog.Nop()
	hub := NewHub(st, registry, NewHistory(st, 100), &logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	return hub, st, registry
}

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// mustNoEvent asserts that no event of the given kind arrives within
// the quiet window.
func mustNoEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()

	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event kind %v received: %+v", kind, ev)
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

package core

import (
	"context"
	"testing"

	"github.com/pingchat/pingchat-server/internal/presence"
)

func TestRouteOfflineReceiverDoesNotPersist(t *testing.T) {
	st := newTestStore(t)
	registry := presence.NewMemoryRegistry()
	router := NewRouter(st, registry)
	ctx := context.Background()

	alice, err := st.CreateUser(ctx, "alice", true)
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	bob, err := st.CreateUser(ctx, "bob", false)
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}

	result := router.Route(ctx, alice.ID, "bob", "hi")
	if result.Status != RouteReceiverOffline {
		t.Fatalf("expected receiver-offline, got %v (err=%v)", result.Status, result.Err)
	}

	messages, err := st.ListMessagesForPair(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("list pair messages: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("message persisted for offline receiver")
	}
}

func TestRouteOrphanedRegistryEntryTreatedAsOffline(t *testing.T) {
	st := newTestStore(t)
	registry := presence.NewMemoryRegistry()
	router := NewRouter(st, registry)
	ctx := context.Background()

	alice, err := st.CreateUser(ctx, "alice", true)
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}

	// Registry says "ghost" is online, but no user row exists.
	if err := registry.SetOnline(ctx, 42, "ghost"); err != nil {
		t.Fatalf("set online: %v", err)
	}
	if err := registry.BindConnection(ctx, "conn-ghost", 42); err != nil {
		t.Fatalf("bind connection: %v", err)
	}

	result := router.Route(ctx, alice.ID, "ghost", "hello?")
	if result.Status != RouteReceiverOffline {
		t.Fatalf("expected receiver-offline for orphaned entry, got %v (err=%v)", result.Status, result.Err)
	}
}

func TestRouteDeliveredResolvesConnection(t *testing.T) {
	st := newTestStore(t)
	registry := presence.NewMemoryRegistry()
	router := NewRouter(st, registry)
	ctx := context.Background()

	alice, err := st.CreateUser(ctx, "alice", true)
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	bob, err := st.CreateUser(ctx, "bob", true)
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}
	if err := registry.SetOnline(ctx, bob.ID, "bob"); err != nil {
		t.Fatalf("set online: %v", err)
	}
	if err := registry.BindConnection(ctx, "conn-b", bob.ID); err != nil {
		t.Fatalf("bind connection: %v", err)
	}

	result := router.Route(ctx, alice.ID, "bob", "hi")
	if result.Status != RouteDelivered {
		t.Fatalf("expected delivered, got %v (err=%v)", result.Status, result.Err)
	}
	if result.ReceiverConnID != "conn-b" {
		t.Fatalf("unexpected receiver connection: %q", result.ReceiverConnID)
	}
	if result.Message == nil || result.Message.ID == 0 {
		t.Fatalf("message not persisted: %+v", result.Message)
	}
	if result.Message.IsRead {
		t.Fatalf("new message must start unread")
	}
}

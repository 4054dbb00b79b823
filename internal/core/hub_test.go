package core

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pingchat/pingchat-server/internal/presence"
)

func join(t *testing.T, hub *Hub, c *Client, username string) *Event {
	t.Helper()

	hub.RegisterClient(c)
	c.Commands <- &Command{Kind: CommandJoin, Username: username}
	confirm := mustEvent(t, c.Events, EventJoinConfirmed)
	// Drain the client's own roster broadcast so later assertions see
	// only subsequent changes.
	mustEvent(t, c.Events, EventRosterUpdated)
	return confirm
}

func TestHubJoinConfirmsAndBroadcastsRoster(t *testing.T) {
	hub, _, registry := newTestHub(t)

	alice := NewClient("conn-a")
	confirm := join(t, hub, alice, "alice")

	if confirm.User == nil || confirm.User.Username != "alice" || !confirm.User.IsOnline {
		t.Fatalf("unexpected join user: %+v", confirm.User)
	}
	if len(confirm.Roster) != 1 || confirm.Roster[0].Username != "alice" {
		t.Fatalf("unexpected roster in join reply: %+v", confirm.Roster)
	}

	bob := NewClient("conn-b")
	join(t, hub, bob, "bob")

	// Alice observes bob arriving through the broadcast.
	ev := mustEvent(t, alice.Events, EventRosterUpdated)
	if len(ev.Roster) != 2 {
		t.Fatalf("expected 2 online users, got %+v", ev.Roster)
	}

	entries, err := registry.ListOnline(context.Background())
	if err != nil {
		t.Fatalf("list online: %v", err)
	}
	if len(entries) != 2 || entries[0].Username != "alice" || entries[1].Username != "bob" {
		t.Fatalf("unexpected registry roster: %+v", entries)
	}
}

func TestHubDirectMessageDeliveredAndPersisted(t *testing.T) {
	hub, st, _ := newTestHub(t)

	alice := NewClient("conn-a")
	aliceUser := join(t, hub, alice, "alice").User
	bob := NewClient("conn-b")
	bobUser := join(t, hub, bob, "bob").User

	alice.Commands <- &Command{Kind: CommandSendMessage, Receiver: "bob", Content: "hi"}

	received := mustEvent(t, bob.Events, EventMessageReceived)
	if received.Message.Content != "hi" {
		t.Fatalf("unexpected delivered content: %q", received.Message.Content)
	}
	if received.Message.SenderID != aliceUser.ID || received.Message.ReceiverID != bobUser.ID {
		t.Fatalf("unexpected message endpoints: %+v", received.Message)
	}
	if received.Message.IsRead {
		t.Fatalf("new message must be unread")
	}

	saved := mustEvent(t, alice.Events, EventMessageSaved)
	if saved.Message.ID != received.Message.ID {
		t.Fatalf("ack and delivery refer to different messages")
	}

	// Second message reuses the same room regardless of direction.
	bob.Commands <- &Command{Kind: CommandSendMessage, Receiver: "alice", Content: "hey back"}
	reply := mustEvent(t, alice.Events, EventMessageReceived)
	if reply.Message.RoomID != received.Message.RoomID {
		t.Fatalf("expected room %d reused, got %d", received.Message.RoomID, reply.Message.RoomID)
	}

	messages, err := st.ListMessagesForPair(context.Background(), aliceUser.ID, bobUser.ID)
	if err != nil {
		t.Fatalf("list pair messages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(messages))
	}
}

func TestHubOfflineReceiverMessageIsLost(t *testing.T) {
	// Messages to offline receivers are intentionally neither persisted
	// nor acknowledged. If this test starts failing because queueing
	// was added, the change is deliberate and this assertion must flip.
	hub, st, _ := newTestHub(t)

	alice := NewClient("conn-a")
	aliceUser := join(t, hub, alice, "alice").User

	// Bob exists but is offline.
	bobUser, err := st.CreateUser(context.Background(), "bob", false)
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}

	alice.Commands <- &Command{Kind: CommandSendMessage, Receiver: "bob", Content: "anyone there?"}

	mustNoEvent(t, alice.Events, EventMessageSaved)

	messages, err := st.ListMessagesForPair(context.Background(), aliceUser.ID, bobUser.ID)
	if err != nil {
		t.Fatalf("list pair messages: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("expected no persisted messages, got %d", len(messages))
	}
}

func TestHubDisconnectRemovesFromRoster(t *testing.T) {
	hub, st, registry := newTestHub(t)

	alice := NewClient("conn-a")
	join(t, hub, alice, "alice")
	bob := NewClient("conn-b")
	bobUser := join(t, hub, bob, "bob").User

	// Drain alice's roster update from bob's join.
	mustEvent(t, alice.Events, EventRosterUpdated)

	hub.UnregisterClient(bob)

	ev := mustEvent(t, alice.Events, EventRosterUpdated)
	for _, entry := range ev.Roster {
		if entry.Username == "bob" {
			t.Fatalf("bob still in roster after disconnect: %+v", ev.Roster)
		}
	}

	entries, err := registry.ListOnline(context.Background())
	if err != nil {
		t.Fatalf("list online: %v", err)
	}
	if len(entries) != 1 || entries[0].Username != "alice" {
		t.Fatalf("unexpected registry roster: %+v", entries)
	}

	stored, err := st.FindUserByID(context.Background(), bobUser.ID)
	if err != nil {
		t.Fatalf("find bob: %v", err)
	}
	if stored.IsOnline {
		t.Fatalf("bob's persisted online flag not cleared")
	}
}

func TestHubAnonymousDisconnectHasNoSideEffects(t *testing.T) {
	hub, _, registry := newTestHub(t)

	ghost := NewClient("conn-ghost")
	hub.RegisterClient(ghost)
	hub.UnregisterClient(ghost)

	entries, err := registry.ListOnline(context.Background())
	if err != nil {
		t.Fatalf("list online: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("anonymous disconnect touched the roster: %+v", entries)
	}
}

func TestHubRejectsEventsBeforeIdentify(t *testing.T) {
	hub, st, _ := newTestHub(t)

	alice := NewClient("conn-a")
	aliceUser := join(t, hub, alice, "alice").User

	anon := NewClient("conn-anon")
	hub.RegisterClient(anon)
	anon.Commands <- &Command{Kind: CommandSendMessage, Receiver: "alice", Content: "sneaky"}

	mustNoEvent(t, alice.Events, EventMessageReceived)

	rooms, err := st.ListRoomsForUser(context.Background(), aliceUser.ID)
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	if len(rooms) != 0 {
		t.Fatalf("unidentified sender created a room")
	}
}

func TestHubJoinWithEmptyUsernameErrors(t *testing.T) {
	hub, _, _ := newTestHub(t)

	c := NewClient("conn-a")
	hub.RegisterClient(c)
	c.Commands <- &Command{Kind: CommandJoin}

	ev := mustEvent(t, c.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeBadRequest {
		t.Fatalf("expected bad_request error, got %+v", ev)
	}
}

func TestHubFetchConversation(t *testing.T) {
	hub, _, _ := newTestHub(t)

	alice := NewClient("conn-a")
	join(t, hub, alice, "alice")
	bob := NewClient("conn-b")
	bobUser := join(t, hub, bob, "bob").User

	alice.Commands <- &Command{Kind: CommandSendMessage, Receiver: "bob", Content: "hi"}
	saved := mustEvent(t, alice.Events, EventMessageSaved)

	alice.Commands <- &Command{Kind: CommandFetchConversation, PeerID: bobUser.ID}

	detail := mustEvent(t, alice.Events, EventConversationDetail).Detail
	if detail.PeerID != bobUser.ID || detail.RoomID != saved.Message.RoomID {
		t.Fatalf("unexpected detail: %+v", detail)
	}
	if len(detail.Messages) != 1 || detail.Messages[0].SenderName != "alice" || detail.Messages[0].ReceiverName != "bob" {
		t.Fatalf("unexpected annotated messages: %+v", detail.Messages)
	}
}

func TestHubRejoinDifferentUsernameReleasesOldIdentity(t *testing.T) {
	hub, st, registry := newTestHub(t)

	c := NewClient("conn-1")
	aliceUser := join(t, hub, c, "alice").User

	// The same connection identifies again under another name.
	c.Commands <- &Command{Kind: CommandJoin, Username: "bob"}
	mustEvent(t, c.Events, EventJoinConfirmed)
	mustEvent(t, c.Events, EventRosterUpdated)

	entries, err := registry.ListOnline(context.Background())
	if err != nil {
		t.Fatalf("list online: %v", err)
	}
	if len(entries) != 1 || entries[0].Username != "bob" {
		t.Fatalf("expected only bob online after identity switch, got %+v", entries)
	}
	if _, ok, _ := registry.ConnectionForUsername(context.Background(), "alice"); ok {
		t.Fatalf("alice still resolves to a connection after identity switch")
	}

	stored, err := st.FindUserByID(context.Background(), aliceUser.ID)
	if err != nil {
		t.Fatalf("find alice: %v", err)
	}
	if stored.IsOnline {
		t.Fatalf("alice's persisted online flag not cleared")
	}

	hub.UnregisterClient(c)

	entries, err = registry.ListOnline(context.Background())
	if err != nil {
		t.Fatalf("list online: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("roster not empty after the only connection closed: %+v", entries)
	}
}

func TestHubUnregisterReturnsAfterStop(t *testing.T) {
	st := newTestStore(t)
	registry := presence.NewMemoryRegistry()
	logger := zerolog.Nop()
	hub := NewHub(st, registry, NewHistory(st, 100), &logger)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	c := NewClient("conn-1")
	hub.RegisterClient(c)

	cancel()
	<-hub.stopped

	done := make(chan struct{})
	go func() {
		hub.UnregisterClient(c)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("UnregisterClient blocked after the hub stopped")
	}
}

func TestHubRejoinAfterDisconnect(t *testing.T) {
	hub, _, registry := newTestHub(t)

	first := NewClient("conn-1")
	user := join(t, hub, first, "alice").User
	hub.UnregisterClient(first)

	second := NewClient("conn-2")
	again := join(t, hub, second, "alice").User
	if again.ID != user.ID {
		t.Fatalf("rejoin created a new user: %d != %d", again.ID, user.ID)
	}

	connID, ok, err := registry.ConnectionForUsername(context.Background(), "alice")
	if err != nil || !ok {
		t.Fatalf("expected live connection after rejoin, ok=%v err=%v", ok, err)
	}
	if connID != "conn-2" {
		t.Fatalf("registry points at stale connection %q", connID)
	}
}

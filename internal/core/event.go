package core

import (
	"github.com/pingchat/pingchat-server/internal/presence"
	"github.com/pingchat/pingchat-server/internal/store"
)

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventJoinConfirmed replies to a successful join with the user
	// record, recent conversations and the current roster.
	EventJoinConfirmed EventKind = iota
	// EventRosterUpdated notifies all clients of a roster change.
	EventRosterUpdated
	// EventMessageReceived delivers an inbound message to the receiver.
	EventMessageReceived
	// EventMessageSaved acknowledges a persisted message to the sender.
	EventMessageSaved
	// EventConversationDetail delivers full pair history to the caller.
	EventConversationDetail
	// EventError notifies a client about a domain error.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind          EventKind
	User          *store.User
	Roster        []presence.Entry
	Conversations []Conversation      // EventJoinConfirmed
	Message       *store.Message      // EventMessageReceived, EventMessageSaved
	Detail        *ConversationDetail // EventConversationDetail
	Error         *CoreError
}

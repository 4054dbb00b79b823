package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/pingchat/pingchat-server/internal/presence"
	"github.com/pingchat/pingchat-server/internal/store"
)

// RouteStatus is the outcome of routing one outbound message.
type RouteStatus int

const (
	// RouteDelivered means the message was persisted and a live
	// receiver connection was resolved.
	RouteDelivered RouteStatus = iota
	// RouteReceiverOffline means no live connection was found for the
	// receiver. The message is NOT persisted and no ack is produced;
	// this mirrors the upstream behavior and is asserted by tests so a
	// future store-and-forward change is deliberate.
	RouteReceiverOffline
	// RouteFailed means a registry or persistence error aborted the
	// operation. The event is dropped, the connection stays alive.
	RouteFailed
)

// RouteResult carries the routing outcome back to the lifecycle handler.
type RouteResult struct {
	Status         RouteStatus
	Message        *store.Message
	ReceiverConnID string
	Err            error
}

// Router resolves the receiver's live connection, resolves or creates
// the conversation room, and persists the message.
type Router struct {
	store    store.Store
	registry presence.Registry
}

// NewRouter constructs a message router.
func NewRouter(st store.Store, registry presence.Registry) *Router {
	return &Router{store: st, registry: registry}
}

// Route handles one outbound message from an identified sender.
func (r *Router) Route(ctx context.Context, senderID int64, receiverUsername, content string) RouteResult {
	connID, online, err := r.registry.ConnectionForUsername(ctx, receiverUsername)
	if err != nil {
		return RouteResult{Status: RouteFailed, Err: fmt.Errorf("resolve receiver connection: %w", err)}
	}
	if !online {
		return RouteResult{Status: RouteReceiverOffline}
	}

	receiver, err := r.store.FindUserByUsername(ctx, receiverUsername)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Registry entry without a user row is an orphan; treat it
			// like an offline receiver and let the roster catch up.
			return RouteResult{Status: RouteReceiverOffline}
		}
		return RouteResult{Status: RouteFailed, Err: fmt.Errorf("resolve receiver user: %w", err)}
	}

	room, err := r.store.FindOrCreateRoom(ctx, senderID, receiver.ID)
	if err != nil {
		return RouteResult{Status: RouteFailed, Err: fmt.Errorf("resolve room: %w", err)}
	}

	msg := &store.Message{
		Content:    content,
		RoomID:     room.ID,
		SenderID:   senderID,
		ReceiverID: receiver.ID,
		IsRead:     false,
	}
	if err := r.store.CreateMessage(ctx, msg); err != nil {
		return RouteResult{Status: RouteFailed, Err: fmt.Errorf("persist message: %w", err)}
	}

	return RouteResult{Status: RouteDelivered, Message: msg, ReceiverConnID: connID}
}

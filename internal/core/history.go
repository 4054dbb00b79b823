package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/pingchat/pingchat-server/internal/store"
)

// Conversation is one room of a user's recent history together with
// the counterpart user.
type Conversation struct {
	RoomID   int64
	FriendID int64
	Messages []*store.Message
}

// MessageView is a message annotated with both usernames for client
// convenience.
type MessageView struct {
	*store.Message
	SenderName   string
	ReceiverName string
}

// ConversationDetail is the full history between two users.
type ConversationDetail struct {
	PeerID   int64
	RoomID   int64
	Messages []MessageView
}

// History is the read path over rooms and messages. It is used to
// hydrate a client on join and to answer fetch-conversation requests.
type History struct {
	store store.Store
	limit int
}

// NewHistory constructs the history service. limit caps the number of
// messages returned per room.
func NewHistory(st store.Store, limit int) *History {
	if limit <= 0 {
		limit = 100
	}
	return &History{store: st, limit: limit}
}

// ListConversations returns every room the user participates in with
// up to the configured cap of most recent messages, oldest first.
func (h *History) ListConversations(ctx context.Context, userID int64) ([]Conversation, error) {
	rooms, err := h.store.ListRoomsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	conversations := make([]Conversation, 0, len(rooms))
	for _, room := range rooms {
		messages, err := h.store.ListMessagesForRoom(ctx, room.ID, h.limit)
		if err != nil {
			return nil, fmt.Errorf("list messages for room %d: %w", room.ID, err)
		}

		friendID := room.SenderID
		if friendID == userID {
			friendID = room.ReceiverID
		}

		conversations = append(conversations, Conversation{
			RoomID:   room.ID,
			FriendID: friendID,
			Messages: messages,
		})
	}

	return conversations, nil
}

// GetConversation returns all messages between two users in ascending
// timestamp order, annotated with both usernames. An unknown peer or
// an empty history yields an empty detail, not an error.
func (h *History) GetConversation(ctx context.Context, userID, peerID int64) (*ConversationDetail, error) {
	names := make(map[int64]string, 2)
	for _, id := range []int64{userID, peerID} {
		user, err := h.store.FindUserByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("resolve user %d: %w", id, err)
		}
		names[user.ID] = user.Username
	}

	messages, err := h.store.ListMessagesForPair(ctx, userID, peerID)
	if err != nil {
		return nil, fmt.Errorf("list pair messages: %w", err)
	}

	detail := &ConversationDetail{
		PeerID:   peerID,
		Messages: make([]MessageView, 0, len(messages)),
	}
	for _, msg := range messages {
		detail.Messages = append(detail.Messages, MessageView{
			Message:      msg,
			SenderName:   names[msg.SenderID],
			ReceiverName: names[msg.ReceiverID],
		})
	}
	if len(messages) > 0 {
		detail.RoomID = messages[0].RoomID
	}

	return detail, nil
}

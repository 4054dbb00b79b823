package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoin              = "join"
	InboundTypeSendMessage       = "send_message"
	InboundTypeFetchConversation = "fetch_conversation"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventJoinConfirmed      = "join_confirmed"
	EventRosterUpdated      = "roster_updated"
	EventMessageReceived    = "message_received"
	EventMessageSaved       = "message_saved"
	EventConversationDetail = "conversation_detail"
)

// JoinData announces the client's username.
type JoinData struct {
	Username string `json:"username"`
}

// SendMessageData is a direct message from the client.
type SendMessageData struct {
	Receiver string `json:"receiver"`
	Content  string `json:"content"`
}

// FetchConversationData requests full history with a peer.
type FetchConversationData struct {
	PeerID int64 `json:"peer_id"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// User is the wire representation of a user record.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	IsOnline bool   `json:"is_online"`
}

// OnlineUser is one roster entry.
type OnlineUser struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// Message is the wire representation of a chat message.
type Message struct {
	ID           int64  `json:"id"`
	Content      string `json:"content"`
	RoomID       int64  `json:"room_id"`
	SenderID     int64  `json:"sender_id"`
	ReceiverID   int64  `json:"receiver_id"`
	IsRead       bool   `json:"is_read"`
	TS           int64  `json:"ts"`
	SenderName   string `json:"sender_name,omitempty"`
	ReceiverName string `json:"receiver_name,omitempty"`
}

// Conversation is one room of recent history in the join reply.
type Conversation struct {
	RoomID   int64     `json:"room_id"`
	FriendID int64     `json:"friend_id"`
	Messages []Message `json:"messages"`
}

// EventJoinConfirmedData replies to a successful join.
type EventJoinConfirmedData struct {
	User          User           `json:"user"`
	Conversations []Conversation `json:"conversations"`
	OnlineUsers   []OnlineUser   `json:"online_users"`
}

// EventRosterUpdatedData carries the recomputed roster.
type EventRosterUpdatedData struct {
	OnlineUsers []OnlineUser `json:"online_users"`
}

// EventMessageData carries one message, for delivery and for the
// sender's saved acknowledgment.
type EventMessageData struct {
	Message Message `json:"message"`
}

// EventConversationDetailData carries full pair history.
type EventConversationDetailData struct {
	PeerID   int64     `json:"peer_id"`
	RoomID   int64     `json:"room_id"`
	Messages []Message `json:"messages"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

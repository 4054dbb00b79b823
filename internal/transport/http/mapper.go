package http

import (
	"encoding/json"

	"github.com/pingchat/pingchat-server/internal/core"
	"github.com/pingchat/pingchat-server/internal/presence"
	"github.com/pingchat/pingchat-server/internal/proto"
	"github.com/pingchat/pingchat-server/internal/store"
)

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeJoin:
		var join proto.JoinData
		if err := json.Unmarshal(inbound.Data, &join); err != nil {
			return nil, nil, err
		}
		if join.Username == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "username is required"}, nil
		}
		return &core.Command{
			Kind:     core.CommandJoin,
			Username: join.Username,
		}, nil, nil
	case proto.InboundTypeSendMessage:
		var msg proto.SendMessageData
		if err := json.Unmarshal(inbound.Data, &msg); err != nil {
			return nil, nil, err
		}
		if msg.Receiver == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "receiver is required"}, nil
		}
		if msg.Content == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "content is required"}, nil
		}
		return &core.Command{
			Kind:     core.CommandSendMessage,
			Receiver: msg.Receiver,
			Content:  msg.Content,
		}, nil, nil
	case proto.InboundTypeFetchConversation:
		var fetch proto.FetchConversationData
		if err := json.Unmarshal(inbound.Data, &fetch); err != nil {
			return nil, nil, err
		}
		if fetch.PeerID == 0 {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "peer_id is required"}, nil
		}
		return &core.Command{
			Kind:   core.CommandFetchConversation,
			PeerID: fetch.PeerID,
		}, nil, nil
	default:
		return nil, &proto.Error{Code: core.ErrCodeInvalidMessage, Msg: "unknown message type"}, nil
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventJoinConfirmed:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventJoinConfirmed,
			Data: proto.EventJoinConfirmedData{
				User:          userToProto(event.User),
				Conversations: conversationsToProto(event.Conversations),
				OnlineUsers:   rosterToProto(event.Roster),
			},
		}
	case core.EventRosterUpdated:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventRosterUpdated,
			Data: proto.EventRosterUpdatedData{
				OnlineUsers: rosterToProto(event.Roster),
			},
		}
	case core.EventMessageReceived:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageReceived,
			Data: proto.EventMessageData{
				Message: messageToProto(event.Message),
			},
		}
	case core.EventMessageSaved:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageSaved,
			Data: proto.EventMessageData{
				Message: messageToProto(event.Message),
			},
		}
	case core.EventConversationDetail:
		messages := make([]proto.Message, 0, len(event.Detail.Messages))
		for _, view := range event.Detail.Messages {
			msg := messageToProto(view.Message)
			msg.SenderName = view.SenderName
			msg.ReceiverName = view.ReceiverName
			messages = append(messages, msg)
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventConversationDetail,
			Data: proto.EventConversationDetailData{
				PeerID:   event.Detail.PeerID,
				RoomID:   event.Detail.RoomID,
				Messages: messages,
			},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func userToProto(user *store.User) proto.User {
	if user == nil {
		return proto.User{}
	}
	return proto.User{
		ID:       user.ID,
		Username: user.Username,
		IsOnline: user.IsOnline,
	}
}

func messageToProto(msg *store.Message) proto.Message {
	if msg == nil {
		return proto.Message{}
	}
	return proto.Message{
		ID:         msg.ID,
		Content:    msg.Content,
		RoomID:     msg.RoomID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		IsRead:     msg.IsRead,
		TS:         msg.CreatedAt.Unix(),
	}
}

func rosterToProto(entries []presence.Entry) []proto.OnlineUser {
	users := make([]proto.OnlineUser, 0, len(entries))
	for _, e := range entries {
		users = append(users, proto.OnlineUser{UserID: e.UserID, Username: e.Username})
	}
	return users
}

func conversationsToProto(conversations []core.Conversation) []proto.Conversation {
	out := make([]proto.Conversation, 0, len(conversations))
	for _, conv := range conversations {
		messages := make([]proto.Message, 0, len(conv.Messages))
		for _, msg := range conv.Messages {
			messages = append(messages, messageToProto(msg))
		}
		out = append(out, proto.Conversation{
			RoomID:   conv.RoomID,
			FriendID: conv.FriendID,
			Messages: messages,
		})
	}
	return out
}

package core

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/pingchat/pingchat-server/internal/presence"
	"github.com/pingchat/pingchat-server/internal/store"
)

// Hub owns the per-connection lifecycle and coordinates presence,
// routing and history. All state transitions happen on the single Run
// loop, so a handler body is never preempted between its steps; the
// only shared mutable resource is the injected presence registry.
//
// Failures from the store or the registry are logged and the event is
// dropped. They never terminate a connection or the process.
type Hub struct {
	store    store.Store
	registry presence.Registry
	router   *Router
	history  *History
	log      *zerolog.Logger

	ops     chan hubOp
	stopped chan struct{}      // closed when Run returns
	clients map[string]*Client // connID -> local client
}

type hubOpKind int

const (
	opRegister hubOpKind = iota
	opUnregister
	opCommand
)

type hubOp struct {
	kind   hubOpKind
	client *Client
	cmd    *Command
	done   chan struct{}
}

// NewHub constructs the coordinator hub.
func NewHub(st store.Store, registry presence.Registry, history *History, logger *zerolog.Logger) *Hub {
	return &Hub{
		store:    st,
		registry: registry,
		router:   NewRouter(st, registry),
		history:  history,
		log:      logger,
		ops:      make(chan hubOp, 64),
		stopped:  make(chan struct{}),
		clients:  make(map[string]*Client),
	}
}

// RegisterClient attaches a new anonymous connection to the hub.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.ops <- hubOp{kind: opRegister, client: c}:
	case <-h.stopped:
	}
}

// UnregisterClient detaches a connection and runs disconnect handling.
// It returns after the hub has processed the disconnect, so the caller
// can safely close the client's channels afterwards. Once the hub has
// stopped it returns immediately; connection handlers unwinding during
// shutdown must not hang here.
func (h *Hub) UnregisterClient(c *Client) {
	done := make(chan struct{})
	select {
	case h.ops <- hubOp{kind: opUnregister, client: c, done: done}:
	case <-h.stopped:
		return
	}
	select {
	case <-done:
	case <-h.stopped:
	}
}

// Run processes hub operations until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case op := <-h.ops:
			h.handleOp(ctx, op)
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) handleOp(ctx context.Context, op hubOp) {
	switch op.kind {
	case opRegister:
		h.clients[op.client.ID] = op.client
		// Forward the client's commands onto the hub loop.
		go func(c *Client) {
			for cmd := range c.Commands {
				select {
				case h.ops <- hubOp{kind: opCommand, client: c, cmd: cmd}:
				case <-h.stopped:
					return
				}
			}
		}(op.client)
		h.log.Debug().Str("conn_id", op.client.ID).Msg("client connected")

	case opUnregister:
		h.handleDisconnect(ctx, op.client)
		close(op.done)

	case opCommand:
		h.handleCommand(ctx, op.client, op.cmd)
	}
}

func (h *Hub) handleCommand(ctx context.Context, c *Client, cmd *Command) {
	if _, ok := h.clients[c.ID]; !ok {
		// Command buffered past its own disconnect.
		h.log.Debug().Str("conn_id", c.ID).Msg("dropping command from detached connection")
		return
	}

	if cmd.Kind != CommandJoin && !c.Identified {
		// Reject writes from anonymous connections. A diagnostic is
		// enough; the connection itself stays up.
		h.log.Warn().Str("conn_id", c.ID).Int("kind", int(cmd.Kind)).
			Msg("dropping command from unidentified connection")
		return
	}

	switch cmd.Kind {
	case CommandJoin:
		h.handleJoin(ctx, c, cmd.Username)
	case CommandSendMessage:
		h.handleSendMessage(ctx, c, cmd)
	case CommandFetchConversation:
		h.handleFetchConversation(ctx, c, cmd.PeerID)
	default:
		h.log.Warn().Str("conn_id", c.ID).Int("kind", int(cmd.Kind)).Msg("unknown command")
	}
}

// handleJoin moves a connection from anonymous to identified: the user
// row is created or its online flag refreshed, both registry mappings
// are written, the caller gets its hydration payload and everyone gets
// the new roster. An already-identified connection joining as a
// different user releases its previous identity first, otherwise the
// old roster entry and connection binding would outlive the socket.
func (h *Hub) handleJoin(ctx context.Context, c *Client, username string) {
	if username == "" {
		c.sendEvent(&Event{Kind: EventError, Error: &CoreError{
			Code:    ErrCodeBadRequest,
			Message: "username is required",
		}})
		return
	}

	user, err := h.store.FindUserByUsername(ctx, username)
	switch {
	case errors.Is(err, store.ErrNotFound):
		user, err = h.store.CreateUser(ctx, username, true)
		if err != nil {
			h.log.Error().Err(err).Str("username", username).Msg("join: create user")
			return
		}
	case err != nil:
		h.log.Error().Err(err).Str("username", username).Msg("join: find user")
		return
	default:
		if err := h.store.UpdateUserOnlineFlag(ctx, user.ID, true); err != nil {
			h.log.Error().Err(err).Str("username", username).Msg("join: update online flag")
			return
		}
		user.IsOnline = true
	}

	if c.Identified && c.UserID != user.ID {
		if err := h.store.UpdateUserOnlineFlag(ctx, c.UserID, false); err != nil {
			h.log.Error().Err(err).Int64("user_id", c.UserID).Msg("join: clear old online flag")
		}
		if err := h.registry.RemoveOnline(ctx, c.UserID); err != nil {
			h.log.Error().Err(err).Int64("user_id", c.UserID).Msg("join: remove old online")
		}
		if err := h.registry.UnbindConnection(ctx, c.ID); err != nil {
			h.log.Error().Err(err).Str("conn_id", c.ID).Msg("join: unbind old connection")
		}
		h.log.Info().Str("conn_id", c.ID).Str("old_username", c.Username).
			Str("username", user.Username).Msg("connection switched identity")
	}

	if err := h.registry.SetOnline(ctx, user.ID, user.Username); err != nil {
		h.log.Error().Err(err).Str("username", username).Msg("join: set online")
		return
	}
	if err := h.registry.BindConnection(ctx, c.ID, user.ID); err != nil {
		h.log.Error().Err(err).Str("conn_id", c.ID).Msg("join: bind connection")
		return
	}

	c.UserID = user.ID
	c.Username = user.Username
	c.Identified = true

	conversations, err := h.history.ListConversations(ctx, user.ID)
	if err != nil {
		// Hydration is best-effort; the join itself already succeeded.
		h.log.Error().Err(err).Int64("user_id", user.ID).Msg("join: list conversations")
	}

	roster, err := h.registry.ListOnline(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("join: list online")
	}

	c.sendEvent(&Event{
		Kind:          EventJoinConfirmed,
		User:          user,
		Conversations: conversations,
		Roster:        roster,
	})
	h.broadcastRoster(ctx)

	h.log.Info().Str("conn_id", c.ID).Str("username", user.Username).Msg("client joined")
}

// handleDisconnect runs the Identified -> Disconnected transition. An
// anonymous connection leaves no trace.
func (h *Hub) handleDisconnect(ctx context.Context, c *Client) {
	delete(h.clients, c.ID)

	if !c.Identified {
		h.log.Debug().Str("conn_id", c.ID).Msg("anonymous client disconnected")
		return
	}

	userID, ok, err := h.registry.UserForConnection(ctx, c.ID)
	if err != nil {
		h.log.Error().Err(err).Str("conn_id", c.ID).Msg("disconnect: resolve user")
		return
	}
	if !ok {
		// Binding already gone, e.g. a newer connection took over.
		h.log.Warn().Str("conn_id", c.ID).Msg("disconnect: no registry binding")
		return
	}

	if err := h.store.UpdateUserOnlineFlag(ctx, userID, false); err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("disconnect: update online flag")
	}
	if err := h.registry.RemoveOnline(ctx, userID); err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("disconnect: remove online")
	}
	if err := h.registry.UnbindConnection(ctx, c.ID); err != nil {
		h.log.Error().Err(err).Str("conn_id", c.ID).Msg("disconnect: unbind connection")
	}

	h.broadcastRoster(ctx)
	h.log.Info().Str("conn_id", c.ID).Str("username", c.Username).Msg("client disconnected")
}

func (h *Hub) handleSendMessage(ctx context.Context, c *Client, cmd *Command) {
	result := h.router.Route(ctx, c.UserID, cmd.Receiver, cmd.Content)

	switch result.Status {
	case RouteDelivered:
		if receiver, ok := h.clients[result.ReceiverConnID]; ok {
			receiver.sendEvent(&Event{Kind: EventMessageReceived, Message: result.Message})
		} else {
			// The connection lives on another coordinator instance;
			// the message is persisted, live delivery is skipped here.
			h.log.Debug().Str("conn_id", result.ReceiverConnID).Msg("receiver connection not local")
		}
		c.sendEvent(&Event{Kind: EventMessageSaved, Message: result.Message})

	case RouteReceiverOffline:
		// Offline receiver: nothing persisted, no ack. Kept from the
		// upstream behavior; see the design notes.
		h.log.Info().Str("receiver", cmd.Receiver).Str("sender", c.Username).
			Msg("receiver offline, message dropped")

	case RouteFailed:
		h.log.Error().Err(result.Err).Str("sender", c.Username).Msg("route message")
	}
}

func (h *Hub) handleFetchConversation(ctx context.Context, c *Client, peerID int64) {
	detail, err := h.history.GetConversation(ctx, c.UserID, peerID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", c.UserID).Int64("peer_id", peerID).
			Msg("fetch conversation")
		return
	}
	c.sendEvent(&Event{Kind: EventConversationDetail, Detail: detail})
}

// broadcastRoster recomputes the roster from the registry and pushes it
// to every local connection, identified or not.
func (h *Hub) broadcastRoster(ctx context.Context) {
	roster, err := h.registry.ListOnline(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("broadcast: list online")
		return
	}

	ev := &Event{Kind: EventRosterUpdated, Roster: roster}
	for _, client := range h.clients {
		client.sendEvent(ev)
	}
}

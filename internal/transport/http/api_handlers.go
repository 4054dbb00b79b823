package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pingchat/pingchat-server/internal/core"
	"github.com/pingchat/pingchat-server/internal/presence"
)

// ErrorResponse is the JSON error body of the REST surface.
type ErrorResponse struct {
	Error string `json:"error"`
}

// APIHandlers serves the REST hydration endpoints. They expose the
// same data the websocket join reply carries, for clients that want to
// render before the socket is up.
type APIHandlers struct {
	history  *core.History
	registry presence.Registry
	log      *zerolog.Logger
}

// OnlineUsers returns the current roster from the presence registry.
func (h *APIHandlers) OnlineUsers(c *gin.Context) {
	roster, err := h.registry.ListOnline(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("api: list online")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "presence registry unavailable"})
		return
	}

	users := make([]gin.H, 0, len(roster))
	for _, entry := range roster {
		users = append(users, gin.H{"user_id": entry.UserID, "username": entry.Username})
	}
	c.JSON(http.StatusOK, gin.H{"count": len(users), "users": users})
}

// UserConversations returns every conversation of a user with the
// capped recent message window per room.
func (h *APIHandlers) UserConversations(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
		return
	}

	conversations, err := h.history.ListConversations(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("api: list conversations")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load conversations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversationsToProto(conversations)})
}

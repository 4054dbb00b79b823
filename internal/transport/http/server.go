package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pingchat/pingchat-server/internal/config"
	"github.com/pingchat/pingchat-server/internal/core"
	"github.com/pingchat/pingchat-server/internal/presence"
)

// NewServer builds the HTTP server: websocket endpoint plus a small
// REST surface for health checks and client hydration.
func NewServer(hub *core.Hub, history *core.History, registry presence.Registry, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(LoggerMiddleware(logger), gin.Recovery())

	router.GET("/health", healthHandler)
	router.GET("/ws", gin.WrapH(NewWSHandler(hub, logger)))

	api := &APIHandlers{history: history, registry: registry, log: logger}
	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/users/online", api.OnlineUsers)
		apiGroup.GET("/users/:id/conversations", api.UserConversations)
	}

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}

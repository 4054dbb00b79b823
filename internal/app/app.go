package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pingchat/pingchat-server/internal/config"
	"github.com/pingchat/pingchat-server/internal/core"
	"github.com/pingchat/pingchat-server/internal/presence"
	"github.com/pingchat/pingchat-server/internal/store"
	"github.com/pingchat/pingchat-server/internal/store/sqlite"
	transporthttp "github.com/pingchat/pingchat-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	registry        presence.Registry
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	if err := st.EnsureSchema(context.Background()); err != nil {
		st.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	registry, err := newRegistry(cfg, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	history := core.NewHistory(st, cfg.HistoryLimit)
	hub := core.NewHub(st, registry, history, logger)
	server := transporthttp.NewServer(hub, history, registry, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		registry:        registry,
		log:             logger,
	}, nil
}

// newRegistry selects the presence registry implementation: Redis when
// an address is configured (shared across coordinator instances), the
// in-process registry otherwise (single instance only).
func newRegistry(cfg config.Config, logger *zerolog.Logger) (presence.Registry, error) {
	if cfg.RedisAddr == "" {
		logger.Info().Msg("using in-process presence registry")
		return presence.NewMemoryRegistry(), nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	registry := presence.NewRedisRegistry(client, cfg.RedisPrefix)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := registry.Ping(pingCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.Info().Str("redis_addr", cfg.RedisAddr).Msg("using redis presence registry")
	return registry, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.hub.Run(ctx)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes the store and registry.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
	if a.registry != nil {
		if err := a.registry.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close presence registry")
		}
	}
}

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pingchat/pingchat-server/internal/app"
	"github.com/pingchat/pingchat-server/internal/config"
	"github.com/pingchat/pingchat-server/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		dbPath     string
		redisAddr  string
		logLevel   string
		logFormat  string
	)

	cmd := &cobra.Command{
		Use:   "pingchat-server",
		Short: "Direct-messaging backend with live presence and durable history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := log.New(logLevel, logFormat)

			cfg, path, err := config.Load(logger, configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger.Info().Str("config", path).Msg("configuration loaded")

			// Flags override file and env values.
			if addr != "" {
				cfg.Addr = addr
			}
			if dbPath != "" {
				cfg.DatabasePath = dbPath
			}
			if redisAddr != "" {
				cfg.RedisAddr = redisAddr
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if logFormat != "" {
				cfg.LogFormat = logFormat
			}
			logger = log.New(cfg.LogLevel, cfg.LogFormat)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(cfg, logger)
			if err != nil {
				return err
			}

			logger.Info().Str("addr", cfg.Addr).Msg("starting pingchat server")
			if err := application.Run(ctx); err != nil {
				return fmt.Errorf("server exited: %w", err)
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address")
	cmd.Flags().StringVar(&dbPath, "db", "", "path to the sqlite database")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", "", "redis address for the shared presence registry")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal)")
	cmd.Flags().StringVar(&logFormat, "log-format", "", "log output format (console, json)")

	return cmd
}

package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/udisondev/idlemine/internal/auth"
	"github.com/udisondev/idlemine/internal/config"
	"github.com/udisondev/idlemine/internal/data"
	"github.com/udisondev/idlemine/internal/game/skill"
	"github.com/udisondev/idlemine/internal/gameserver"
)

const statsInterval = time.Minute

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the game server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	setupLogging(cfg.LogLevel)
	slog.Info("idlemine server starting",
		"log_level", cfg.LogLevel,
		"storage", cfg.Storage.Driver,
		"tick_interval", cfg.TickInterval)

	store, closeStore, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	tokens, err := newTokenIssuer(cfg.Auth)
	if err != nil {
		return err
	}
	if cfg.Auth.BotToken == "" && !cfg.Auth.AllowDevLogin {
		slog.Warn("auth.bot_token is empty, telegram logins will be rejected")
	}
	logins := auth.NewTelegramValidator(cfg.Auth.BotToken, cfg.Auth.AllowDevLogin).
		WithMaxAge(cfg.Auth.InitDataMaxAge, nil)

	catalog := data.DefaultCatalog()
	processor := skill.NewProcessor(store, catalog, skill.SystemClock)
	clients := gameserver.NewClientManager(processor, skill.SystemClock, cfg.TickInterval)
	srv := gameserver.NewServer(cfg, processor, clients, tokens, logins, store)

	slog.Info("catalog loaded", "ores", catalog.Len())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting game server", "port", cfg.Port)
		if err := srv.Run(gctx); err != nil {
			return fmt.Errorf("game server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		slog.Info("starting registry stats loop", "interval", statsInterval)
		return clients.RunStatsLoop(gctx, statsInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server stopped: %w", err)
	}
	slog.Info("idlemine server stopped")
	return nil
}

// newTokenIssuer builds the session token issuer.
// Without a configured secret, dev mode signs with a random per-process key.
func newTokenIssuer(cfg config.AuthConfig) (*auth.TokenIssuer, error) {
	secret := []byte(cfg.TokenSecret)
	if len(secret) == 0 {
		if !cfg.AllowDevLogin {
			return nil, errors.New("auth.token_secret is required")
		}
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generating token secret: %w", err)
		}
		slog.Warn("auth.token_secret is empty, using a random key; tokens will not survive restart")
	}

	tokens, err := auth.NewTokenIssuer(secret, cfg.Issuer, cfg.TokenTTL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating token issuer: %w", err)
	}
	return tokens, nil
}

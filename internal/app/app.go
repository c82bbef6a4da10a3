package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinkchat/clinkchat-server/internal/auth"
	"github.com/clinkchat/clinkchat-server/internal/config"
	"github.com/clinkchat/clinkchat-server/internal/core"
	"github.com/clinkchat/clinkchat-server/internal/filter"
	"github.com/clinkchat/clinkchat-server/internal/metrics"
	"github.com/clinkchat/clinkchat-server/internal/preview"
	"github.com/clinkchat/clinkchat-server/internal/store"
	"github.com/clinkchat/clinkchat-server/internal/store/sqlite"
	transporthttp "github.com/clinkchat/clinkchat-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	handoff         *auth.Handoff
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	if err := st.EnsureRoom(context.Background(), cfg.DefaultRoom); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("ensure default room: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      24 * time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)
	handoff := auth.NewHandoff(auth.DefaultHandoffTTL)

	m := metrics.New(cfg.MetricsNamespace)
	previews := preview.NewFetcher(cfg.Chat.PreviewTimeout)

	hub := core.NewHub(cfg, st, handoff, filter.New(filter.DefaultWords), previews, m, logger)
	server := transporthttp.NewServer(hub, authService, handoff, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		handoff:         handoff,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.hub.Run(ctx)
	go a.handoff.Run(ctx)

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

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}

package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/polyglotchat/polyglot-server/internal/auth"
	"github.com/polyglotchat/polyglot-server/internal/config"
	"github.com/polyglotchat/polyglot-server/internal/core"
	"github.com/polyglotchat/polyglot-server/internal/log"
	"github.com/polyglotchat/polyglot-server/internal/store"
	"github.com/polyglotchat/polyglot-server/internal/store/memory"
	"github.com/polyglotchat/polyglot-server/internal/store/postgres"
	"github.com/polyglotchat/polyglot-server/internal/store/sqlite"
	"github.com/polyglotchat/polyglot-server/internal/translate"
	transporthttp "github.com/polyglotchat/polyglot-server/internal/transport/http"
)

const sweepInterval = 5 * time.Minute

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	limiter         *core.Limiter
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.JWTIssuer,
		Audience: cfg.Auth.JWTAudience,
		TTL:      24 * time.Hour,
	}
	verifier := auth.NewJWTVerifier(jwtConfig)

	var provider translate.Provider
	if cfg.Translator.APIKey != "" {
		provider = translate.NewLingoClient(cfg.Translator.APIURL, cfg.Translator.APIKey, cfg.Translator.RequestTimeout)
	} else {
		logger.Warn().Msg("no translator api key configured; translation disabled")
	}
	gateway := translate.NewGateway(provider, translate.Config{
		MaxConcurrent: cfg.Translator.MaxConcurrent,
		MaxRetries:    cfg.Translator.MaxRetries,
		BackoffBase:   cfg.Translator.BackoffBase,
		CacheSize:     cfg.Translator.CacheSize,
		CacheTTL:      cfg.Translator.CacheTTL,
	}, log.Component(logger, "translate"))

	limiter := core.NewLimiter(map[string]core.LimitRule{
		core.ActionJoin:        {Max: cfg.Limits.Join.Max, Window: cfg.Limits.Join.Window},
		core.ActionCreateRoom:  {Max: cfg.Limits.CreateRoom.Max, Window: cfg.Limits.CreateRoom.Window},
		core.ActionSendMessage: {Max: cfg.Limits.SendMessage.Max, Window: cfg.Limits.SendMessage.Window},
		core.ActionReaction:    {Max: cfg.Limits.Reaction.Max, Window: cfg.Limits.Reaction.Window},
		core.ActionTyping:      {Max: cfg.Limits.Typing.Max, Window: cfg.Limits.Typing.Window},
	})

	hub := core.NewHub(st, gateway, core.NewRegistry(), limiter, log.Component(logger, "hub"))
	server := transporthttp.NewServer(hub, verifier, cfg, log.Component(logger, "http"))

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		limiter:         limiter,
		store:           st,
		log:             logger,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (store.Store, error) {
	switch cfg.Database.Driver {
	case "sqlite", "":
		st, err := sqlite.New(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("db_path", cfg.Database.Path).Msg("sqlite store initialized")
		return st, nil
	case "postgres":
		st, err := postgres.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		logger.Info().Msg("postgres store initialized")
		return st, nil
	case "memory":
		logger.Warn().Msg("using in-memory store; data is not persisted")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.hub.Run(ctx)
	a.limiter.StartSweeper(ctx, sweepInterval)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")

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

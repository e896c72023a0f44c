// ABOUTME: Gateway orchestrator wiring the HTTP server, supervisor, and stores
// ABOUTME: Manages route registration and graceful shutdown lifecycle

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/claude-gateway/internal/auth"
	"github.com/2389/claude-gateway/internal/config"
	"github.com/2389/claude-gateway/internal/execx"
	"github.com/2389/claude-gateway/internal/session"
	"github.com/2389/claude-gateway/internal/store"
	"github.com/2389/claude-gateway/internal/supervisor"
)

// Version is the gateway release version reported by /health.
const Version = "1.0.0"

// Gateway coordinates the chat completion API: it owns the process
// supervisor, the session manager, the persistent store, and the HTTP
// server that fronts them.
type Gateway struct {
	config     *config.Config
	supervisor *supervisor.Supervisor
	sessions   *session.Manager
	store      store.Store
	logger     *slog.Logger
	httpServer *http.Server
	limiter    *auth.RateLimiter

	// claudeVersion is resolved once at startup; empty when the binary
	// version could not be determined.
	claudeVersion string
}

// New wires a Gateway from configuration. A nil runner selects the real
// OS process runner; tests pass a mock.
func New(cfg *config.Config, runner execx.Runner, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	sup := supervisor.New(supervisor.Options{
		BinaryPath:    cfg.Claude.BinaryPath,
		MaxConcurrent: cfg.Claude.MaxConcurrent,
		RunTimeout:    cfg.Claude.RunTimeout,
		StopGrace:     cfg.Claude.StopGrace,
	}, runner, logger)

	sessions := session.NewManager(db, session.Options{
		IdleTimeout:     cfg.Sessions.IdleTimeout,
		CleanupInterval: cfg.Sessions.CleanupInterval,
	}, logger)

	g := &Gateway{
		config:     cfg,
		supervisor: sup,
		sessions:   sessions,
		store:      db,
		logger:     logger,
	}

	limiter := auth.NewRateLimiter(cfg.Auth.RequestsPerMinute, cfg.Auth.Burst)
	authn := auth.New(auth.Options{
		RequireAuth: cfg.Auth.RequireAuth,
		APIKeys:     cfg.Auth.APIKeys,
		JWTSecret:   []byte(cfg.Auth.JWTSecret),
		Limiter:     limiter,
	}, logger)
	g.limiter = limiter

	g.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           g.routes(authn),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return g, nil
}

// routes builds the HTTP mux. The health endpoint stays outside the
// auth middleware so probes work without credentials.
func (g *Gateway) routes(authn *auth.Authenticator) http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/chat/completions", g.handleChatCompletions)
	api.HandleFunc("GET /v1/models", g.handleListModels)
	api.HandleFunc("GET /v1/models/{id}", g.handleGetModel)
	api.HandleFunc("GET /v1/sessions", g.handleListSessions)
	api.HandleFunc("POST /v1/sessions", g.handleCreateSession)
	api.HandleFunc("GET /v1/sessions/stats", g.handleSessionStats)
	api.HandleFunc("GET /v1/sessions/{id}", g.handleGetSession)
	api.HandleFunc("GET /v1/sessions/{id}/messages", g.handleSessionMessages)
	api.HandleFunc("DELETE /v1/sessions/{id}", g.handleDeleteSession)
	api.HandleFunc("GET /v1/projects", g.handleListProjects)
	api.HandleFunc("POST /v1/projects", g.handleCreateProject)
	api.HandleFunc("GET /v1/projects/{id}", g.handleGetProject)
	api.HandleFunc("DELETE /v1/projects/{id}", g.handleDeleteProject)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", g.handleHealth)
	mux.Handle("/v1/", authn.Middleware(api))
	return mux
}

// Run starts the HTTP server and blocks until ctx is cancelled or the
// server fails, then shuts everything down gracefully.
func (g *Gateway) Run(ctx context.Context) error {
	if version, err := g.supervisor.Version(ctx); err != nil {
		g.logger.Warn("could not determine backing binary version", "error", err)
	} else {
		g.claudeVersion = version
		g.logger.Info("backing binary available", "version", version)
	}

	g.sessions.Start(ctx)
	go g.pruneLimiter(ctx)

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("http server listening", "addr", g.httpServer.Addr)
		if err := g.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("shutdown signal received")
	case serverErr = <-errCh:
		g.logger.Error("http server failed", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// pruneLimiter periodically drops rate limiter buckets for clients
// that have gone quiet, bounding memory on long-running servers.
func (g *Gateway) pruneLimiter(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.limiter.Prune(time.Hour)
		}
	}
}

// gracefulShutdown uses a fresh context since the run context is
// already cancelled by the time we get here.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown stops the HTTP server, drains in-flight runs, and closes the
// store. Runs still in flight when ctx expires are stopped hard.
func (g *Gateway) Shutdown(ctx context.Context) error {
	var firstErr error

	if err := g.httpServer.Shutdown(ctx); err != nil {
		firstErr = fmt.Errorf("http shutdown: %w", err)
	}

	if err := g.supervisor.Drain(ctx); err != nil {
		g.logger.Warn("drain timed out, stopping remaining runs", "error", err)
		g.supervisor.StopAll()
	}

	g.sessions.Stop()

	if err := g.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing store: %w", err)
	}

	g.logger.Info("gateway stopped")
	return firstErr
}

// ABOUTME: Server orchestrator wiring store, services and the HTTP API
// ABOUTME: Manages listener lifecycle and graceful shutdown

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/hallway-chat/hallway/internal/auth"
	"github.com/hallway-chat/hallway/internal/config"
	"github.com/hallway-chat/hallway/internal/httpapi"
	"github.com/hallway-chat/hallway/internal/ledger"
	"github.com/hallway-chat/hallway/internal/mail"
	"github.com/hallway-chat/hallway/internal/poll"
	"github.com/hallway-chat/hallway/internal/registry"
	"github.com/hallway-chat/hallway/internal/store"
	"github.com/hallway-chat/hallway/internal/users"
)

// Server owns the chat server components and the HTTP listener.
type Server struct {
	config     *config.Config
	store      *store.SQLiteStore
	httpServer *http.Server
	logger     *slog.Logger
}

// initStore creates the store, honoring the HALLWAY_DB_PATH override.
func initStore(cfg *config.Config, logger *slog.Logger) (*store.SQLiteStore, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("HALLWAY_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	logger.Info("store opened", "path", dbPath)
	return s, nil
}

// newMailSender picks the SMTP sender when configured, the log-only
// sender otherwise.
func newMailSender(cfg *config.Config, logger *slog.Logger) mail.Sender {
	if cfg.SMTP.Enabled {
		logger.Info("smtp mail delivery enabled", "host", cfg.SMTP.Host, "port", cfg.SMTP.Port)
		return mail.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Username, cfg.SMTP.Password, logger)
	}
	logger.Warn("smtp disabled - verification mail will be logged, not delivered")
	return mail.NewLogSender(logger)
}

// New creates a new Server instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s, err := initStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	codec, err := auth.NewJWTCodec([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("creating JWT codec: %w", err)
	}

	userSvc := users.New(s, codec, newMailSender(cfg, logger), users.Config{
		BaseURL:    cfg.BaseURL(),
		SessionTTL: cfg.Auth.SessionTTL,
	}, logger)

	roomRegistry := registry.New(s, logger)
	messageLedger := ledger.New(s, logger)
	pollCoordinator := poll.New(s, logger)

	srv := &Server{
		config: cfg,
		store:  s,
		logger: logger.With("component", "server"),
	}

	mux := http.NewServeMux()

	// Health endpoint - no auth required
	mux.HandleFunc("GET /health", srv.handleHealth)

	api := httpapi.New(userSvc, roomRegistry, messageLedger, pollCoordinator, logger)
	api.RegisterRoutes(mux, auth.HTTPAuthMiddleware(s, codec), auth.RequireAdminHTTP())

	srv.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return srv, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown (context canceled), or an error if
// the server fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// Shutdown gracefully stops the HTTP server and releases resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

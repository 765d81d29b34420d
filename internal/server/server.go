// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer — the composition root where the whole
// dependency chain is assembled:
//
//	sqlite.DB → services (link, commits, publish) → handlers → routes
//
// Keeping it out of main.go makes the wiring testable and keeps main down
// to "read config, start the server".
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/commitcast/internal/auth"
	"github.com/sakif/commitcast/internal/githubapi"
	"github.com/sakif/commitcast/internal/handler"
	"github.com/sakif/commitcast/internal/linkedinapi"
	"github.com/sakif/commitcast/internal/middleware"
	sqliteRepo "github.com/sakif/commitcast/internal/repository/sqlite"
	"github.com/sakif/commitcast/internal/service"
)

// Config holds server configuration. A struct (instead of parameters) means
// new options don't ripple through function signatures, and main can load
// everything in one place.
type Config struct {
	Port   int
	DBPath string

	// SessionSecret signs session cookies and LinkedIn link-state tokens.
	SessionSecret string

	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string

	LinkedInClientID     string
	LinkedInClientSecret string
	LinkedInCallbackURL  string

	// WebhookSecret is the shared secret configured on the GitHub webhook.
	WebhookSecret string

	// ClientURL is where browsers are redirected after OAuth flows finish.
	ClientURL string
}

// Server represents the HTTP server and all its dependencies.
// It owns the database connection and closes it on shutdown.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New creates a new Server with the given config and wires the full
// dependency chain.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET  /auth/github/login                          → redirect to GitHub
//	GET  /auth/github/callback                       → complete GitHub OAuth, set session
//	GET  /auth/linkedin                              → redirect to LinkedIn (session required)
//	GET  /auth/linkedin/callback                     → complete LinkedIn OAuth
//	POST /auth/logout                                → clear session
//	GET  /api/github/{githubID}/status               → link status
//	GET  /api/github/{githubID}/commits              → recent commits with publish status
//	POST /api/github/{githubID}/post_commit          → publish one commit
//	POST /api/github/{githubID}/post_digest          → publish a digest
//	POST /api/github/{githubID}/preview_post         → compose one commit, no publish
//	POST /api/github/{githubID}/preview_digest       → compose a digest, no publish
//	POST /api/github/{githubID}/disconnect_linkedin  → unlink
//	POST /webhook                                    → GitHub push receiver
func (s *Server) setupRoutes() error {
	// Global middleware, in order: request id → real ip → panic recovery →
	// request logging.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	sessions, err := auth.NewSessionService(s.config.SessionSecret)
	if err != nil {
		return fmt.Errorf("creating session service: %w", err)
	}

	githubProvider := auth.NewGitHubProvider(
		s.config.GitHubClientID,
		s.config.GitHubClientSecret,
		s.config.GitHubCallbackURL,
	)
	linkedinProvider := auth.NewLinkedInProvider(
		s.config.LinkedInClientID,
		s.config.LinkedInClientSecret,
		s.config.LinkedInCallbackURL,
	)

	// One GitHub API client per stored token; see GitHubClientFactory.
	clientFactory := func(token string) service.CommitLister {
		return githubapi.New(token)
	}

	linkService := service.NewLinkService(s.db, githubProvider, linkedinProvider, sessions, s.logger)
	commitService := service.NewCommitService(s.db, s.db, clientFactory, s.logger)
	publishService := service.NewPublishService(s.db, s.db, commitService, linkedinapi.New(), s.logger)

	authHandler := handler.NewAuthHandler(linkService, s.config.ClientURL, s.logger)
	apiHandler := handler.NewAPIHandler(linkService, commitService, publishService, s.logger)
	webhookHandler := handler.NewWebhookHandler(publishService, s.config.WebhookSecret, s.logger)

	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/github/login", authHandler.HandleGitHubLogin)
		r.Get("/github/callback", authHandler.HandleGitHubCallback)
		r.Get("/linkedin/callback", authHandler.HandleLinkedInCallback)
		r.Post("/logout", authHandler.HandleLogout)

		// Beginning the LinkedIn flow needs a logged-in user; the callback
		// doesn't, because its state token carries the user.
		r.With(auth.RequireAuth(sessions)).Get("/linkedin", authHandler.HandleLinkedInBegin)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(sessions))
		r.Get("/github/{githubID}/status", apiHandler.HandleStatus)
		r.Get("/github/{githubID}/commits", apiHandler.HandleCommits)
		r.Post("/github/{githubID}/post_commit", apiHandler.HandlePostCommit)
		r.Post("/github/{githubID}/post_digest", apiHandler.HandlePostDigest)
		r.Post("/github/{githubID}/preview_post", apiHandler.HandlePreviewPost)
		r.Post("/github/{githubID}/preview_digest", apiHandler.HandlePreviewDigest)
		r.Post("/github/{githubID}/disconnect_linkedin", apiHandler.HandleDisconnectLinkedIn)
	})

	// The webhook authenticates with its HMAC signature, not a session.
	s.router.Post("/webhook", webhookHandler.HandleWebhook)

	return nil
}

// Start starts the HTTP server and handles graceful shutdown:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close the database connection (flushes WAL, releases the file lock)
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Package main is the entry point for the commitcast server.
//
// The main package is deliberately thin — its only job is to:
// 1. Read configuration (env vars, with .env support for local dev)
// 2. Create shared dependencies (the logger)
// 3. Hand everything to internal/server and block until shutdown
//
// All actual logic lives in imported packages (internal/server,
// internal/handler, internal/service, etc.).
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/sakif/commitcast/internal/server"
)

func main() {
	// === 1. SET UP LOGGING ===
	// slog.NewTextHandler gives human-readable structured logs on stdout.
	// Switch to LevelInfo in production to reduce noise.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// === 2. LOAD .env (LOCAL DEV ONLY) ===
	// godotenv loads KEY=VALUE pairs from a .env file into the process
	// environment. Missing file is fine — in production the environment is
	// set by the deploy system, not a file.
	if err := godotenv.Load(); err == nil {
		logger.Debug("loaded configuration from .env")
	}

	// === 3. READ CONFIGURATION ===
	port := 8080
	if portStr := os.Getenv("PORT"); portStr != "" {
		var err error
		port, err = strconv.Atoi(portStr)
		if err != nil {
			logger.Error("invalid PORT value", slog.String("value", portStr))
			os.Exit(1)
		}
	}

	// DB_PATH allows overriding for production deployments,
	// e.g. DB_PATH=/var/lib/commitcast/prod.db
	dbPath := "data/commitcast.db"
	if envDB := os.Getenv("DB_PATH"); envDB != "" {
		dbPath = envDB
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", filepath.Dir(dbPath)),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// SESSION_SECRET signs session cookies and OAuth state tokens.
	// Must be a long random string:
	//   SESSION_SECRET=$(openssl rand -hex 32)
	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		logger.Error("SESSION_SECRET not set")
		os.Exit(1)
	}

	githubCallbackURL := os.Getenv("GITHUB_CALLBACK_URL")
	if githubCallbackURL == "" {
		githubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", port)
	}
	linkedinCallbackURL := os.Getenv("LINKEDIN_CALLBACK_URL")
	if linkedinCallbackURL == "" {
		linkedinCallbackURL = fmt.Sprintf("http://localhost:%d/auth/linkedin/callback", port)
	}

	// CLIENT_URL is where browsers land after an OAuth flow completes.
	clientURL := os.Getenv("CLIENT_URL")
	if clientURL == "" {
		clientURL = "http://localhost:3000"
	}

	// WEBHOOK_SECRET is the shared secret configured on the GitHub webhook.
	// Without it push events cannot be verified, so /webhook rejects everything.
	webhookSecret := os.Getenv("WEBHOOK_SECRET")
	if webhookSecret == "" {
		logger.Warn("WEBHOOK_SECRET not set — webhook deliveries will be rejected")
	}

	cfg := server.Config{
		Port:                 port,
		DBPath:               dbPath,
		SessionSecret:        sessionSecret,
		GitHubClientID:       os.Getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret:   os.Getenv("GITHUB_CLIENT_SECRET"),
		GitHubCallbackURL:    githubCallbackURL,
		LinkedInClientID:     os.Getenv("LINKEDIN_CLIENT_ID"),
		LinkedInClientSecret: os.Getenv("LINKEDIN_CLIENT_SECRET"),
		LinkedInCallbackURL:  linkedinCallbackURL,
		WebhookSecret:        webhookSecret,
		ClientURL:            clientURL,
	}

	// === 4. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM).
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

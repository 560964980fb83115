// Codelab - Project-Based Python Tutoring Server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/blrlabs/codelab/internal/api"
	"github.com/blrlabs/codelab/internal/config"
	"github.com/blrlabs/codelab/internal/curriculum"
	"github.com/blrlabs/codelab/internal/engine"
	"github.com/blrlabs/codelab/internal/events"
	"github.com/blrlabs/codelab/internal/identity"
	"github.com/blrlabs/codelab/internal/middleware"
	"github.com/blrlabs/codelab/internal/sandbox"
	"github.com/blrlabs/codelab/internal/status"
	"github.com/blrlabs/codelab/internal/store"
	"github.com/blrlabs/codelab/internal/tutor"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	catalog := curriculum.Default()

	// Tutor agent. Without a usable provider the server still serves
	// curriculum and progress reads; session turns answer 502.
	agent, err := tutor.NewProvider(tutor.Config{
		Provider:  cfg.Tutor.Provider,
		Model:     cfg.Tutor.Model,
		APIKey:    cfg.Tutor.APIKey,
		BaseURL:   cfg.Tutor.BaseURL,
		MaxTokens: cfg.Tutor.MaxTokens,
		Timeout:   cfg.Tutor.Timeout,
	})
	if err != nil {
		slog.Warn("Tutor provider unavailable, AI features will be disabled",
			"provider", cfg.Tutor.Provider, "error", err)
		// An empty mock answers every turn with ErrUnavailable.
		agent = tutor.NewMockProvider()
	} else {
		slog.Info("Tutor provider ready", "provider", cfg.Tutor.Provider, "model", agent.ModelID())
	}

	// Code-execution sandbox (optional). A missing Docker daemon disables the
	// run route rather than failing startup.
	var runner sandbox.Executor
	runEnabled := false
	if cfg.Sandbox.Enabled {
		dockerRunner, sandboxErr := sandbox.NewDockerExecutor(sandbox.DockerConfig{
			Image:   cfg.Sandbox.Image,
			Runtime: cfg.Sandbox.Runtime,
			Timeout: cfg.Sandbox.Timeout,
		})
		if sandboxErr != nil {
			slog.Warn("Sandbox unavailable, code execution disabled", "error", sandboxErr)
		} else {
			defer func() {
				if closeErr := dockerRunner.Close(); closeErr != nil {
					slog.Error("Failed to close sandbox", "error", closeErr)
				}
			}()
			runner = dockerRunner
			runEnabled = true
			slog.Info("Sandbox ready", "image", cfg.Sandbox.Image)
		}
	} else {
		slog.Info("Sandbox disabled by configuration")
	}

	// Initialize services.
	eng := engine.New(catalog, repo, agent, runner)
	summarizer := status.New(repo, catalog)
	hub := events.NewHub()

	// Initialize handlers.
	sessionHandler := api.NewSessionHandler(eng, summarizer, catalog, hub, runEnabled)
	wsHandler := events.NewWebSocketHandler(hub, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(identity.Middleware(repo))

	sessionHandler.RegisterRoutes(r)

	// WebSocket endpoint for live turn events.
	r.Get("/ws/events", wsHandler.ServeHTTP)

	// Create server. WriteTimeout stays at 0 so WebSocket connections are not
	// cut off mid-session.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

// OrderDesk - deterministic customer support chat server
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
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/orderdesk/internal/api"
	"github.com/ashureev/orderdesk/internal/chat"
	"github.com/ashureev/orderdesk/internal/config"
	"github.com/ashureev/orderdesk/internal/dataset"
	"github.com/ashureev/orderdesk/internal/dialogue"
	"github.com/ashureev/orderdesk/internal/identity"
	"github.com/ashureev/orderdesk/internal/llm"
	"github.com/ashureev/orderdesk/internal/middleware"
	"github.com/ashureev/orderdesk/internal/orchestrator"
	"github.com/ashureev/orderdesk/internal/store"
	"github.com/ashureev/orderdesk/internal/transcript"
	"github.com/ashureev/orderdesk/web"
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

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "storage", cfg.SessionStorage)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Session storage.
	repo, err := store.New(ctx, store.Config{
		Backend:    cfg.SessionStorage,
		DBPath:     cfg.DBPath,
		RedisAddr:  cfg.RedisAddr,
		SessionTTL: cfg.SessionTTL,
	})
	if err != nil {
		slog.Error("Failed to initialize session storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close session storage", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Session storage health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Session storage connected")

	// Reference data.
	data, err := dataset.Load(cfg.DatasetDir)
	if err != nil {
		slog.Error("Failed to load datasets", "error", err, "dir", cfg.DatasetDir)
		os.Exit(1)
	}
	slog.Info("Datasets loaded", "dir", cfg.DatasetDir)

	// Chit-chat fallback.
	var chitchat llm.Fallback = llm.Disabled{}
	if cfg.LLMEnabled() {
		gemini, err := llm.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			slog.Warn("Failed to initialize Gemini, chit-chat fallback disabled", "error", err)
		} else {
			chitchat = gemini
			slog.Info("Gemini chit-chat fallback enabled", "model", cfg.GeminiModel)
		}
	} else {
		slog.Info("Chit-chat fallback disabled (GEMINI_API_KEY not set)")
	}
	defer func() {
		if closeErr := chitchat.Close(); closeErr != nil {
			slog.Warn("Failed to close chit-chat client", "error", closeErr)
		}
	}()

	// Transcripts.
	transcripts, err := transcript.New(transcript.Config{
		Enabled:   cfg.Transcript.Enabled,
		Dir:       cfg.Transcript.Dir,
		QueueSize: cfg.Transcript.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize transcript logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := transcripts.Close(); closeErr != nil {
			slog.Warn("Failed to close transcript logger", "error", closeErr)
		}
	}()

	// Conversation pipeline.
	dlg := dialogue.NewManager(data)
	orch := orchestrator.New(repo, dlg, data, chitchat, logger,
		orchestrator.WithTranscripts(transcripts))

	// Handlers.
	baseHandler := api.NewHandler(repo)
	chatHandler := api.NewChatHandler(baseHandler, orch)

	allowedOrigin := "*"
	if len(cfg.CORSAllowedOrigins) > 0 {
		allowedOrigin = cfg.CORSAllowedOrigins[0]
	}
	wsHandler := chat.NewWebSocketHandler(orch, allowedOrigin, cfg.IsDevelopment())

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(identity.Middleware(cfg.IsDevelopment()))
	r.Use(rateLimiter.Handler)

	r.Get("/healthz", chatHandler.Healthz)
	chatHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	// Serve embedded frontend.
	r.Handle("/*", web.Handler())

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Background workers.
	store.StartTTLWorker(ctx, repo, cfg.SessionTTL)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.DatasetWatch {
		g.Go(func() error {
			return data.Watch(gctx, logger)
		})
	}

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

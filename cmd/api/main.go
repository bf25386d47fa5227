package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/zhouzirui/careline/backend/internal/config"
	"github.com/zhouzirui/careline/backend/internal/endpoint"
	"github.com/zhouzirui/careline/backend/internal/handler"
	"github.com/zhouzirui/careline/backend/internal/handler/widget"
	"github.com/zhouzirui/careline/backend/internal/logger"
	"github.com/zhouzirui/careline/backend/internal/model/persona"
	"github.com/zhouzirui/careline/backend/internal/service/ai"
	"github.com/zhouzirui/careline/backend/internal/service/chat"
	widgetcore "github.com/zhouzirui/careline/backend/internal/widget"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log := logger.Base()
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger.Configure(logger.Config{Level: cfg.Server.LogLevel, Service: "careline-api"})
	log := logger.WithComponent("main")
	if envErr != nil {
		log.Debug().Err(envErr).Msg("no .env file, continuing with system environment variables only")
	}

	personaStore := persona.NewMemoryStore(persona.Seed())

	store, closeStore, err := openStore(ctx, cfg.Session)
	if err != nil {
		log.Fatal().Err(err).Str("store", string(cfg.Session.Store)).Msg("failed to open session store")
	}
	defer closeStore()
	chatService := chat.NewService(store, cfg.Session.HistoryLimit)

	responder, err := ai.New(ctx, cfg.AI)
	switch {
	case errors.Is(err, ai.ErrNoProvider):
		log.Warn().Msg("no AI provider configured, /chat will answer 503 - set GEMINI_API_KEY or ARK_* variables")
	case err != nil:
		log.Error().Err(err).Str("provider", string(cfg.AI.Provider)).Msg("failed to initialize AI responder, continuing without AI functionality")
	default:
		log.Info().Str("provider", string(cfg.AI.Provider)).Msg("AI responder initialized")
	}

	greeting := cfg.Widget.Greeting
	if greeting == "" {
		greeting = personaStore.Default().Greeting
	}
	widgetHandler := widget.New(
		func() (widgetcore.Endpoint, error) {
			return endpoint.New(cfg.Widget.EndpointURL, endpoint.WithTimeout(cfg.Widget.Timeout))
		},
		cfg.Server.AllowedOrigins,
		widgetcore.WithGreeting(greeting),
		widgetcore.WithCrisisAlertDuration(cfg.Widget.CrisisAlertDuration),
		widgetcore.WithNoticeDuration(cfg.Widget.NoticeDuration),
	)

	router := handler.NewRouter(handler.Dependencies{
		Personas:       personaStore,
		Chat:           chatService,
		Responder:      responder,
		ContextTurns:   cfg.AI.ContextTurns,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Widget:         widgetHandler,
	})

	startServer(ctx, cfg.Server, router)
}

func openStore(ctx context.Context, cfg config.SessionConfig) (chat.Store, func(), error) {
	if cfg.Store != config.StoreRedis {
		return chat.NewMemoryStore(), func() {}, nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := chat.OpenRedis(pingCtx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return chat.NewRedisStore(client, "", cfg.TTL), func() { closeRedis(client) }, nil
}

func closeRedis(client *redis.Client) {
	if err := client.Close(); err != nil {
		log := logger.WithComponent("main")
		log.Warn().Err(err).Msg("close redis")
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log := logger.WithComponent("main")
	log.Info().Str("addr", addr).Msg("careline backend listening")
	if err := runServer(ctx, srv); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

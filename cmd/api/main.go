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
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/unycompass/chatbot-gateway/internal/config"
	"github.com/unycompass/chatbot-gateway/internal/handler"
	"github.com/unycompass/chatbot-gateway/internal/service/chatbot"
	"github.com/unycompass/chatbot-gateway/internal/service/compass"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("failed to load .env file, continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	setupLogging(cfg.Server)

	if !cfg.AI.Enabled() {
		log.Warn().Msg("Ark credentials not configured, chatbot will report as unavailable")
	}

	// A failed initialization still serves health and status endpoints.
	state := chatbot.Initialize(ctx, compass.NewFactory(cfg))
	defer func() {
		if err := state.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close chatbot")
		}
	}()

	router := handler.NewRouter(cfg.CORS, log.Logger, state)

	if err := startServer(ctx, cfg.Server, router); err != nil {
		log.Error().Err(err).Msg("server error")
	}
}

func setupLogging(serverCfg config.ServerConfig) {
	level := zerolog.InfoLevel
	if serverCfg.Debug {
		level = zerolog.DebugLevel
	}
	if serverCfg.LogLevel != "" {
		if l, err := zerolog.ParseLevel(serverCfg.LogLevel); err == nil {
			level = l
		} else {
			log.Warn().Str("level", serverCfg.LogLevel).Msg("unknown log level, keeping default")
		}
	}
	zerolog.SetGlobalLevel(level)

	if serverCfg.Debug {
		log.Logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) error {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", addr).Bool("debug", serverCfg.Debug).Msg("chatbot gateway listening")
	return runServer(ctx, srv)
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
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

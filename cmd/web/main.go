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

	"visioncraft/internal/config"
	"visioncraft/internal/gemini"
	"visioncraft/internal/httpclient"
	"visioncraft/internal/session"
	"visioncraft/internal/studio"
	"visioncraft/internal/web"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := config.NewLogger(cfg)
	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY is not set, model calls will fail")
	}
	if cfg.Web.SecretGenerated {
		logger.Warn("SESSION_SECRET is not set, sessions will not survive a restart")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
		Logger:     logger,
	})

	gateway := gemini.NewGateway(ctx, gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		APIVersion: cfg.GeminiAPIVersion,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	defer gateway.Close()

	defaults := cfg.Defaults
	store := session.NewStore(session.Options{
		TTL:    cfg.SessionTTL,
		Logger: logger,
		NewStudio: func() *studio.Controller {
			return studio.New(studio.Options{
				Gateway:     gateway,
				Logger:      logger,
				Defaults:    &defaults,
				CallTimeout: cfg.RequestTimeout,
			})
		},
	})
	defer store.Close()

	server := web.New(web.Options{
		Store:          store,
		Logger:         logger,
		SessionSecret:  cfg.Web.SessionSecret,
		SessionTTL:     cfg.SessionTTL,
		CORSOrigins:    cfg.Web.CORSOrigins,
		RequestTimeout: cfg.RequestTimeout,
		Debug:          cfg.Debug,
	})

	srv := &http.Server{
		Addr:              cfg.Web.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "err", err)
		}
	}()

	logger.Info("web started", "addr", cfg.Web.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
	logger.Info("shutting down")
}

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"visioncraft/internal/config"
	"visioncraft/internal/gemini"
	"visioncraft/internal/handlers"
	"visioncraft/internal/httpclient"
	"visioncraft/internal/mediagroup"
	"visioncraft/internal/session"
	"visioncraft/internal/studio"
	"visioncraft/internal/telegram"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadBot()
	if err != nil {
		panic(err)
	}

	logger := config.NewLogger(cfg)
	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY is not set, model calls will fail")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
		Logger:     logger,
	})

	tg, err := telegram.New(telegram.Options{
		Token:      cfg.Bot.TelegramToken,
		HTTPClient: httpClient,
		Logger:     logger,
		Debug:      cfg.Debug,
	})
	if err != nil {
		logger.Error("telegram init failed", "err", err)
		os.Exit(1)
	}

	gateway := gemini.NewGateway(ctx, gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		APIVersion: cfg.GeminiAPIVersion,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	defer gateway.Close()

	defaults := cfg.Defaults
	sessions := session.NewStore(session.Options{
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
	defer sessions.Close()

	handler := handlers.New(handlers.Options{
		Telegram: tg,
		Sessions: sessions,
		Logger:   logger,
	})

	// Every update and flushed album runs on its own goroutine, at most
	// MaxConcurrent at a time.
	sem := make(chan struct{}, cfg.Bot.MaxConcurrent)
	dispatch := func(fn func(ctx context.Context)) bool {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return false
		}

		go func() {
			defer func() { <-sem }()

			reqCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
			defer cancel()
			fn(reqCtx)
		}()
		return true
	}

	aggregator := mediagroup.New(mediagroup.Options{
		Debounce: cfg.Bot.MediaGroupDebounce,
		OnFlush: func(group mediagroup.Group) {
			dispatch(func(ctx context.Context) { handler.HandleMediaGroup(ctx, group) })
		},
	})
	defer aggregator.Close()
	handler.SetMediaGroupAggregator(aggregator)

	logger.Info("bot started", "username", tg.Username())

	updates := tg.Updates(telegram.UpdatesOptions{
		Timeout: 30 * time.Second,
	})
	defer tg.StopUpdates()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case update, ok := <-updates:
			if !ok {
				logger.Info("updates channel closed")
				return
			}

			if !dispatch(func(ctx context.Context) {
				if err := handler.HandleUpdate(ctx, update); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("handle update failed", "update_id", update.UpdateID, "err", err)
				}
			}) {
				return
			}
		}
	}
}

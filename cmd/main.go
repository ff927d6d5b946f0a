// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
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

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "golang.org/x/crypto/x509roots/fallback" // TLS roots for scratch containers

	"github.com/0x0BSoD/feedrelay/internal/config"
	"github.com/0x0BSoD/feedrelay/internal/formatter"
	"github.com/0x0BSoD/feedrelay/internal/metrics"
	"github.com/0x0BSoD/feedrelay/internal/notifier"
	"github.com/0x0BSoD/feedrelay/internal/poller"
	"github.com/0x0BSoD/feedrelay/internal/reporter"
	"github.com/0x0BSoD/feedrelay/internal/source"
	"github.com/0x0BSoD/feedrelay/internal/storage"
	"github.com/0x0BSoD/feedrelay/internal/summary"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		return 1
	}

	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		logger.Error("failed to create botAPI", "err", err)
		return 1
	}

	ledger, err := storage.Open(ctx, storage.Options{
		DatabaseURL:    cfg.DatabaseURL,
		Path:           cfg.DBPath,
		ConnectTimeout: cfg.DBConnectTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to open seen-news storage", "err", err)
		return 1
	}
	defer ledger.Close()

	if n, err := ledger.Count(ctx); err == nil {
		logger.Info("seen-news storage ready", "entries", n)
	}
	if latest, err := ledger.Latest(ctx, 1); err == nil && len(latest) > 0 {
		logger.Info("last posted entry", "id", latest[0].ID, "at", latest[0].CreatedAt)
	}

	feedSource, err := source.New(cfg.FeedParser, cfg.FetchTimeout)
	if err != nil {
		logger.Error("failed to create feed source", "err", err)
		return 1
	}

	m := metrics.New()

	params := poller.Params{
		Source: feedSource,
		Ledger: ledger,
		Formatter: formatter.New(formatter.Options{
			Untitled:  cfg.UntitledText,
			ReadMore:  cfg.ReadMoreText,
			BodyLimit: cfg.BodyLimit,
		}),
		Dispatcher:   notifier.New(botAPI, cfg.ChannelID, m, logger),
		Reporter:     reporter.New(botAPI, cfg.AdminChatID, logger),
		Metrics:      m,
		Logger:       logger,
		FeedURL:      cfg.FeedURL,
		PollInterval: cfg.PollIntervalDuration(),
		PostDelay:    cfg.PostDelay,
	}

	summarizer, err := summary.New(cfg.AIType, cfg.AIBaseURL, cfg.AIKey, cfg.AIPrompt, cfg.AIModel, cfg.AITimeout)
	if err != nil {
		logger.Error("failed to create summarizer", "err", err)
		return 1
	}
	if summarizer != nil {
		params.Summarizer = summarizer
		logger.Info("summaries enabled", "ai_type", cfg.AIType, "model", cfg.AIModel)
	}

	if cfg.HTTPAddr != "" {
		go serveHTTP(ctx, cfg.HTTPAddr, m, logger)
	}

	if err := poller.New(params).Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("poller stopped", "err", err)
		return 1
	}

	logger.Info("poller stopped")
	return 0
}

func serveHTTP(ctx context.Context, addr string, m *metrics.Metrics, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("failed to run http server", "err", err)
		return
	}

	logger.Info("http server stopped")
}

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"bedrock-chatbot/internal/infra/logging"
	"bedrock-chatbot/internal/infra/metrics"
	"bedrock-chatbot/internal/infra/sched"
	"bedrock-chatbot/internal/infra/telegram"
	"bedrock-chatbot/internal/infra/web"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve the chat page, JSON API and (optionally) the Telegram bot",
		RunE:  runServe,
	})
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	// ---- Session janitor ----
	janitor := sched.NewSessionJanitor(cfg.Session.SweepEvery, a.sweeper, a.sessions, logger)
	go func() { _ = janitor.Run(ctx) }()

	// ---- Telegram (optional) ----
	if cfg.Bot.Token != "" {
		bot, err := telegram.NewChatBot(&cfg.Bot, cfg.Session.IdleTTL, a.chat, logger)
		if err != nil {
			return err
		}
		go func() {
			if err := bot.StartPolling(ctx); err != nil {
				logger.Error().Err(err).Msg("telegram polling stopped")
			}
		}()
	}

	// ---- HTTP ----
	secret := cfg.Session.Secret
	if secret == "" {
		secret = randomSecret()
		logger.Warn().Msg("session.secret not set; cookies will not survive a restart")
	}
	srv := web.NewServer(a.chat, a.stats, web.NewSessionCookies(secret, cfg.Session.SecureCookie, cfg.Session.IdleTTL),
		web.Options{Title: cfg.HTTP.Title, RequestTimeout: cfg.HTTP.RequestTimeout}, logger)
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-errc:
		return err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"bedrock-chatbot/internal/config"
	"bedrock-chatbot/internal/domain/ports/repository"
	aiAdapters "bedrock-chatbot/internal/infra/adapters/ai"
	pg "bedrock-chatbot/internal/infra/db/postgres"
	"bedrock-chatbot/internal/infra/inmem"
	"bedrock-chatbot/internal/infra/metrics"
	red "bedrock-chatbot/internal/infra/redis"
	"bedrock-chatbot/internal/infra/sched"
	"bedrock-chatbot/internal/infra/security"
	"bedrock-chatbot/internal/infra/worker"
	"bedrock-chatbot/internal/memory"
	"bedrock-chatbot/internal/usecase"
)

// app is the wired object graph shared by the serve and chat commands.
type app struct {
	cfg      *config.Config
	log      *zerolog.Logger
	chat     usecase.ChatUseCase
	stats    usecase.StatsUseCase
	sessions repository.ChatSessionRepository
	sweeper  sched.Sweeper // nil when the store expires sessions itself

	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	// ---- Tokenizer ----
	tok, err := memory.NewTiktokenTokenizer(cfg.Memory.Encoding)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: %w", err)
	}

	// ---- Model client (one per process) ----
	client, err := aiAdapters.NewClient(ctx, cfg.AI, logger)
	if err != nil {
		return nil, fmt.Errorf("model client: %w", err)
	}
	info := client.ModelInfo()
	logger.Info().Str("provider", info.Provider).Str("model", info.Model).Msg("model client ready")
	metrics.SetBuildInfo(version, commit, info.Provider)

	// ---- Session store ----
	var locker repository.SessionLocker
	switch cfg.Session.Store {
	case "redis":
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rc.Close() })
		enc, err := security.NewEncryptionService(cfg.Security.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("encryption: %w", err)
		}
		a.sessions = red.NewSessionStore(rc, enc, cfg.Session.IdleTTL)
		// a turn is at most one reply call plus one summary call
		locker = red.NewSessionLocker(rc, 2*cfg.AI.RequestTimeout+10*time.Second)
	default:
		store := inmem.NewSessionStore(cfg.Session.IdleTTL)
		a.sessions = store
		a.sweeper = store
		locker = inmem.NewLocker()
	}

	// ---- Usage ledger (optional) ----
	var usage repository.UsageRepository
	if cfg.Database.URL != "" {
		pool, err := pg.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		repo := pg.NewUsageRepo(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		usage = repo
		statsCtx, stop := context.WithCancel(context.Background())
		a.closers = append(a.closers, stop)
		go pg.ReportPoolStats(statsCtx, pool, 15*time.Second)
	}

	// ---- Background writes ----
	bg := worker.NewPool("usage", 2, logger)
	bg.Start(context.Background())
	a.closers = append(a.closers, bg.Stop)

	a.chat = usecase.NewChatUseCase(a.sessions, locker, client, tok, usage, bg,
		usecase.ChatOptions{MaxTokenLimit: cfg.Memory.MaxTokenLimit, DevMode: cfg.Runtime.Dev}, logger)
	a.stats = usecase.NewStatsUseCase(usage, a.sessions, logger)

	ok = true
	return a, nil
}

package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"bedrock-chatbot/internal/domain/ports/repository"
	"bedrock-chatbot/internal/infra/metrics"
)

// Sweeper drops sessions that have been idle past their TTL.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// SessionJanitor periodically evicts idle sessions and refreshes the
// active-session gauge. sweeper may be nil when the store expires keys
// itself (redis).
type SessionJanitor struct {
	interval time.Duration
	sweeper  Sweeper
	sessions repository.ChatSessionRepository
	log      *zerolog.Logger
}

func NewSessionJanitor(interval time.Duration, sweeper Sweeper, sessions repository.ChatSessionRepository, logger *zerolog.Logger) *SessionJanitor {
	if interval <= 0 {
		interval = time.Minute
	}
	l := logger.With().Str("component", "SessionJanitor").Logger()
	return &SessionJanitor{
		interval: interval,
		sweeper:  sweeper,
		sessions: sessions,
		log:      &l,
	}
}

func (w *SessionJanitor) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting session janitor")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping session janitor")
			return ctx.Err()
		case now := <-ticker.C:
			w.RunOnce(ctx, now)
		}
	}
}

// RunOnce performs a single sweep.
func (w *SessionJanitor) RunOnce(ctx context.Context, now time.Time) {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if w.sweeper != nil {
		n, err := w.sweeper.Sweep(runCtx, now)
		if err != nil {
			metrics.IncJob("session_sweep", "failed")
			w.log.Error().Err(err).Msg("session sweep error")
			return
		}
		metrics.IncJob("session_sweep", "completed")
		if n > 0 {
			w.log.Info().Int("count", n).Msg("idle sessions evicted")
		}
	}
	if total, err := w.sessions.Count(runCtx); err == nil {
		metrics.SetActiveSessions(total)
	} else {
		w.log.Warn().Err(err).Msg("count sessions")
	}
}

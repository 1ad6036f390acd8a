package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"bedrock-chatbot/internal/domain/ports/repository"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

// UsageReport holds model usage over the trailing day, week and month.
type UsageReport struct {
	Day   repository.UsageTotals `json:"day"`
	Week  repository.UsageTotals `json:"week"`
	Month repository.UsageTotals `json:"month"`
	// ActiveSessions is the number of stored sessions.
	ActiveSessions int `json:"active_sessions"`
}

type StatsUseCase interface {
	Usage(ctx context.Context) (UsageReport, error)
}

type statsUC struct {
	usage    repository.UsageRepository
	sessions repository.ChatSessionRepository
	now      func() time.Time

	log *zerolog.Logger
}

func NewStatsUseCase(usage repository.UsageRepository, sessions repository.ChatSessionRepository, logger *zerolog.Logger) *statsUC {
	return &statsUC{usage: usage, sessions: sessions, now: time.Now, log: logger}
}

func (s *statsUC) Usage(ctx context.Context) (UsageReport, error) {
	var r UsageReport
	n, err := s.sessions.Count(ctx)
	if err != nil {
		return r, err
	}
	r.ActiveSessions = n
	if s.usage == nil {
		return r, nil
	}
	now := s.now()
	if r.Day, err = s.usage.TotalsSince(ctx, now.Add(-24*time.Hour)); err != nil {
		return r, err
	}
	if r.Week, err = s.usage.TotalsSince(ctx, now.AddDate(0, 0, -7)); err != nil {
		return r, err
	}
	if r.Month, err = s.usage.TotalsSince(ctx, now.AddDate(0, -1, 0)); err != nil {
		return r, err
	}
	return r, nil
}

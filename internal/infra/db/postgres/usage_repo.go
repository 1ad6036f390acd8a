// File: internal/infra/db/postgres/usage_repo.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"bedrock-chatbot/internal/domain/model"
	"bedrock-chatbot/internal/domain/ports/repository"
)

// UsageRepo is the token ledger. It stores counters only, never message text.
var _ repository.UsageRepository = (*UsageRepo)(nil)

const usageSchema = `
CREATE TABLE IF NOT EXISTS ai_usage (
  id                TEXT PRIMARY KEY,
  session_id        TEXT NOT NULL,
  provider          TEXT NOT NULL,
  model             TEXT NOT NULL,
  kind              TEXT NOT NULL,
  prompt_tokens     INTEGER NOT NULL DEFAULT 0,
  completion_tokens INTEGER NOT NULL DEFAULT 0,
  latency_ms        INTEGER NOT NULL DEFAULT 0,
  success           BOOLEAN NOT NULL DEFAULT TRUE,
  created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS ai_usage_created_at_idx ON ai_usage (created_at);`

type UsageRepo struct {
	pool *pgxpool.Pool
}

func NewUsageRepo(pool *pgxpool.Pool) *UsageRepo {
	return &UsageRepo{pool: pool}
}

// EnsureSchema creates the ledger table when missing.
func (r *UsageRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, usageSchema); err != nil {
		return fmt.Errorf("ensure usage schema: %w", err)
	}
	return nil
}

func (r *UsageRepo) Save(ctx context.Context, rec *model.UsageRecord) error {
	const q = `
INSERT INTO ai_usage (id, session_id, provider, model, kind, prompt_tokens, completion_tokens, latency_ms, success, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,COALESCE($10,NOW()))
ON CONFLICT (id) DO NOTHING;`
	var created *time.Time
	if !rec.CreatedAt.IsZero() {
		created = &rec.CreatedAt
	}
	_, err := r.pool.Exec(ctx, q,
		rec.ID, rec.SessionID, rec.Provider, rec.Model, rec.Kind,
		rec.PromptTokens, rec.CompletionTokens, rec.LatencyMs, rec.Success, created)
	if err != nil {
		return fmt.Errorf("save usage: %w", err)
	}
	return nil
}

func (r *UsageRepo) TotalsSince(ctx context.Context, since time.Time) (repository.UsageTotals, error) {
	const q = `
SELECT COUNT(*), COALESCE(SUM(prompt_tokens),0), COALESCE(SUM(completion_tokens),0),
       COUNT(*) FILTER (WHERE NOT success)
FROM ai_usage
WHERE created_at >= $1;`
	var t repository.UsageTotals
	if err := r.pool.QueryRow(ctx, q, since).Scan(&t.Calls, &t.PromptTokens, &t.CompletionTokens, &t.Failures); err != nil {
		return repository.UsageTotals{}, fmt.Errorf("usage totals: %w", err)
	}
	return t, nil
}

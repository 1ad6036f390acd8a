package repository

import (
	"context"
	"time"

	"bedrock-chatbot/internal/domain/model"
)

// -----------------------------
// Usage ledger
// -----------------------------

type UsageTotals struct {
	Calls            int `json:"calls"`
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	// Failures counts calls that returned an error.
	Failures int `json:"failures"`
}

type UsageRepository interface {
	Save(ctx context.Context, rec *model.UsageRecord) error
	TotalsSince(ctx context.Context, since time.Time) (UsageTotals, error)
}

package model

import "time"

// UsageRecord is one model call as accounted by the usage ledger.
// It carries counters only, never message text.
type UsageRecord struct {
	ID               string
	SessionID        string
	Provider         string
	Model            string
	Kind             string // "reply" | "summary"
	PromptTokens     int
	CompletionTokens int
	LatencyMs        int
	Success          bool
	CreatedAt        time.Time
}

const (
	UsageKindReply   = "reply"
	UsageKindSummary = "summary"
)

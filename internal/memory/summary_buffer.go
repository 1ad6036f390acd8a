// Package memory keeps a conversation's context bounded: recent turns are held
// verbatim and folded into a model-written summary once they outgrow a token budget.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"bedrock-chatbot/internal/domain"
	"bedrock-chatbot/internal/domain/model"
	"bedrock-chatbot/internal/domain/ports/adapter"
)

const (
	DefaultMaxTokenLimit = 300

	humanPrefix  = "Human"
	aiPrefix     = "AI"
	systemPrefix = "System"
)

const summaryPrompt = `Condense the conversation below into one short paragraph written in the third person.
Extend the existing summary with the new lines; keep names, facts and open requests, drop small talk.
Reply with the summary only.

Existing summary:
%s

New lines:
%s

Updated summary:`

var errEmptySummary = errors.New("model returned an empty summary")

// SummaryBuffer is a session's rolling memory. It is owned by one session and
// is not safe for concurrent use; callers serialize turns.
type SummaryBuffer struct {
	llm    adapter.AIServiceAdapter
	tok    Tokenizer
	budget int
	log    *zerolog.Logger

	summary string
	tail    []model.ChatMessage

	lastSummaryUsage adapter.Usage
}

func NewSummaryBuffer(llm adapter.AIServiceAdapter, tok Tokenizer, maxTokenLimit int, logger *zerolog.Logger) (*SummaryBuffer, error) {
	if llm == nil || tok == nil {
		return nil, fmt.Errorf("%w: summary buffer needs a model client and a tokenizer", domain.ErrInvalidArgument)
	}
	if maxTokenLimit <= 0 {
		maxTokenLimit = DefaultMaxTokenLimit
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &SummaryBuffer{llm: llm, tok: tok, budget: maxTokenLimit, log: logger}, nil
}

// RecordAndCompact appends the exchange and, when the tail outgrows the budget,
// folds summary and tail into a new summary with one model call. On failure the
// buffer is left exactly as it was before the call.
func (b *SummaryBuffer) RecordAndCompact(ctx context.Context, turn model.Turn) (bool, error) {
	prevTail := b.tail
	b.tail = append(b.tail[:len(b.tail):len(b.tail)], turn.Messages()...)

	tailTokens := b.TailTokens()
	if tailTokens <= b.budget {
		return false, nil
	}

	summary, err := b.summarize(ctx)
	if err != nil {
		b.tail = prevTail
		b.log.Warn().Err(err).Int("tail_tokens", tailTokens).Msg("memory compaction failed; turn not recorded")
		return false, fmt.Errorf("%w: %w", domain.ErrMemorySummarization, err)
	}

	b.log.Debug().
		Int("tail_tokens", tailTokens).
		Int("summary_tokens", b.tok.Count(summary)).
		Int("budget", b.budget).
		Msg("memory compacted")
	b.summary = summary
	b.tail = nil
	return true, nil
}

func (b *SummaryBuffer) summarize(ctx context.Context) (string, error) {
	prompt := fmt.Sprintf(summaryPrompt, b.summary, renderLines(b.tail))
	out, usage, err := b.llm.ChatWithUsage(ctx, adapter.ChatRequest{
		Messages: []adapter.Message{{Role: model.RoleUser, Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	b.lastSummaryUsage = usage
	out = strings.TrimSpace(b.tok.Truncate(strings.TrimSpace(out), b.budget))
	if out == "" {
		return "", errEmptySummary
	}
	return out, nil
}

// Context renders summary then tail, oldest first, as prompt lines.
func (b *SummaryBuffer) Context() string {
	var sb strings.Builder
	if b.summary != "" {
		sb.WriteString(systemPrefix + ": " + b.summary)
	}
	if lines := renderLines(b.tail); lines != "" {
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(lines)
	}
	return sb.String()
}

func (b *SummaryBuffer) Summary() string { return b.summary }

func (b *SummaryBuffer) Tail() []model.ChatMessage {
	out := make([]model.ChatMessage, len(b.tail))
	copy(out, b.tail)
	return out
}

func (b *SummaryBuffer) TailTokens() int {
	return b.tok.Count(renderLines(b.tail))
}

func (b *SummaryBuffer) Budget() int { return b.budget }

// LastSummaryUsage reports the token usage of the most recent summarization call.
func (b *SummaryBuffer) LastSummaryUsage() adapter.Usage { return b.lastSummaryUsage }

func (b *SummaryBuffer) Snapshot() model.MemorySnapshot {
	return model.MemorySnapshot{Summary: b.summary, Tail: b.Tail()}
}

// Load replaces the buffer state with a previously taken snapshot.
func (b *SummaryBuffer) Load(s model.MemorySnapshot) {
	b.summary = s.Summary
	b.tail = make([]model.ChatMessage, len(s.Tail))
	copy(b.tail, s.Tail)
}

func (b *SummaryBuffer) Clear() {
	b.summary = ""
	b.tail = nil
}

func renderLines(msgs []model.ChatMessage) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, speaker(m.Role)+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

func speaker(role string) string {
	if role == model.RoleAssistant {
		return aiPrefix
	}
	return humanPrefix
}

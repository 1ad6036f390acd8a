//go:build !integration

package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bedrock-chatbot/internal/domain"
	"bedrock-chatbot/internal/domain/model"
	"bedrock-chatbot/internal/domain/ports/adapter"
)

// wordTokenizer counts whitespace separated words.
type wordTokenizer struct{}

func (wordTokenizer) Count(text string) int { return len(strings.Fields(text)) }

func (wordTokenizer) Truncate(text string, max int) string {
	f := strings.Fields(text)
	if len(f) <= max {
		return text
	}
	return strings.Join(f[:max], " ")
}

type fakeAI struct {
	reply string
	err   error
	calls []adapter.ChatRequest
}

func (f *fakeAI) ModelInfo() adapter.ModelInfo {
	return adapter.ModelInfo{Provider: "fake", Model: "fake", Decoding: model.DefaultDecoding()}
}

func (f *fakeAI) Chat(ctx context.Context, req adapter.ChatRequest) (string, error) {
	out, _, err := f.ChatWithUsage(ctx, req)
	return out, err
}

func (f *fakeAI) ChatWithUsage(_ context.Context, req adapter.ChatRequest) (string, adapter.Usage, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return "", adapter.Usage{}, f.err
	}
	return f.reply, adapter.Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2}, nil
}

func newBuffer(t *testing.T, ai *fakeAI, budget int) *SummaryBuffer {
	t.Helper()
	b, err := NewSummaryBuffer(ai, wordTokenizer{}, budget, nil)
	require.NoError(t, err)
	return b
}

func TestNewSummaryBuffer(t *testing.T) {
	t.Run("should reject a missing client", func(t *testing.T) {
		_, err := NewSummaryBuffer(nil, wordTokenizer{}, 10, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
	t.Run("should default the budget", func(t *testing.T) {
		b, err := NewSummaryBuffer(&fakeAI{}, wordTokenizer{}, 0, nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultMaxTokenLimit, b.Budget())
	})
}

func TestSummaryBuffer_UnderBudget(t *testing.T) {
	ai := &fakeAI{reply: "unused"}
	b := newBuffer(t, ai, 100)

	turns := []model.Turn{
		{Input: "Hello", Reply: "Hi, how can I help?"},
		{Input: "What is Go?", Reply: "A programming language."},
	}
	for _, turn := range turns {
		compacted, err := b.RecordAndCompact(context.Background(), turn)
		require.NoError(t, err)
		assert.False(t, compacted)
	}

	want := "Human: Hello\nAI: Hi, how can I help?\nHuman: What is Go?\nAI: A programming language."
	assert.Equal(t, want, b.Context())
	assert.Empty(t, b.Summary())
	assert.Len(t, b.Tail(), 4)
	assert.Empty(t, ai.calls, "no summarization under budget")
}

func TestSummaryBuffer_CompactsOverBudget(t *testing.T) {
	ai := &fakeAI{reply: "The human greeted the AI and asked about Go."}
	b := newBuffer(t, ai, 10)

	_, err := b.RecordAndCompact(context.Background(), model.Turn{Input: "Hello there", Reply: "Hi"})
	require.NoError(t, err)
	compacted, err := b.RecordAndCompact(context.Background(), model.Turn{Input: "Tell me about Go please", Reply: "Go is a language"})
	require.NoError(t, err)

	require.True(t, compacted)
	assert.Empty(t, b.Tail())
	assert.NotEmpty(t, b.Summary())
	assert.LessOrEqual(t, wordTokenizer{}.Count(b.Summary()), 10)
	require.Len(t, ai.calls, 1)
	assert.Contains(t, ai.calls[0].Messages[0].Content, "Human: Hello there")

	_, err = b.RecordAndCompact(context.Background(), model.Turn{Input: "Thanks", Reply: "Welcome"})
	require.NoError(t, err)
	ctx := b.Context()
	assert.True(t, strings.HasPrefix(ctx, "System: "))
	assert.True(t, strings.HasSuffix(ctx, "Human: Thanks\nAI: Welcome"))
	assert.NotContains(t, ctx, "Hello there")
	assert.NotContains(t, ctx, "Go is a language")
}

func TestSummaryBuffer_TruncatesLongSummary(t *testing.T) {
	ai := &fakeAI{reply: strings.Repeat("word ", 50)}
	b := newBuffer(t, ai, 5)

	compacted, err := b.RecordAndCompact(context.Background(), model.Turn{Input: "one two three", Reply: "four five six"})
	require.NoError(t, err)
	require.True(t, compacted)
	assert.Equal(t, 5, wordTokenizer{}.Count(b.Summary()))
}

func TestSummaryBuffer_FailureRollsBack(t *testing.T) {
	t.Run("should keep prior state when the model call fails", func(t *testing.T) {
		cause := errors.New("boom")
		ai := &fakeAI{reply: "ok"}
		b := newBuffer(t, ai, 8)
		_, err := b.RecordAndCompact(context.Background(), model.Turn{Input: "a", Reply: "b"})
		require.NoError(t, err)
		before := b.Snapshot()

		ai.err = cause
		_, err = b.RecordAndCompact(context.Background(), model.Turn{Input: "many more words here", Reply: "and a long reply too"})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrMemorySummarization)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, before, b.Snapshot())
	})

	t.Run("should treat an empty summary as a failure", func(t *testing.T) {
		ai := &fakeAI{reply: "   "}
		b := newBuffer(t, ai, 2)
		_, err := b.RecordAndCompact(context.Background(), model.Turn{Input: "hello world", Reply: "hi"})
		assert.ErrorIs(t, err, domain.ErrMemorySummarization)
		assert.Empty(t, b.Tail())
		assert.Empty(t, b.Summary())
	})
}

func TestSummaryBuffer_SnapshotLoadClear(t *testing.T) {
	b := newBuffer(t, &fakeAI{}, 100)
	snap := model.MemorySnapshot{
		Summary: "earlier chat",
		Tail:    model.Turn{Input: "hi", Reply: "hello"}.Messages(),
	}
	b.Load(snap)
	assert.Equal(t, snap, b.Snapshot())
	assert.Equal(t, "System: earlier chat\nHuman: hi\nAI: hello", b.Context())

	b.Clear()
	assert.Empty(t, b.Context())
	assert.True(t, b.Snapshot().IsEmpty())
}

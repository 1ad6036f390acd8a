// File: internal/usecase/conversation.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"bedrock-chatbot/internal/domain"
	"bedrock-chatbot/internal/domain/model"
	"bedrock-chatbot/internal/domain/ports/adapter"
	"bedrock-chatbot/internal/memory"
)

const conversationPrompt = `Below is a friendly conversation between a person and an AI assistant. The assistant is chatty and answers with specific details drawn from the conversation so far. When it does not know something it says so plainly instead of guessing.

Current conversation:
%s
Human: %s
AI:`

var errEmptyReply = errors.New("model returned an empty reply")

// TurnResult is the outcome of one conversation turn.
type TurnResult struct {
	Reply     string
	Usage     adapter.Usage
	Compacted bool
	// SummaryUsage is set when Compacted.
	SummaryUsage adapter.Usage
}

// Converse runs one turn: it sends input with the memory's context to llm and
// records the exchange in mem. Client and memory errors propagate unchanged;
// when the model call fails mem is not touched. On a memory error the result
// still carries the reply call's usage.
func Converse(ctx context.Context, llm adapter.AIServiceAdapter, mem *memory.SummaryBuffer, input string) (TurnResult, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return TurnResult{}, fmt.Errorf("%w: empty input", domain.ErrInvalidArgument)
	}
	if llm == nil || mem == nil {
		return TurnResult{}, fmt.Errorf("%w: converse needs a client and a memory", domain.ErrInvalidArgument)
	}

	ctx, span := otel.Tracer("bedrock-chatbot/usecase").Start(ctx, "chat.turn")
	defer span.End()

	prompt := RenderPrompt(mem.Context(), input)
	reply, usage, err := llm.ChatWithUsage(ctx, adapter.ChatRequest{
		Messages: []adapter.Message{{Role: model.RoleUser, Content: prompt}},
	})
	if err == nil {
		reply = strings.TrimSpace(reply)
		if reply == "" {
			err = errEmptyReply
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "model call failed")
		return TurnResult{}, err
	}

	compacted, err := mem.RecordAndCompact(ctx, model.Turn{Input: input, Reply: reply})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "memory compaction failed")
		return TurnResult{Usage: usage}, err
	}
	span.SetAttributes(attribute.Bool("memory.compacted", compacted))
	res := TurnResult{Reply: reply, Usage: usage, Compacted: compacted}
	if compacted {
		res.SummaryUsage = mem.LastSummaryUsage()
	}
	return res, nil
}

// RenderPrompt builds the single user message sent for a turn.
func RenderPrompt(history, input string) string {
	return fmt.Sprintf(conversationPrompt, history, input)
}

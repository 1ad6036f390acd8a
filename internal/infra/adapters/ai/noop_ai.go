package ai

import (
	"context"
	"strings"

	"bedrock-chatbot/internal/domain/model"
	"bedrock-chatbot/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*NoopAIAdapter)(nil)

const noopProvider = "noop"

// NoopAIAdapter implements adapter.AIServiceAdapter for local/dev testing.
// It answers deterministically without any network call: chat prompts get the
// last human line echoed back, anything else gets its first words.
type NoopAIAdapter struct {
	model    string
	decoding model.DecodingConfig
}

// NewNoopAIAdapter constructs the noop adapter.
func NewNoopAIAdapter(modelName string, dec model.DecodingConfig) *NoopAIAdapter {
	if modelName == "" {
		modelName = "noop-echo"
	}
	return &NoopAIAdapter{model: modelName, decoding: dec}
}

func (a *NoopAIAdapter) ModelInfo() adapter.ModelInfo {
	return adapter.ModelInfo{Provider: noopProvider, Model: a.model, Decoding: a.decoding}
}

func (a *NoopAIAdapter) Chat(ctx context.Context, req adapter.ChatRequest) (string, error) {
	out, _, err := a.ChatWithUsage(ctx, req)
	return out, err
}

func (a *NoopAIAdapter) ChatWithUsage(ctx context.Context, req adapter.ChatRequest) (string, adapter.Usage, error) {
	if err := ctx.Err(); err != nil {
		return "", adapter.Usage{}, classify(noopProvider, err)
	}
	var prompt string
	if n := len(req.Messages); n > 0 {
		prompt = req.Messages[n-1].Content
	}

	reply := ""
	if strings.HasSuffix(strings.TrimSpace(prompt), "AI:") {
		lines := strings.Split(prompt, "\n")
		for i := len(lines) - 1; i >= 0; i-- {
			if rest, ok := strings.CutPrefix(lines[i], "Human: "); ok {
				reply = "You said: " + strings.TrimSpace(rest)
				break
			}
		}
	}
	if reply == "" {
		words := strings.Fields(prompt)
		if len(words) > 40 {
			words = words[:40]
		}
		reply = strings.Join(words, " ")
	}
	if reply == "" {
		reply = "..."
	}

	in := len(strings.Fields(req.System)) + len(strings.Fields(prompt))
	out := len(strings.Fields(reply))
	return reply, adapter.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out}, nil
}

// File: internal/infra/adapters/ai/gemini_adapter.go
package ai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"bedrock-chatbot/internal/domain"
	"bedrock-chatbot/internal/domain/model"
	"bedrock-chatbot/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*GeminiAdapter)(nil)

const geminiProvider = "gemini"

type GeminiAdapter struct {
	client   *genai.Client
	model    string
	decoding model.DecodingConfig
}

// NewGeminiAdapter creates a Gemini adapter using the official SDK.
func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, modelName string, dec model.DecodingConfig) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %w: empty api key", geminiProvider, domain.ErrAuthentication)
	}
	if err := dec.Validate(); err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", geminiProvider, err)
	}
	return &GeminiAdapter{client: c, model: modelName, decoding: dec}, nil
}

func (g *GeminiAdapter) ModelInfo() adapter.ModelInfo {
	return adapter.ModelInfo{Provider: geminiProvider, Model: g.model, Decoding: g.decoding}
}

func (g *GeminiAdapter) Chat(ctx context.Context, req adapter.ChatRequest) (string, error) {
	reply, _, err := g.ChatWithUsage(ctx, req)
	return reply, err
}

func (g *GeminiAdapter) ChatWithUsage(ctx context.Context, req adapter.ChatRequest) (string, adapter.Usage, error) {
	if len(req.Messages) == 0 {
		return "", adapter.Usage{}, fmt.Errorf("%s: %w: no messages", geminiProvider, domain.ErrInvalidArgument)
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, toGenAIHistory(req.Messages), g.config(req.System))
	if err != nil {
		return "", adapter.Usage{}, classify(geminiProvider, err)
	}

	text := resp.Text()
	if text == "" {
		return "", adapter.Usage{}, fmt.Errorf("%s: empty candidate text", geminiProvider)
	}
	u := adapter.Usage{}
	if resp.UsageMetadata != nil {
		u.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		u.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		u.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return text, u, nil
}

// --- internal ---

func (g *GeminiAdapter) config(system string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(g.decoding.MaxTokens),
		Temperature:     genai.Ptr(float32(g.decoding.Temperature)),
		TopP:            genai.Ptr(float32(g.decoding.TopP)),
		StopSequences:   g.decoding.StopSequences(),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	return cfg
}

func toGenAIHistory(msgs []adapter.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := genai.RoleUser
		switch strings.ToLower(m.Role) {
		case model.RoleAssistant, "model":
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(m.Content, genai.Role(role)))
	}
	return out
}

package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"bedrock-chatbot/internal/domain"
	"bedrock-chatbot/internal/domain/model"
	"bedrock-chatbot/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.AIServiceAdapter = (*OpenAIAdapter)(nil)

const openAIProvider = "openai"

// OpenAIAdapter implements adapter.AIServiceAdapter using Chat Completions API.
// It also serves OpenAI-compatible gateways through baseURL.
type OpenAIAdapter struct {
	client   openai.Client
	model    string
	decoding model.DecodingConfig
}

func NewOpenAIAdapter(apiKey, baseURL, modelName string, dec model.DecodingConfig) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %w: api key empty", openAIProvider, domain.ErrAuthentication)
	}
	if err := dec.Validate(); err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gpt-4o-mini"
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIAdapter{
		client:   openai.NewClient(opts...),
		model:    modelName,
		decoding: dec,
	}, nil
}

func (o *OpenAIAdapter) ModelInfo() adapter.ModelInfo {
	return adapter.ModelInfo{Provider: openAIProvider, Model: o.model, Decoding: o.decoding}
}

func (o *OpenAIAdapter) Chat(ctx context.Context, req adapter.ChatRequest) (string, error) {
	out, _, err := o.ChatWithUsage(ctx, req)
	return out, err
}

func (o *OpenAIAdapter) ChatWithUsage(ctx context.Context, req adapter.ChatRequest) (string, adapter.Usage, error) {
	resp, err := o.client.Chat.Completions.New(ctx, o.params(req))
	if err != nil {
		return "", adapter.Usage{}, classify(openAIProvider, err)
	}
	for _, c := range resp.Choices {
		if c.Message.Content != "" {
			u := adapter.Usage{
				PromptTokens:     int(resp.Usage.PromptTokens),
				CompletionTokens: int(resp.Usage.CompletionTokens),
				TotalTokens:      int(resp.Usage.TotalTokens),
			}
			return c.Message.Content, u, nil
		}
	}
	return "", adapter.Usage{}, fmt.Errorf("%s: %w", openAIProvider, errors.New("no choice content"))
}

func (o *OpenAIAdapter) params(req adapter.ChatRequest) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		if m.Role == model.RoleAssistant {
			msgs = append(msgs, openai.AssistantMessage(m.Content))
			continue
		}
		msgs = append(msgs, openai.UserMessage(m.Content))
	}
	p := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model),
		Messages:    msgs,
		MaxTokens:   openai.Int(int64(o.decoding.MaxTokens)),
		Temperature: openai.Float(o.decoding.Temperature),
		TopP:        openai.Float(o.decoding.TopP),
	}
	if stops := o.decoding.StopSequences(); len(stops) > 0 {
		p.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: stops}
	}
	return p
}

package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"bedrock-chatbot/internal/domain"
	"bedrock-chatbot/internal/domain/model"
	"bedrock-chatbot/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.AIServiceAdapter = (*BedrockAdapter)(nil)

const (
	bedrockProvider         = "bedrock"
	bedrockAnthropicVersion = "bedrock-2023-05-31"
)

// BedrockOptions locate the endpoint and the credentials.
type BedrockOptions struct {
	Region   string
	Profile  string // named shared credentials profile
	Endpoint string // optional base endpoint override
}

// BedrockAdapter calls Anthropic models through Bedrock InvokeModel.
// Construction does no network I/O; credentials resolve at first use.
type BedrockAdapter struct {
	client   *bedrockruntime.Client
	creds    aws.CredentialsProvider
	modelID  string
	decoding model.DecodingConfig
}

func NewBedrockAdapter(ctx context.Context, opts BedrockOptions, modelID string, dec model.DecodingConfig) (*BedrockAdapter, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRetryMaxAttempts(1),
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(opts.Profile))
	}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: load aws config: %w", bedrockProvider, domain.ErrAuthentication, err)
	}
	return NewBedrockAdapterFromConfig(cfg, opts.Endpoint, modelID, dec)
}

// NewBedrockAdapterFromConfig builds the adapter on an already resolved aws.Config.
func NewBedrockAdapterFromConfig(cfg aws.Config, endpoint, modelID string, dec model.DecodingConfig) (*BedrockAdapter, error) {
	if err := dec.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(modelID) == "" {
		return nil, fmt.Errorf("%s: %w: empty model id", bedrockProvider, domain.ErrInvalidArgument)
	}
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("%s: %w: no credentials provider", bedrockProvider, domain.ErrAuthentication)
	}
	client := bedrockruntime.NewFromConfig(cfg, func(o *bedrockruntime.Options) {
		o.Retryer = aws.NopRetryer{}
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return &BedrockAdapter{
		client:   client,
		creds:    cfg.Credentials,
		modelID:  modelID,
		decoding: dec,
	}, nil
}

func (b *BedrockAdapter) ModelInfo() adapter.ModelInfo {
	return adapter.ModelInfo{Provider: bedrockProvider, Model: b.modelID, Decoding: b.decoding}
}

func (b *BedrockAdapter) Chat(ctx context.Context, req adapter.ChatRequest) (string, error) {
	out, _, err := b.ChatWithUsage(ctx, req)
	return out, err
}

func (b *BedrockAdapter) ChatWithUsage(ctx context.Context, req adapter.ChatRequest) (string, adapter.Usage, error) {
	body, err := json.Marshal(newAnthropicRequest(req, b.decoding))
	if err != nil {
		return "", adapter.Usage{}, fmt.Errorf("%s: encode request: %w", bedrockProvider, err)
	}

	// Surface credential problems as such rather than as a signing failure.
	if _, err := b.creds.Retrieve(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", adapter.Usage{}, classify(bedrockProvider, err)
		}
		return "", adapter.Usage{}, fmt.Errorf("%s: %w: %w", bedrockProvider, domain.ErrAuthentication, err)
	}

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", adapter.Usage{}, classify(bedrockProvider, err)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", adapter.Usage{}, fmt.Errorf("%s: decode response: %w", bedrockProvider, err)
	}
	text := resp.text()
	if text == "" {
		return "", adapter.Usage{}, fmt.Errorf("%s: no text content in response (stop_reason=%s)", bedrockProvider, resp.StopReason)
	}
	u := adapter.Usage{
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}
	return text, u, nil
}

// --- wire format (Anthropic Messages on Bedrock) ---

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Temperature      float64            `json:"temperature"`
	TopP             float64            `json:"top_p"`
	StopSequences    []string           `json:"stop_sequences,omitempty"`
	System           string             `json:"system,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func newAnthropicRequest(req adapter.ChatRequest, dec model.DecodingConfig) anthropicRequest {
	msgs := make([]anthropicMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := model.RoleUser
		if m.Role == model.RoleAssistant {
			role = model.RoleAssistant
		}
		msgs = append(msgs, anthropicMessage{Role: role, Content: m.Content})
	}
	return anthropicRequest{
		AnthropicVersion: bedrockAnthropicVersion,
		MaxTokens:        dec.MaxTokens,
		Temperature:      dec.Temperature,
		TopP:             dec.TopP,
		StopSequences:    dec.StopSequences(),
		System:           req.System,
		Messages:         msgs,
	}
}

func (r anthropicResponse) text() string {
	var sb strings.Builder
	for _, c := range r.Content {
		if c.Type == "text" || c.Type == "" {
			sb.WriteString(c.Text)
		}
	}
	return sb.String()
}

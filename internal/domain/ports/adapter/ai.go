package adapter

import (
	"context"

	"bedrock-chatbot/internal/domain/model"
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant"
	Content string `json:"content"`
}

// ChatRequest is one model call. System is sent through the provider's
// dedicated system slot when it has one.
type ChatRequest struct {
	System   string
	Messages []Message
}

// ModelInfo describes the model a client is bound to.
type ModelInfo struct {
	Provider string
	Model    string
	Decoding model.DecodingConfig
}

// Usage for a single chat call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// AIServiceAdapter is the port for LLM chat. A client is bound to one model
// and one decoding configuration at construction and is safe for concurrent use.
type AIServiceAdapter interface {
	ModelInfo() ModelInfo

	// Chat returns only the assistant text
	Chat(ctx context.Context, req ChatRequest) (string, error)

	// ChatWithUsage returns assistant text + usage as reported by the provider.
	ChatWithUsage(ctx context.Context, req ChatRequest) (string, Usage, error)
}

package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"bedrock-chatbot/internal/domain"
	"bedrock-chatbot/internal/domain/ports/adapter"
	"bedrock-chatbot/internal/infra/logging"
	"bedrock-chatbot/internal/infra/metrics"
)

var _ adapter.AIServiceAdapter = (*instrumentedAI)(nil)

// instrumentedAI bounds each call with a deadline and records latency,
// token usage and a span around it.
type instrumentedAI struct {
	inner   adapter.AIServiceAdapter
	timeout time.Duration
	log     *zerolog.Logger
	tracer  trace.Tracer
}

func NewInstrumentedAI(inner adapter.AIServiceAdapter, timeout time.Duration, logger *zerolog.Logger) adapter.AIServiceAdapter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &instrumentedAI{
		inner:   inner,
		timeout: timeout,
		log:     logger,
		tracer:  otel.Tracer("bedrock-chatbot/ai"),
	}
}

func (i *instrumentedAI) ModelInfo() adapter.ModelInfo {
	return i.inner.ModelInfo()
}

func (i *instrumentedAI) Chat(ctx context.Context, req adapter.ChatRequest) (string, error) {
	out, _, err := i.ChatWithUsage(ctx, req)
	return out, err
}

func (i *instrumentedAI) ChatWithUsage(ctx context.Context, req adapter.ChatRequest) (string, adapter.Usage, error) {
	info := i.inner.ModelInfo()
	ctx, span := i.tracer.Start(ctx, "ai.chat", trace.WithAttributes(
		attribute.String("ai.provider", info.Provider),
		attribute.String("ai.model", info.Model),
		attribute.Int("ai.max_tokens", info.Decoding.MaxTokens),
	))
	defer span.End()

	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	start := time.Now()
	out, u, err := i.inner.ChatWithUsage(ctx, req)
	latency := time.Since(start)

	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, domain.ErrRequestTimeout) {
		err = fmt.Errorf("%s: %w: %w", info.Provider, domain.ErrRequestTimeout, err)
	}

	metrics.ObserveChatUsage(info.Provider, info.Model, u.PromptTokens, u.CompletionTokens, int(latency.Milliseconds()), err == nil)
	span.SetAttributes(
		attribute.Int("ai.tokens_in", u.PromptTokens),
		attribute.Int("ai.tokens_out", u.CompletionTokens),
	)

	l := logging.With(ctx, i.log)
	if err != nil {
		metrics.IncAICallError(info.Provider, errorClass(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, errorClass(err))
		l.Warn().Err(err).Str("provider", info.Provider).Dur("latency", latency).Msg("ai call failed")
		return "", u, err
	}
	l.Debug().
		Str("provider", info.Provider).
		Str("model", info.Model).
		Int("tokens_in", u.PromptTokens).
		Int("tokens_out", u.CompletionTokens).
		Dur("latency", latency).
		Msg("ai call")
	return out, u, nil
}

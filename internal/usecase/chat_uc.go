// File: internal/usecase/chat_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bedrock-chatbot/internal/domain"
	"bedrock-chatbot/internal/domain/model"
	"bedrock-chatbot/internal/domain/ports/adapter"
	"bedrock-chatbot/internal/domain/ports/repository"
	"bedrock-chatbot/internal/infra/logging"
	"bedrock-chatbot/internal/infra/metrics"
	"bedrock-chatbot/internal/memory"
)

// Compile-time check
var _ ChatUseCase = (*chatUC)(nil)

type ChatUseCase interface {
	StartSession(ctx context.Context) (*model.ChatSession, error)
	SendMessage(ctx context.Context, sessionID, text string) (reply string, err error)
	Transcript(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
	Memory(ctx context.Context, sessionID string) (model.MemorySnapshot, error)
	EndSession(ctx context.Context, sessionID string) error
}

// Background runs fire-and-forget work off the request path.
type Background interface {
	Submit(task func(ctx context.Context) error) error
}

type ChatOptions struct {
	MaxTokenLimit int
	DevMode       bool
}

type chatUC struct {
	sessions repository.ChatSessionRepository
	locker   repository.SessionLocker
	ai       adapter.AIServiceAdapter
	tok      memory.Tokenizer
	usage    repository.UsageRepository // optional
	bg       Background                 // optional
	opts     ChatOptions
	log      *zerolog.Logger
}

// NewChatUseCase wires the session use case. ai is shared by every session
// for both replies and summaries; usage and bg may be nil.
func NewChatUseCase(
	sessions repository.ChatSessionRepository,
	locker repository.SessionLocker,
	ai adapter.AIServiceAdapter,
	tok memory.Tokenizer,
	usage repository.UsageRepository,
	bg Background,
	opts ChatOptions,
	logger *zerolog.Logger,
) *chatUC {
	if opts.MaxTokenLimit <= 0 {
		opts.MaxTokenLimit = memory.DefaultMaxTokenLimit
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &chatUC{
		sessions: sessions,
		locker:   locker,
		ai:       ai,
		tok:      tok,
		usage:    usage,
		bg:       bg,
		opts:     opts,
		log:      logger,
	}
}

func (c *chatUC) StartSession(ctx context.Context) (*model.ChatSession, error) {
	s := model.NewChatSession(uuid.NewString())
	if err := c.sessions.Save(ctx, s); err != nil {
		return nil, err
	}
	c.refreshActive(ctx)
	logging.With(logging.WithSessID(ctx, s.ID), c.log).Info().Msg("session started")
	return s, nil
}

func (c *chatUC) SendMessage(ctx context.Context, sessionID, text string) (string, error) {
	ctx = logging.WithSessID(ctx, sessionID)
	log := logging.With(ctx, c.log)
	defer logging.TraceDuration(log, "ChatUC.SendMessage")()

	text = strings.TrimSpace(text)
	if text == "" {
		metrics.IncTurn("invalid")
		return "", fmt.Errorf("%w: empty message", domain.ErrInvalidArgument)
	}

	unlock, err := c.locker.Lock(ctx, sessionID)
	if err != nil {
		return "", err
	}
	defer unlock()

	s, err := c.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return "", err
	}

	mem, err := memory.NewSummaryBuffer(c.ai, c.tok, c.opts.MaxTokenLimit, log)
	if err != nil {
		return "", err
	}
	mem.Load(s.Memory)

	start := time.Now()
	res, err := Converse(ctx, c.ai, mem, text)
	latency := time.Since(start)
	if err != nil {
		result := turnResult(err)
		metrics.IncTurn(result)
		log.Error().Err(err).Str("result", result).Str("input", logging.Redact(text, c.opts.DevMode)).Msg("turn failed")
		if result == "summarization" {
			metrics.IncCompaction("failed")
			// the reply call went through; the summary call did not
			c.recordUsage(ctx, sessionID, model.UsageKindReply, res.Usage, latency, true)
			c.recordUsage(ctx, sessionID, model.UsageKindSummary, adapter.Usage{}, 0, false)
		} else {
			c.recordUsage(ctx, sessionID, model.UsageKindReply, adapter.Usage{}, latency, false)
		}
		return "", err
	}
	if res.Compacted {
		metrics.IncCompaction("ok")
	}

	s.AddMessage(model.RoleUser, text)
	s.AddMessage(model.RoleAssistant, res.Reply)
	s.Memory = mem.Snapshot()
	if err := c.sessions.Save(ctx, s); err != nil {
		metrics.IncTurn("error")
		return "", err
	}
	metrics.IncTurn("ok")

	log.Debug().
		Bool("compacted", res.Compacted).
		Int("tail_tokens", mem.TailTokens()).
		Str("reply", logging.Redact(res.Reply, c.opts.DevMode)).
		Msg("turn completed")

	c.recordUsage(ctx, s.ID, model.UsageKindReply, res.Usage, latency, true)
	if res.Compacted {
		c.recordUsage(ctx, s.ID, model.UsageKindSummary, res.SummaryUsage, 0, true)
	}
	return res.Reply, nil
}

func (c *chatUC) Transcript(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	s, err := c.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.Transcript, nil
}

func (c *chatUC) Memory(ctx context.Context, sessionID string) (model.MemorySnapshot, error) {
	s, err := c.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return model.MemorySnapshot{}, err
	}
	return s.Memory, nil
}

func (c *chatUC) EndSession(ctx context.Context, sessionID string) error {
	if err := c.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	c.refreshActive(ctx)
	logging.With(logging.WithSessID(ctx, sessionID), c.log).Info().Msg("session ended")
	return nil
}

// --- internal ---

func (c *chatUC) refreshActive(ctx context.Context) {
	if n, err := c.sessions.Count(ctx); err == nil {
		metrics.SetActiveSessions(n)
	}
}

func (c *chatUC) recordUsage(ctx context.Context, sessionID, kind string, u adapter.Usage, latency time.Duration, success bool) {
	if c.usage == nil {
		return
	}
	info := c.ai.ModelInfo()
	rec := &model.UsageRecord{
		ID:               uuid.NewString(),
		SessionID:        sessionID,
		Provider:         info.Provider,
		Model:            info.Model,
		Kind:             kind,
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		LatencyMs:        int(latency.Milliseconds()),
		Success:          success,
		CreatedAt:        time.Now(),
	}
	save := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return c.usage.Save(ctx, rec)
	}
	if c.bg == nil {
		if err := save(context.WithoutCancel(ctx)); err != nil {
			logging.With(ctx, c.log).Warn().Err(err).Msg("usage record not saved")
		}
		return
	}
	if err := c.bg.Submit(save); err != nil {
		logging.With(ctx, c.log).Warn().Err(err).Msg("usage record dropped")
	}
}

// turnResult maps an error to the chat_turns_total result label.
func turnResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrMemorySummarization):
		return "summarization"
	case errors.Is(err, domain.ErrInvalidArgument):
		return "invalid"
	case errors.Is(err, domain.ErrAuthentication):
		return "auth"
	case errors.Is(err, domain.ErrServiceUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrRequestTimeout):
		return "timeout"
	default:
		return "error"
	}
}

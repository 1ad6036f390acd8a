package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"bedrock-chatbot/internal/domain"
	"bedrock-chatbot/internal/domain/model"
	"bedrock-chatbot/internal/domain/ports/adapter"
	"bedrock-chatbot/internal/domain/ports/repository"
)

// ---- Fakes ----

// scriptedAI answers conversation prompts with reply and anything else
// (summarization) with summary.
type scriptedAI struct {
	mu           sync.Mutex
	reply        string
	summary      string
	err          error
	summaryErr   error
	requests     []adapter.ChatRequest
	summaryCalls int
}

func (f *scriptedAI) ModelInfo() adapter.ModelInfo {
	return adapter.ModelInfo{Provider: "fake", Model: "fake-1", Decoding: model.DefaultDecoding()}
}

func (f *scriptedAI) Chat(ctx context.Context, req adapter.ChatRequest) (string, error) {
	out, _, err := f.ChatWithUsage(ctx, req)
	return out, err
}

func (f *scriptedAI) ChatWithUsage(_ context.Context, req adapter.ChatRequest) (string, adapter.Usage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", adapter.Usage{}, f.err
	}
	usage := adapter.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}
	if strings.HasSuffix(strings.TrimSpace(req.Messages[len(req.Messages)-1].Content), "AI:") {
		return f.reply, usage, nil
	}
	f.summaryCalls++
	if f.summaryErr != nil {
		return "", adapter.Usage{}, f.summaryErr
	}
	if f.summary == "" {
		return "A short summary of the chat.", usage, nil
	}
	return f.summary, usage, nil
}

type memChatRepo struct {
	mu    sync.Mutex
	byID  map[string]*model.ChatSession
	saves int
}

func newMemChatRepo() *memChatRepo {
	return &memChatRepo{byID: map[string]*model.ChatSession{}}
}

func (m *memChatRepo) Save(_ context.Context, s *model.ChatSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	cp.Transcript = append([]model.ChatMessage(nil), s.Transcript...)
	m.byID[s.ID] = &cp
	m.saves++
	return nil
}

func (m *memChatRepo) FindByID(_ context.Context, id string) (*model.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	cp.Transcript = append([]model.ChatMessage(nil), s.Transcript...)
	return &cp, nil
}

func (m *memChatRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memChatRepo) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID), nil
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocker() *fakeLocker { return &fakeLocker{held: map[string]bool{}} }

func (l *fakeLocker) Lock(_ context.Context, id string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[id] {
		return nil, domain.ErrSessionBusy
	}
	l.held[id] = true
	return func() {
		l.mu.Lock()
		delete(l.held, id)
		l.mu.Unlock()
	}, nil
}

type fakeUsageRepo struct {
	mu   sync.Mutex
	recs []*model.UsageRecord
}

func (f *fakeUsageRepo) Save(_ context.Context, rec *model.UsageRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, rec)
	return nil
}

func (f *fakeUsageRepo) TotalsSince(_ context.Context, since time.Time) (repository.UsageTotals, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var t repository.UsageTotals
	for _, r := range f.recs {
		if r.CreatedAt.Before(since) {
			continue
		}
		t.Calls++
		t.PromptTokens += r.PromptTokens
		t.CompletionTokens += r.CompletionTokens
		if !r.Success {
			t.Failures++
		}
	}
	return t, nil
}

// inlineBackground runs tasks synchronously.
type inlineBackground struct{}

func (inlineBackground) Submit(task func(ctx context.Context) error) error {
	return task(context.Background())
}

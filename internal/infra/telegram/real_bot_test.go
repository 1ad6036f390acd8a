//go:build !integration

package telegram

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bedrock-chatbot/internal/domain"
	"bedrock-chatbot/internal/domain/model"
	ai "bedrock-chatbot/internal/infra/adapters/ai"
	"bedrock-chatbot/internal/infra/inmem"
	"bedrock-chatbot/internal/memory"
	"bedrock-chatbot/internal/usecase"
)

type fakeBot struct {
	mu      sync.Mutex
	sent    []string
	updates chan tgbotapi.Update
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.mu.Lock()
		f.sent = append(f.sent, m.Text)
		f.mu.Unlock()
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel { return f.updates }
func (f *fakeBot) StopReceivingUpdates()                                        {}

func (f *fakeBot) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeBot) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

func textUpdate(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}, Text: text}}
}

func newTestBot(t *testing.T) (*ChatBot, *fakeBot, *inmem.SessionStore) {
	t.Helper()
	tok, err := memory.NewTiktokenTokenizer(memory.DefaultEncoding)
	require.NoError(t, err)
	logger := zerolog.Nop()
	store := inmem.NewSessionStore(time.Hour)
	chat := usecase.NewChatUseCase(store, inmem.NewLocker(), ai.NewNoopAIAdapter("", model.DefaultDecoding()),
		tok, nil, nil, usecase.ChatOptions{}, &logger)
	fb := &fakeBot{updates: make(chan tgbotapi.Update)}
	return newChatBot(fb, chat, 2, time.Hour, &logger), fb, store
}

func TestChatBot_HandleUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("text messages should be answered on the chat's session", func(t *testing.T) {
		bot, fb, store := newTestBot(t)
		require.NoError(t, bot.handleUpdate(ctx, textUpdate(42, "Hello")))
		assert.Equal(t, "You said: Hello", fb.last())
		require.NoError(t, bot.handleUpdate(ctx, textUpdate(42, "Again")))

		n, _ := store.Count(ctx)
		assert.Equal(t, 1, n, "one chat keeps one session")
		s, err := store.FindByID(ctx, bot.sessions[42].id)
		require.NoError(t, err)
		assert.Len(t, s.Transcript, 4)
	})

	t.Run("different chats should get different sessions", func(t *testing.T) {
		bot, _, store := newTestBot(t)
		require.NoError(t, bot.handleUpdate(ctx, textUpdate(1, "a")))
		require.NoError(t, bot.handleUpdate(ctx, textUpdate(2, "b")))
		n, _ := store.Count(ctx)
		assert.Equal(t, 2, n)
	})

	t.Run("/reset should end the session", func(t *testing.T) {
		bot, fb, store := newTestBot(t)
		require.NoError(t, bot.handleUpdate(ctx, textUpdate(7, "remember me")))
		require.NoError(t, bot.handleUpdate(ctx, textUpdate(7, "/reset")))
		assert.Equal(t, "Conversation cleared.", fb.last())
		n, _ := store.Count(ctx)
		assert.Equal(t, 0, n)
	})

	t.Run("an evicted session should be replaced transparently", func(t *testing.T) {
		bot, fb, store := newTestBot(t)
		require.NoError(t, bot.handleUpdate(ctx, textUpdate(9, "first")))
		require.NoError(t, store.Delete(ctx, bot.sessions[9].id))
		require.NoError(t, bot.handleUpdate(ctx, textUpdate(9, "second")))
		assert.Equal(t, "You said: second", fb.last())
	})

	t.Run("non-text messages should get a hint", func(t *testing.T) {
		bot, fb, _ := newTestBot(t)
		require.NoError(t, bot.handleUpdate(ctx, textUpdate(3, "")))
		assert.Equal(t, "I can only read text messages.", fb.last())
	})
}

func TestChatBot_StartPollingStopsWithContext(t *testing.T) {
	bot, fb, _ := newTestBot(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bot.StartPolling(ctx) }()

	fb.updates <- textUpdate(5, "ping")
	assert.Eventually(t, func() bool { return fb.last() == "You said: ping" }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("polling did not stop")
	}
}

type busyChat struct{ usecase.ChatUseCase }

func (busyChat) StartSession(context.Context) (*model.ChatSession, error) {
	return model.NewChatSession("s"), nil
}

func (busyChat) SendMessage(context.Context, string, string) (string, error) {
	return "", domain.ErrSessionBusy
}

func TestChatBot_ErrorsBecomeFriendlyText(t *testing.T) {
	logger := zerolog.Nop()
	fb := &fakeBot{}
	bot := newChatBot(fb, busyChat{}, 1, time.Hour, &logger)
	require.NoError(t, bot.handleUpdate(context.Background(), textUpdate(1, "hi")))
	assert.Equal(t, "Still answering your previous message.", fb.last())
}

// slowChat answers slowly and refuses overlapping turns on a session the way
// the session locker does.
type slowChat struct {
	usecase.ChatUseCase
	inflight sync.Map // session id -> *int32
	next     int32
}

func (c *slowChat) StartSession(context.Context) (*model.ChatSession, error) {
	n := atomic.AddInt32(&c.next, 1)
	return model.NewChatSession(fmt.Sprintf("s%d", n)), nil
}

func (c *slowChat) SendMessage(_ context.Context, id, text string) (string, error) {
	v, _ := c.inflight.LoadOrStore(id, new(int32))
	busy := v.(*int32)
	if !atomic.CompareAndSwapInt32(busy, 0, 1) {
		return "", domain.ErrSessionBusy
	}
	defer atomic.StoreInt32(busy, 0)
	time.Sleep(30 * time.Millisecond)
	return "ok: " + text, nil
}

func TestChatBot_SameChatIsHandledInOrder(t *testing.T) {
	logger := zerolog.Nop()
	fb := &fakeBot{updates: make(chan tgbotapi.Update)}
	bot := newChatBot(fb, &slowChat{}, 4, time.Hour, &logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- bot.StartPolling(ctx) }()

	for _, text := range []string{"one", "two", "three"} {
		fb.updates <- textUpdate(11, text)
	}
	require.Eventually(t, func() bool { return len(fb.all()) == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"ok: one", "ok: two", "ok: three"}, fb.all())

	cancel()
	<-done
}

func TestChatBot_PruneDropsIdleChats(t *testing.T) {
	logger := zerolog.Nop()
	bot := newChatBot(&fakeBot{}, &slowChat{}, 1, time.Minute, &logger)
	ctx := context.Background()
	require.NoError(t, bot.handleUpdate(ctx, textUpdate(1, "hi")))
	require.NoError(t, bot.handleUpdate(ctx, textUpdate(2, "hi")))

	assert.Zero(t, bot.prune(time.Now()), "fresh chats stay")
	assert.Equal(t, 2, bot.prune(time.Now().Add(2*time.Minute)))
	assert.Empty(t, bot.sessions)

	// a pruned chat simply starts a new session
	require.NoError(t, bot.handleUpdate(ctx, textUpdate(1, "back")))
	assert.Len(t, bot.sessions, 1)
}

package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"bedrock-chatbot/internal/config"
	"bedrock-chatbot/internal/domain"
	"bedrock-chatbot/internal/infra/i18n"
	"bedrock-chatbot/internal/infra/logging"
	"bedrock-chatbot/internal/usecase"
)

// botAPI is the part of *tgbotapi.BotAPI the bot uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

const pruneEvery = time.Minute

type chatSession struct {
	id   string
	seen time.Time
}

// ChatBot serves the chat use case over Telegram. Each chat id maps to one
// session; /reset ends it. Mappings idle longer than the session TTL are
// pruned, since the store has evicted their sessions by then.
type ChatBot struct {
	bot     botAPI
	chat    usecase.ChatUseCase
	tr      *i18n.Translator
	log     *zerolog.Logger
	idleTTL time.Duration

	mu       sync.Mutex
	sessions map[int64]chatSession

	// updateWorkers is how many goroutines will concurrently process updates.
	// A chat is always handled by the same worker.
	updateWorkers int
}

func NewChatBot(cfg *config.BotConfig, idleTTL time.Duration, chat usecase.ChatUseCase, logger *zerolog.Logger) (*ChatBot, error) {
	if cfg == nil || cfg.Token == "" {
		return nil, errors.New("bot token is empty")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	return newChatBot(bot, chat, cfg.Workers, idleTTL, logger), nil
}

func newChatBot(bot botAPI, chat usecase.ChatUseCase, workers int, idleTTL time.Duration, logger *zerolog.Logger) *ChatBot {
	if workers <= 0 {
		workers = 4
	}
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	l := logger.With().Str("component", "telegram").Logger()
	return &ChatBot{
		bot:           bot,
		chat:          chat,
		tr:            i18n.Default(),
		log:           &l,
		idleTTL:       idleTTL,
		sessions:      make(map[int64]chatSession),
		updateWorkers: workers,
	}
}

// StartPolling runs until ctx is canceled.
func (r *ChatBot) StartPolling(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	var wg sync.WaitGroup
	queues := make([]chan tgbotapi.Update, r.updateWorkers)
	for i := range queues {
		queues[i] = make(chan tgbotapi.Update, 32)
		wg.Add(1)
		go func(workerID int, queue <-chan tgbotapi.Update) {
			defer wg.Done()
			for {
				select {
				case update, ok := <-queue:
					if !ok {
						return
					}
					if err := r.handleUpdate(ctx, update); err != nil {
						r.log.Error().Err(err).Int("worker", workerID).Msg("handle update")
					}
				case <-ctx.Done():
					return
				}
			}
		}(i+1, queues[i])
	}

	go func() {
		defer func() {
			for _, q := range queues {
				close(q)
			}
		}()
		ticker := time.NewTicker(pruneEvery)
		defer ticker.Stop()
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case queues[shard(update, len(queues))] <- update:
				case <-ctx.Done():
					return
				}
			case now := <-ticker.C:
				r.prune(now)
			case <-ctx.Done():
				return
			}
		}
	}()

	<-ctx.Done()
	r.bot.StopReceivingUpdates()
	wg.Wait()
	return nil
}

// shard pins a chat to one worker so its messages are handled in order.
func shard(update tgbotapi.Update, n int) int {
	if update.Message == nil || update.Message.Chat == nil {
		return 0
	}
	return int(uint64(update.Message.Chat.ID) % uint64(n))
}

func (r *ChatBot) send(chatID int64, text string) error {
	_, err := r.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (r *ChatBot) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.Message == nil || update.Message.Chat == nil {
		return nil
	}
	chatID := update.Message.Chat.ID
	ctx = logging.WithChatID(ctx, chatID)

	text := strings.TrimSpace(update.Message.Text)
	if text == "" {
		return r.send(chatID, r.tr.T("bot.text_only"))
	}
	if strings.HasPrefix(text, "/") {
		return r.handleCommand(ctx, chatID, text)
	}

	_, _ = r.bot.Send(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
	reply, err := r.converse(ctx, chatID, text)
	if err != nil {
		logging.With(ctx, r.log).Warn().Err(err).Msg("turn failed")
		return r.send(chatID, r.tr.T(i18n.ErrorKey(err)))
	}
	return r.send(chatID, reply)
}

// converse sends text on the chat's session, replacing a session that
// expired in the meantime.
func (r *ChatBot) converse(ctx context.Context, chatID int64, text string) (string, error) {
	id, err := r.sessionFor(ctx, chatID)
	if err != nil {
		return "", err
	}
	reply, err := r.chat.SendMessage(ctx, id, text)
	if !errors.Is(err, domain.ErrNotFound) {
		return reply, err
	}
	r.forget(chatID)
	if id, err = r.sessionFor(ctx, chatID); err != nil {
		return "", err
	}
	return r.chat.SendMessage(ctx, id, text)
}

func (r *ChatBot) sessionFor(ctx context.Context, chatID int64) (string, error) {
	r.mu.Lock()
	cs, ok := r.sessions[chatID]
	if ok {
		cs.seen = time.Now()
		r.sessions[chatID] = cs
	}
	r.mu.Unlock()
	if ok {
		return cs.id, nil
	}
	s, err := r.chat.StartSession(ctx)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[chatID]; ok {
		_ = r.chat.EndSession(ctx, s.ID)
		return existing.id, nil
	}
	r.sessions[chatID] = chatSession{id: s.ID, seen: time.Now()}
	return s.ID, nil
}

func (r *ChatBot) forget(chatID int64) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.sessions[chatID].id
	delete(r.sessions, chatID)
	return id
}

// prune drops chats idle longer than the session TTL and returns how many went.
func (r *ChatBot) prune(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for chatID, cs := range r.sessions {
		if now.Sub(cs.seen) > r.idleTTL {
			delete(r.sessions, chatID)
			n++
		}
	}
	return n
}

func (r *ChatBot) handleCommand(ctx context.Context, chatID int64, text string) error {
	cmd := strings.Fields(text)[0]
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}
	switch cmd {
	case "/start":
		return r.send(chatID, r.tr.T("bot.welcome"))
	case "/help":
		return r.send(chatID, r.tr.T("bot.help"))
	case "/reset":
		if id := r.forget(chatID); id != "" {
			if err := r.chat.EndSession(ctx, id); err != nil {
				return err
			}
		}
		return r.send(chatID, r.tr.T("bot.reset"))
	default:
		return r.send(chatID, r.tr.T("bot.unknown_command"))
	}
}

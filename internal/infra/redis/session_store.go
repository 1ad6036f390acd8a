package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"bedrock-chatbot/internal/domain"
	"bedrock-chatbot/internal/domain/model"
	"bedrock-chatbot/internal/domain/ports/repository"
	"bedrock-chatbot/internal/infra/metrics"
	"bedrock-chatbot/internal/infra/security"
)

const sessionKeyPrefix = "chat_session:"

var _ repository.ChatSessionRepository = (*SessionStore)(nil)

// SessionStore keeps sealed session state in redis. Every Save resets the
// key's TTL, so idle sessions expire on their own.
type SessionStore struct {
	client *Client
	enc    *security.EncryptionService
	ttl    time.Duration
}

func NewSessionStore(client *Client, enc *security.EncryptionService, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, enc: enc, ttl: ttl}
}

func sessionKey(id string) string { return sessionKeyPrefix + id }

func (s *SessionStore) Save(ctx context.Context, session *model.ChatSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	sealed, err := s.enc.Seal(data, []byte(session.ID))
	if err != nil {
		return err
	}
	return s.client.cli.Set(ctx, sessionKey(session.ID), sealed, s.ttl).Err()
}

func (s *SessionStore) FindByID(ctx context.Context, id string) (*model.ChatSession, error) {
	data, err := s.client.cli.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.IncCacheRequest("session", "miss")
		return nil, domain.ErrNotFound
	}
	if err != nil {
		metrics.IncCacheRequest("session", "error")
		return nil, err
	}
	metrics.IncCacheRequest("session", "hit")

	plain, err := s.enc.Open(data, []byte(id))
	if err != nil {
		return nil, fmt.Errorf("open session %s: %w", id, err)
	}
	var session model.ChatSession
	if err := json.Unmarshal(plain, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.cli.Del(ctx, sessionKey(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *SessionStore) Count(ctx context.Context) (int, error) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := s.client.cli.Scan(ctx, cursor, sessionKeyPrefix+"*", 100).Result()
		if err != nil {
			return 0, err
		}
		total += len(keys)
		if next == 0 {
			return total, nil
		}
		cursor = next
	}
}

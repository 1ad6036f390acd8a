// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"bedrock-chatbot/internal/domain"
	"bedrock-chatbot/internal/domain/ports/repository"
)

const lockKeyPrefix = "chat_lock:"

var _ repository.SessionLocker = (*SessionLocker)(nil)

// SessionLocker holds one turn per session across replicas. The TTL bounds
// how long a crashed holder can block its session.
type SessionLocker struct {
	cli *redis.Client
	ttl time.Duration
}

func NewSessionLocker(c *Client, ttl time.Duration) *SessionLocker {
	return &SessionLocker{cli: c.cli, ttl: ttl}
}

func (l *SessionLocker) Lock(ctx context.Context, sessionID string) (func(), error) {
	key := lockKeyPrefix + sessionID
	token := uuid.NewString()
	ok, err := l.cli.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrSessionBusy
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = luaUnlock.Run(ctx, l.cli, []string{key}, token).Err()
	}, nil
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

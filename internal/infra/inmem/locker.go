package inmem

import (
	"context"
	"sync"

	"bedrock-chatbot/internal/domain"
	"bedrock-chatbot/internal/domain/ports/repository"
)

var _ repository.SessionLocker = (*Locker)(nil)

// Locker allows one in-flight turn per session id.
type Locker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocker() *Locker {
	return &Locker{held: make(map[string]struct{})}
}

func (l *Locker) Lock(_ context.Context, sessionID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[sessionID]; busy {
		return nil, domain.ErrSessionBusy
	}
	l.held[sessionID] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, sessionID)
			l.mu.Unlock()
		})
	}, nil
}

// Package inmem holds process-local session state. Nothing here survives a
// restart.
package inmem

import (
	"context"
	"sync"
	"time"

	"bedrock-chatbot/internal/domain"
	"bedrock-chatbot/internal/domain/model"
	"bedrock-chatbot/internal/domain/ports/repository"
)

var _ repository.ChatSessionRepository = (*SessionStore)(nil)

// SessionStore stores deep copies so callers never share slices with it.
type SessionStore struct {
	mu      sync.RWMutex
	byID    map[string]*model.ChatSession
	idleTTL time.Duration
	now     func() time.Time
}

func NewSessionStore(idleTTL time.Duration) *SessionStore {
	return &SessionStore{
		byID:    make(map[string]*model.ChatSession),
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

func (s *SessionStore) Save(_ context.Context, session *model.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[session.ID] = clone(session)
	return nil
}

func (s *SessionStore) FindByID(_ context.Context, id string) (*model.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.byID[id]
	if !ok || s.expired(session, s.now()) {
		return nil, domain.ErrNotFound
	}
	return clone(session), nil
}

func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *SessionStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}

// Sweep drops sessions idle longer than the TTL and returns how many went.
func (s *SessionStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, session := range s.byID {
		if s.expired(session, now) {
			delete(s.byID, id)
			n++
		}
	}
	return n, nil
}

func (s *SessionStore) expired(session *model.ChatSession, now time.Time) bool {
	return s.idleTTL > 0 && session.IdleSince(now) > s.idleTTL
}

func clone(s *model.ChatSession) *model.ChatSession {
	cp := *s
	cp.Transcript = append([]model.ChatMessage(nil), s.Transcript...)
	cp.Memory.Tail = append([]model.ChatMessage(nil), s.Memory.Tail...)
	return &cp
}

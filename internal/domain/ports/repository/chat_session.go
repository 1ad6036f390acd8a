package repository

import (
	"context"

	"bedrock-chatbot/internal/domain/model"
)

// -----------------------------
// Chat Sessions
// -----------------------------

// ChatSessionRepository keeps live session state. FindByID returns
// domain.ErrNotFound for unknown or expired sessions.
type ChatSessionRepository interface {
	Save(ctx context.Context, session *model.ChatSession) error
	FindByID(ctx context.Context, id string) (*model.ChatSession, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// SessionLocker serializes turns within one session.
type SessionLocker interface {
	// Lock returns domain.ErrSessionBusy when the session is held elsewhere.
	Lock(ctx context.Context, sessionID string) (unlock func(), err error)
}

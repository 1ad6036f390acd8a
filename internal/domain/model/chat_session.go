package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage represents one message within a chat session.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"` // "user" | "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func NewChatMessage(role, content string) ChatMessage {
	return ChatMessage{
		ID:        ulid.Make().String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// Turn is one user input paired with the assistant reply it produced.
type Turn struct {
	Input string
	Reply string
}

func (t Turn) Messages() []ChatMessage {
	return []ChatMessage{
		NewChatMessage(RoleUser, t.Input),
		NewChatMessage(RoleAssistant, t.Reply),
	}
}

// MemorySnapshot is the persisted form of a summarizing conversation memory:
// the running summary plus the not yet summarized tail.
type MemorySnapshot struct {
	Summary string        `json:"summary"`
	Tail    []ChatMessage `json:"tail"`
}

func (m MemorySnapshot) IsEmpty() bool {
	return m.Summary == "" && len(m.Tail) == 0
}

// ChatSession is the aggregate root for one browser (or chat) session.
// Transcript is display-only; Memory is what the model sees. A session ends
// by being deleted, either explicitly or by idle eviction.
type ChatSession struct {
	ID         string         `json:"id"`
	Transcript []ChatMessage  `json:"transcript"`
	Memory     MemorySnapshot `json:"memory"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func NewChatSession(id string) *ChatSession {
	now := time.Now()
	return &ChatSession{
		ID:         id,
		Transcript: make([]ChatMessage, 0, 8),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (s *ChatSession) AddMessage(role, content string) {
	s.Transcript = append(s.Transcript, NewChatMessage(role, content))
	s.UpdatedAt = time.Now()
}

// IdleSince reports how long the session has gone without activity.
func (s *ChatSession) IdleSince(now time.Time) time.Duration {
	return now.Sub(s.UpdatedAt)
}

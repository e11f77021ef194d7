package model

import (
	"time"
)

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

func (r MessageRole) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// ChatMessage represents one message within a chat session.
type ChatMessage struct {
	SessionID string      `json:"-"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// ChatSession binds a provider/model/agent choice to an ordered message history.
// History is append-only; insertion order is conversation order.
type ChatSession struct {
	ID        string        `json:"id"`
	Provider  string        `json:"provider"`
	Model     string        `json:"model"`
	AgentID   string        `json:"agent_id"`
	Title     *string       `json:"title,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	Messages  []ChatMessage `json:"messages"`
}

func NewChatSession(id, provider, model, agentID string, title *string) *ChatSession {
	return &ChatSession{
		ID:        id,
		Provider:  provider,
		Model:     model,
		AgentID:   agentID,
		Title:     title,
		CreatedAt: time.Now().UTC(),
		Messages:  make([]ChatMessage, 0, 8),
	}
}

// AddMessage appends a message stamped with the current time and returns it.
func (s *ChatSession) AddMessage(role MessageRole, content string) ChatMessage {
	m := ChatMessage{
		SessionID: s.ID,
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	s.Messages = append(s.Messages, m)
	return m
}

// Clone returns a deep copy so callers can read it without holding a store lock.
func (s *ChatSession) Clone() *ChatSession {
	cp := *s
	if s.Title != nil {
		t := *s.Title
		cp.Title = &t
	}
	cp.Messages = make([]ChatMessage, len(s.Messages))
	copy(cp.Messages, s.Messages)
	return &cp
}

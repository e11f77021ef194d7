package memory

import (
	"context"
	"fmt"
	"sync"

	"ai-agent-backend/internal/domain"
	"ai-agent-backend/internal/domain/model"
	"ai-agent-backend/internal/domain/ports/repository"
	"ai-agent-backend/internal/infra/ids"
)

var _ repository.ChatSessionRepository = (*SessionStore)(nil)

// SessionStore keeps chat sessions in process memory.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*model.ChatSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*model.ChatSession)}
}

func (s *SessionStore) Create(_ context.Context, provider, modelName, agentID string, title *string) (*model.ChatSession, error) {
	sess := model.NewChatSession(ids.NewSessionID(), provider, modelName, agentID, title)

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return sess.Clone(), nil
}

func (s *SessionStore) FindByID(_ context.Context, id string) (*model.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return sess.Clone(), nil
}

func (s *SessionStore) AppendMessage(_ context.Context, sessionID string, role model.MessageRole, content string) (model.ChatMessage, error) {
	if !role.Valid() {
		return model.ChatMessage{}, fmt.Errorf("%w: message role %q", domain.ErrInvalidArgument, role)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return model.ChatMessage{}, domain.ErrNotFound
	}
	return sess.AddMessage(role, content), nil
}

func (s *SessionStore) exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[id]
	return ok
}

// File: internal/infra/db/postgres/postgres_chat_session_repo.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"ai-agent-backend/internal/domain"
	"ai-agent-backend/internal/domain/model"
	"ai-agent-backend/internal/domain/ports/repository"
	"ai-agent-backend/internal/infra/ids"
)

var _ repository.ChatSessionRepository = (*ChatSessionRepo)(nil)

// ChatSessionRepo stores sessions in chat_sessions and their history in
// chat_messages; seq preserves insertion order.
type ChatSessionRepo struct {
	pool *pgxpool.Pool
}

func NewChatSessionRepo(pool *pgxpool.Pool) *ChatSessionRepo {
	return &ChatSessionRepo{pool: pool}
}

func (r *ChatSessionRepo) Create(ctx context.Context, provider, modelName, agentID string, title *string) (*model.ChatSession, error) {
	s := model.NewChatSession(ids.NewSessionID(), provider, modelName, agentID, title)

	const q = `
INSERT INTO chat_sessions (id, provider, model, agent_id, title, created_at)
VALUES ($1,$2,$3,$4,$5,$6);`
	if _, err := r.pool.Exec(ctx, q, s.ID, s.Provider, s.Model, s.AgentID, s.Title, s.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return s, nil
}

func (r *ChatSessionRepo) FindByID(ctx context.Context, id string) (*model.ChatSession, error) {
	const qs = `SELECT id, provider, model, agent_id, title, created_at FROM chat_sessions WHERE id=$1;`
	var s model.ChatSession
	err := r.pool.QueryRow(ctx, qs, id).Scan(&s.ID, &s.Provider, &s.Model, &s.AgentID, &s.Title, &s.CreatedAt)
	if err != nil {
		if mapped := mapErr(err); mapped == domain.ErrNotFound {
			return nil, mapped
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	s.CreatedAt = s.CreatedAt.UTC()

	const qm = `SELECT role, content, created_at FROM chat_messages WHERE session_id=$1 ORDER BY seq ASC;`
	rows, err := r.pool.Query(ctx, qm, id)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	s.Messages = make([]model.ChatMessage, 0, 8)
	for rows.Next() {
		var (
			role    string
			content string
			ts      time.Time
		)
		if err := rows.Scan(&role, &content, &ts); err != nil {
			return nil, fmt.Errorf("scan msg: %w", err)
		}
		s.Messages = append(s.Messages, model.ChatMessage{
			SessionID: s.ID,
			Role:      model.MessageRole(role),
			Content:   content,
			Timestamp: ts.UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ChatSessionRepo) AppendMessage(ctx context.Context, sessionID string, role model.MessageRole, content string) (model.ChatMessage, error) {
	if !role.Valid() {
		return model.ChatMessage{}, fmt.Errorf("%w: message role %q", domain.ErrInvalidArgument, role)
	}
	m := model.ChatMessage{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	const q = `INSERT INTO chat_messages (session_id, role, content, created_at) VALUES ($1,$2,$3,$4);`
	if _, err := r.pool.Exec(ctx, q, m.SessionID, string(m.Role), m.Content, m.Timestamp); err != nil {
		if mapped := mapErr(err); mapped == domain.ErrNotFound {
			return model.ChatMessage{}, mapped
		}
		return model.ChatMessage{}, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

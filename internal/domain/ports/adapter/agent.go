package adapter

import (
	"context"

	"ai-agent-backend/internal/domain/model"
)

type AgentInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type AgentResult struct {
	Text           string
	OutputDocxPath string
}

// Agent composes a prompt, calls the backend and optionally renders a document.
type Agent interface {
	Info() AgentInfo
	Run(ctx context.Context, jobID, prompt string, backend TextGenerator, session *model.ChatSession) (AgentResult, error)
}

type AgentRegistry interface {
	// Get fails with domain.ErrUnknownAgent.
	Get(id string) (Agent, error)
	List() []AgentInfo
}

type progressKey struct{}

// ProgressFunc receives free-text progress lines from a running agent.
type ProgressFunc func(line string)

func WithProgress(ctx context.Context, fn ProgressFunc) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

// ReportProgress forwards line to the ProgressFunc attached to ctx, if any.
func ReportProgress(ctx context.Context, line string) {
	if fn, ok := ctx.Value(progressKey{}).(ProgressFunc); ok && fn != nil {
		fn(line)
	}
}

package model

import "time"

type AIJobStatus string

const (
	AIJobStatusQueued    AIJobStatus = "queued"
	AIJobStatusRunning   AIJobStatus = "running"
	AIJobStatusCompleted AIJobStatus = "completed"
	AIJobStatusFailed    AIJobStatus = "failed"
)

// Terminal reports whether no further mutation is allowed in this status.
func (s AIJobStatus) Terminal() bool {
	return s == AIJobStatusCompleted || s == AIJobStatusFailed
}

// CanTransition reports whether next is a legal successor of s:
// queued -> running -> completed | failed.
func (s AIJobStatus) CanTransition(next AIJobStatus) bool {
	switch s {
	case AIJobStatusQueued:
		return next == AIJobStatusRunning
	case AIJobStatusRunning:
		return next == AIJobStatusCompleted || next == AIJobStatusFailed
	default:
		return false
	}
}

type AIJob struct {
	ID            string            `json:"id"`
	SessionID     string            `json:"session_id"`
	Prompt        string            `json:"prompt"`
	Status        AIJobStatus       `json:"status"`
	ResultMessage string            `json:"result_message,omitempty"`
	OutputPath    string            `json:"output_path,omitempty"`
	Error         string            `json:"error,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func NewAIJob(id, sessionID, prompt string, metadata map[string]string) *AIJob {
	now := time.Now().UTC()
	return &AIJob{
		ID:        id,
		SessionID: sessionID,
		Prompt:    prompt,
		Status:    AIJobStatusQueued,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// JobFields carries the optional fields written together with a status change.
// Nil means "leave unchanged".
type JobFields struct {
	ResultMessage *string
	OutputPath    *string
	Error         *string
}

// Apply moves the job to next and writes the provided fields.
// Callers must have checked CanTransition.
func (j *AIJob) Apply(next AIJobStatus, f JobFields) {
	j.Status = next
	if f.ResultMessage != nil {
		j.ResultMessage = *f.ResultMessage
	}
	if f.OutputPath != nil {
		j.OutputPath = *f.OutputPath
	}
	if f.Error != nil {
		j.Error = *f.Error
	}
	j.UpdatedAt = time.Now().UTC()
}

func (j *AIJob) Clone() *AIJob {
	cp := *j
	if j.Metadata != nil {
		cp.Metadata = make(map[string]string, len(j.Metadata))
		for k, v := range j.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

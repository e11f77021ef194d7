package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"ai-agent-backend/internal/domain"
	"ai-agent-backend/internal/domain/model"
	"ai-agent-backend/internal/infra/adapters/document"
	"ai-agent-backend/internal/infra/logging"
	"ai-agent-backend/internal/usecase"
)

type createChatRequest struct {
	Provider string  `json:"provider"`
	Model    string  `json:"model"`
	AgentID  string  `json:"agent_id"`
	Title    *string `json:"title"`
}

type chatResponse struct {
	ChatID    string    `json:"chat_id"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	AgentID   string    `json:"agent_id"`
	Title     *string   `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

type messageResponse struct {
	Role      model.MessageRole `json:"role"`
	Content   string            `json:"content"`
	Timestamp time.Time         `json:"timestamp"`
}

type historyResponse struct {
	ChatID   string            `json:"chat_id"`
	Messages []messageResponse `json:"messages"`
}

type createJobRequest struct {
	Prompt string `json:"prompt"`
}

type jobResponse struct {
	JobID         string            `json:"job_id"`
	Status        model.AIJobStatus `json:"status"`
	ChatID        string            `json:"chat_id"`
	ResultMessage *string           `json:"result_message"`
	OutputDocxURL *string           `json:"output_docx_url"`
	Error         *string           `json:"error"`
}

type dataEnvelope struct {
	Data any `json:"data"`
}

type errorBody struct {
	Detail string `json:"detail"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "AI Agent Wrapper Backend is running"})
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, dataEnvelope{Data: s.providers.Catalogue()})
}

func (s *Server) handleAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, dataEnvelope{Data: s.agents.List()})
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var req createChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "Invalid request body"})
		return
	}
	sess, err := s.chatUC.CreateSession(r.Context(), req.Provider, req.Model, req.AgentID, req.Title)
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{
		ChatID:    sess.ID,
		Provider:  sess.Provider,
		Model:     sess.Model,
		AgentID:   sess.AgentID,
		Title:     sess.Title,
		CreatedAt: sess.CreatedAt,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sess, err := s.chatUC.GetHistory(r.Context(), chi.URLParam(r, "chatID"))
	if err != nil {
		s.writeError(w, r, err, "Chat not found")
		return
	}
	resp := historyResponse{ChatID: sess.ID, Messages: make([]messageResponse, 0, len(sess.Messages))}
	for _, m := range sess.Messages {
		resp.Messages = append(resp.Messages, messageResponse{Role: m.Role, Content: m.Content, Timestamp: m.Timestamp})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "Invalid request body"})
		return
	}
	job, err := s.jobUC.Create(r.Context(), chi.URLParam(r, "id"), req.Prompt)
	if err != nil {
		s.writeError(w, r, err, "Chat not found")
		return
	}
	writeJSON(w, http.StatusOK, s.toJobResponse(job))
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobUC.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err, "Job not found")
		return
	}
	writeJSON(w, http.StatusOK, s.toJobResponse(job))
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	path, err := s.jobUC.DocumentPath(r.Context(), jobID)
	if err != nil {
		detail := "Job not found"
		switch {
		case errors.Is(err, usecase.ErrNoDocument):
			detail = "No DOCX generated for this job"
		case errors.Is(err, usecase.ErrDocumentMissing):
			detail = "DOCX file not found"
		}
		s.writeError(w, r, err, detail)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		s.writeError(w, r, domain.IO(err), "")
		return
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		s.writeError(w, r, domain.IO(err), "")
		return
	}

	name := filepath.Base(path)
	w.Header().Set("Content-Type", document.DocxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeContent(w, r, name, fi.ModTime(), f)
}

func (s *Server) toJobResponse(j *model.AIJob) jobResponse {
	resp := jobResponse{
		JobID:         j.ID,
		Status:        j.Status,
		ChatID:        j.SessionID,
		ResultMessage: optional(j.ResultMessage),
		Error:         optional(j.Error),
	}
	if j.OutputPath != "" {
		u := s.cfg.BaseURL + "/jobs/" + j.ID + "/download"
		resp.OutputDocxURL = &u
	}
	return resp
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// writeError maps domain errors to status codes. notFound replaces the
// message for 404s when set; 5xx bodies are always generic.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrUnknownAgent),
		errors.Is(err, domain.ErrUnknownProvider):
		detail := notFound
		if detail == "" {
			detail = err.Error()
		}
		writeJSON(w, http.StatusNotFound, errorBody{Detail: detail})
	case errors.Is(err, domain.ErrInvalidArgument):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Detail: err.Error()})
	case errors.Is(err, domain.ErrDispatch):
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Msg("job dispatch failed")
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Detail: "Job dispatch unavailable"})
	default:
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

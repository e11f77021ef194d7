package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ai-agent-backend/internal/domain/model"
	"ai-agent-backend/internal/infra/logging"
	"ai-agent-backend/internal/infra/metrics"
	"ai-agent-backend/internal/usecase"
)

type logEvent struct {
	Message string `json:"message"`
}

type endEvent struct {
	Status model.AIJobStatus   `json:"status"`
	Result *model.LedgerResult `json:"result"`
}

// handleJobEvents streams a job's ledger as server-sent events. Headers are
// written as soon as the job is known to exist, so an unknown job still
// gets a plain 404 and a quiet job does not hold back the response.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "streaming unsupported"})
		return
	}

	metrics.StreamOpened()
	defer metrics.StreamClosed()

	started := false
	err := s.streamer.Stream(r.Context(), jobID, func(e usecase.JobEvent) error {
		if !started {
			h := w.Header()
			h.Set("Content-Type", "text/event-stream")
			h.Set("Cache-Control", "no-cache")
			h.Set("Connection", "keep-alive")
			h.Set("X-Accel-Buffering", "no")
			w.WriteHeader(http.StatusOK)
			started = true
		}

		var err error
		switch e.Type {
		case usecase.EventOpen:
		case usecase.EventLog:
			err = writeSSE(w, "log", logEvent{Message: e.Message})
		case usecase.EventEnd:
			err = writeSSE(w, "end", endEvent{Status: e.Status, Result: e.Result})
		case usecase.EventHeartbeat:
			err = writeSSE(w, "heartbeat", map[string]string{
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
		}
		if err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})

	if err == nil {
		return
	}
	if !started {
		s.writeError(w, r, err, "Job not found")
		return
	}
	if !errors.Is(err, context.Canceled) {
		l := logging.With(logging.WithJobID(r.Context(), jobID), s.log)
		l.Warn().Err(err).Msg("event stream ended early")
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b)
	return err
}

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"ai-agent-backend/internal/config"
	"ai-agent-backend/internal/domain/ports/adapter"
	"ai-agent-backend/internal/usecase"
)

// EventStreamer is satisfied by *usecase.JobStreamer.
type EventStreamer interface {
	Stream(ctx context.Context, jobID string, emit func(usecase.JobEvent) error) error
}

// Server exposes sessions, jobs, job events and the meta catalogue.
type Server struct {
	chatUC    usecase.ChatUseCase
	jobUC     usecase.JobUseCase
	streamer  EventStreamer
	agents    adapter.AgentRegistry
	providers adapter.ProviderRegistry
	limiter   Limiter
	cfg       config.ServerConfig
	log       *zerolog.Logger
}

func NewServer(
	chatUC usecase.ChatUseCase,
	jobUC usecase.JobUseCase,
	streamer EventStreamer,
	agents adapter.AgentRegistry,
	providers adapter.ProviderRegistry,
	limiter Limiter,
	cfg config.ServerConfig,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "http").Logger()
	return &Server{
		chatUC:    chatUC,
		jobUC:     jobUC,
		streamer:  streamer,
		agents:    agents,
		providers: providers,
		limiter:   limiter,
		cfg:       cfg,
		log:       &l,
	}
}

// Routes builds the full handler tree.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(
		TraceID(),
		RequestLog(s.log),
		Recover(s.log),
		CORS(s.cfg.CORSOrigins),
	)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// long-lived
	r.Get("/jobs/{id}/events", s.handleJobEvents)

	r.Group(func(r chi.Router) {
		r.Use(Timeout(s.cfg.RequestTimeout))

		r.Get("/", s.handleRoot)
		r.Get("/meta/models", s.handleModels)
		r.Get("/meta/agents", s.handleAgents)

		r.Post("/chat", s.handleCreateChat)
		r.Get("/chat/{chatID}/history", s.handleHistory)

		r.With(RateLimit(s.limiter, "create_job", s.cfg.JobRateLimit, time.Minute, s.log)).
			Post("/jobs/{id}", s.handleCreateJob)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Get("/jobs/{id}/download", s.handleDownload)
	})
	return r
}

// Package application is the composition root shared by the API and worker
// processes.
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"ai-agent-backend/internal/config"
	"ai-agent-backend/internal/domain/ports/repository"
	ucport "ai-agent-backend/internal/domain/ports/usecase"
	"ai-agent-backend/internal/infra/adapters/agent"
	"ai-agent-backend/internal/infra/adapters/ai"
	"ai-agent-backend/internal/infra/adapters/document"
	"ai-agent-backend/internal/infra/api"
	pg "ai-agent-backend/internal/infra/db/postgres"
	"ai-agent-backend/internal/infra/memory"
	"ai-agent-backend/internal/infra/rag"
	red "ai-agent-backend/internal/infra/redis"
	"ai-agent-backend/internal/infra/worker"
	"ai-agent-backend/internal/usecase"
)

const (
	RoleAPI    = "api"
	RoleWorker = "worker"
)

// App holds every long-lived component. Build it with New and release it
// with Close.
type App struct {
	Cfg    *config.Config
	Logger *zerolog.Logger

	Sessions repository.ChatSessionRepository
	Jobs     repository.AIJobRepository
	Ledger   repository.JobLedger

	Agents    *agent.Registry
	Providers *ai.Registry
	Runner    *usecase.AgentRunner

	ChatUC   usecase.ChatUseCase
	JobUC    usecase.JobUseCase
	Streamer *usecase.JobStreamer

	Dispatcher ucport.Dispatcher

	pgPool *pgxpool.Pool
	redis  *red.Client
	queue  *red.JobQueue
	pool   *worker.Pool
}

// New wires stores, backends, agents and use cases for role. ctx bounds
// background work such as the in-process worker pool.
func New(ctx context.Context, cfg *config.Config, role string, logger *zerolog.Logger) (*App, error) {
	a := &App{Cfg: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	if err := a.initStores(ctx); err != nil {
		return nil, err
	}

	providers, err := ai.NewRegistry(ctx, cfg.AI, logger)
	if err != nil {
		return nil, fmt.Errorf("ai registry: %w", err)
	}
	a.Providers = providers

	kb := rag.NewFlatFileKB(cfg.Agents.KnowledgeBasePath, logger)
	a.Agents = agent.NewRegistry(
		agent.NewTSFSAgent(kb, document.NewDocxRenderer("Technical Specification"), cfg.Agents.OutputDir),
	)

	a.Runner = usecase.NewAgentRunner(a.Jobs, a.Sessions, a.Ledger, a.Agents, a.Providers, logger)

	switch cfg.Dispatch.Mode {
	case config.DispatchRedis:
		a.queue = red.NewJobQueue(a.redis, cfg.Redis.Queue)
		a.Dispatcher = worker.NewQueueDispatcher(a.queue)
	default:
		// the worker role never dispatches, but keep a usable dispatcher
		a.pool = worker.NewPool(cfg.Dispatch.Workers, cfg.Dispatch.QueueSize, logger)
		a.pool.Start(ctx)
		a.Dispatcher = worker.NewInProcessDispatcher(ctx, a.pool, a.Runner, logger)
	}

	a.ChatUC = usecase.NewChatUseCase(a.Sessions, logger)
	a.JobUC = usecase.NewJobUseCase(a.Sessions, a.Jobs, a.Ledger, a.Dispatcher, logger)
	a.Streamer = usecase.NewJobStreamer(a.Ledger, cfg.Stream.PollInterval, cfg.Stream.Heartbeat, logger)

	logger.Info().
		Str("role", role).
		Str("storage", cfg.Storage.Driver).
		Str("dispatch", a.Dispatcher.Mode()).
		Msg("application wired")
	ok = true
	return a, nil
}

func (a *App) initStores(ctx context.Context) error {
	cfg := a.Cfg

	if cfg.Redis.URL != "" {
		c, err := red.NewClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		a.redis = c
	}

	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		p, err := pg.NewPgxPool(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		a.pgPool = p
		if err := pg.EnsureSchema(ctx, p); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
		go pg.ReportPoolStats(ctx, p, 15*time.Second, a.Logger)
		a.Sessions = pg.NewChatSessionRepo(p)
		a.Jobs = pg.NewAIJobRepo(p, pg.NewTxManager(p))
	default:
		sessions := memory.NewSessionStore()
		a.Sessions = sessions
		a.Jobs = memory.NewJobStore(sessions)
	}

	// processes sharing a queue must share the ledger too
	if cfg.Dispatch.Mode == config.DispatchRedis {
		a.Ledger = red.NewJobLedger(a.redis, cfg.Redis.LedgerTTL, a.Logger)
	} else {
		a.Ledger = memory.NewJobLedger()
	}
	return nil
}

// HTTPServer builds the API surface. The rate limiter is only active when
// redis is configured.
func (a *App) HTTPServer() *api.Server {
	var lim api.Limiter
	if a.redis != nil && a.Cfg.Server.JobRateLimit > 0 {
		lim = red.NewRateLimiter(a.redis)
	}
	return api.NewServer(a.ChatUC, a.JobUC, a.Streamer, a.Agents, a.Providers, lim, a.Cfg.Server, a.Logger)
}

// Consumer builds the work-queue consumer. Only valid in redis dispatch mode.
func (a *App) Consumer() (*worker.Consumer, error) {
	if a.queue == nil {
		return nil, fmt.Errorf("dispatch mode %q has no work queue", a.Cfg.Dispatch.Mode)
	}
	return worker.NewConsumer(a.queue, red.NewLocker(a.redis), a.Runner, a.Cfg.Dispatch.Workers, a.Cfg.Redis.LockTTL, a.Logger), nil
}

// Close stops the worker pool and releases connections.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Stop()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("redis close")
		}
	}
	if a.pgPool != nil {
		a.pgPool.Close()
	}
}

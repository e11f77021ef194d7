package usecase

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ai-agent-backend/internal/domain"
	"ai-agent-backend/internal/domain/model"
	"ai-agent-backend/internal/domain/ports/adapter"
	"ai-agent-backend/internal/infra/adapters/agent"
	"ai-agent-backend/internal/infra/adapters/ai"
	"ai-agent-backend/internal/infra/adapters/document"
	"ai-agent-backend/internal/infra/memory"
)

type staticKB string

func (k staticKB) ContextFor(context.Context, string) string { return string(k) }

type failingGenerator struct{ err error }

func (f failingGenerator) Generate(context.Context, []adapter.Message) (string, error) {
	return "", f.err
}

// fixedRegistry resolves every provider to gen.
type fixedRegistry struct{ gen adapter.TextGenerator }

func (r fixedRegistry) Resolve(string, string) (adapter.TextGenerator, error) { return r.gen, nil }
func (r fixedRegistry) Catalogue() map[string][]string                     { return nil }

type panicGenerator struct{}

func (panicGenerator) Generate(context.Context, []adapter.Message) (string, error) {
	panic("agent blew up")
}

// flakyJobs fails transitions into the listed statuses.
type flakyJobs struct {
	*memory.JobStore
	failOn map[model.AIJobStatus]error
}

func (f *flakyJobs) Transition(ctx context.Context, id string, next model.AIJobStatus, fields model.JobFields) (*model.AIJob, error) {
	if err := f.failOn[next]; err != nil {
		return nil, err
	}
	return f.JobStore.Transition(ctx, id, next, fields)
}

type placeholderRegistry struct{}

func (placeholderRegistry) Resolve(p, m string) (adapter.TextGenerator, error) {
	if _, ok := ai.NormalizeProvider(p); !ok {
		return nil, domain.ErrUnknownProvider
	}
	return ai.NewPlaceholderGenerator(p, m), nil
}
func (placeholderRegistry) Catalogue() map[string][]string { return nil }

// goDispatcher runs each job on its own goroutine.
type goDispatcher struct {
	exec *AgentRunner
	wg   sync.WaitGroup
	err  error
}

func (d *goDispatcher) Mode() string { return "test" }

func (d *goDispatcher) Dispatch(_ context.Context, jobID string) error {
	if d.err != nil {
		return d.err
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		_ = d.exec.Execute(context.Background(), jobID)
	}()
	return nil
}

type harness struct {
	sessions *memory.SessionStore
	jobs     *memory.JobStore
	ledger   *memory.JobLedger
	chat     *chatUC
	job      *jobUC
	runner   *AgentRunner
	disp     *goDispatcher
	streamer *JobStreamer
	outDir   string
}

func newHarness(t *testing.T, providers adapter.ProviderRegistry) *harness {
	t.Helper()
	log := zerolog.Nop()
	h := &harness{outDir: t.TempDir()}
	h.sessions = memory.NewSessionStore()
	h.jobs = memory.NewJobStore(h.sessions)
	h.ledger = memory.NewJobLedger()

	agents := agent.NewRegistry(agent.NewTSFSAgent(staticKB("kb"), document.NewDocxRenderer("Technical Specification"), h.outDir))
	h.runner = NewAgentRunner(h.jobs, h.sessions, h.ledger, agents, providers, &log)
	h.disp = &goDispatcher{exec: h.runner}
	h.chat = NewChatUseCase(h.sessions, &log)
	h.job = NewJobUseCase(h.sessions, h.jobs, h.ledger, h.disp, &log)
	h.streamer = NewJobStreamer(h.ledger, 5*time.Millisecond, 0, &log)
	return h
}

func (h *harness) session(t *testing.T, provider, agentID string) *model.ChatSession {
	t.Helper()
	s, err := h.chat.CreateSession(context.Background(), provider, "gpt-4o-mini", agentID, nil)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return s
}

func TestCreateSession_Validation(t *testing.T) {
	h := newHarness(t, placeholderRegistry{})
	_, err := h.chat.CreateSession(context.Background(), "", "m", "a", nil)
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	s := h.session(t, "openai", agent.TSFSAgentID)
	if !strings.HasPrefix(s.ID, "chat_") || len(s.Messages) != 0 {
		t.Fatalf("unexpected session: %+v", s)
	}
}

func TestJobCreate_UnknownSession(t *testing.T) {
	h := newHarness(t, placeholderRegistry{})
	_, err := h.job.Create(context.Background(), "chat_missing", "x")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestJobCreate_EmptyPrompt(t *testing.T) {
	h := newHarness(t, placeholderRegistry{})
	s := h.session(t, "openai", agent.TSFSAgentID)
	if _, err := h.job.Create(context.Background(), s.ID, "  "); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestJob_HappyPathWithPlaceholder(t *testing.T) {
	h := newHarness(t, placeholderRegistry{})
	ctx := context.Background()
	s := h.session(t, "openai", agent.TSFSAgentID)

	job, err := h.job.Create(ctx, s.ID, "REPORT z_demo.")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if job.Status != model.AIJobStatusQueued || job.ResultMessage != "" {
		t.Fatalf("fresh job should be queued without result: %+v", job)
	}
	h.disp.wg.Wait()

	got, err := h.job.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != model.AIJobStatusCompleted {
		t.Fatalf("status = %s, err = %s", got.Status, got.Error)
	}
	if !strings.HasPrefix(got.ResultMessage, "[PLACEHOLDER OPENAI gpt-4o-mini]") {
		t.Errorf("unexpected result: %q", got.ResultMessage)
	}

	hist, _ := h.chat.GetHistory(ctx, s.ID)
	if len(hist.Messages) != 2 || hist.Messages[0].Role != model.RoleUser || hist.Messages[1].Role != model.RoleAssistant {
		t.Fatalf("unexpected history: %+v", hist.Messages)
	}
	if hist.Messages[1].Content != got.ResultMessage {
		t.Errorf("assistant message differs from job result")
	}

	path, err := h.job.DocumentPath(ctx, job.ID)
	if err != nil {
		t.Fatalf("DocumentPath: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("document missing: %v", err)
	}

	entry, _ := h.ledger.Get(ctx, job.ID)
	if entry.Status != model.AIJobStatusCompleted || entry.Result == nil {
		t.Fatalf("ledger not finalized: %+v", entry)
	}
	if entry.Logs[0] != "Job queued" || entry.Logs[1] != "Job started" {
		t.Errorf("unexpected leading logs: %v", entry.Logs)
	}
}

func TestJob_UpstreamFailure(t *testing.T) {
	h := newHarness(t, fixedRegistry{gen: failingGenerator{err: errors.New("boom")}})
	ctx := context.Background()
	s := h.session(t, "openai", agent.TSFSAgentID)

	job, err := h.job.Create(ctx, s.ID, "x")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	h.disp.wg.Wait()

	got, _ := h.job.Get(ctx, job.ID)
	if got.Status != model.AIJobStatusFailed || got.Error != "boom" {
		t.Fatalf("want failed/boom, got %s/%q", got.Status, got.Error)
	}
	hist, _ := h.chat.GetHistory(ctx, s.ID)
	if len(hist.Messages) != 1 || hist.Messages[0].Role != model.RoleUser {
		t.Fatalf("expected only the user message, got %+v", hist.Messages)
	}
	if _, err := h.job.DocumentPath(ctx, job.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for download, got %v", err)
	}
}

func TestJob_UnknownAgentFails(t *testing.T) {
	h := newHarness(t, placeholderRegistry{})
	ctx := context.Background()
	s := h.session(t, "openai", "nope")

	job, err := h.job.Create(ctx, s.ID, "x")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	h.disp.wg.Wait()

	got, _ := h.job.Get(ctx, job.ID)
	if got.Status != model.AIJobStatusFailed || got.Error == "" {
		t.Fatalf("want failed with error, got %+v", got)
	}
}

func TestJob_DispatchFailure(t *testing.T) {
	h := newHarness(t, placeholderRegistry{})
	h.disp.err = errors.New("queue down")
	s := h.session(t, "openai", agent.TSFSAgentID)

	if _, err := h.job.Create(context.Background(), s.ID, "x"); !errors.Is(err, domain.ErrDispatch) {
		t.Fatalf("expected ErrDispatch, got %v", err)
	}
}

func TestExecute_Twice(t *testing.T) {
	h := newHarness(t, placeholderRegistry{})
	ctx := context.Background()
	s := h.session(t, "openai", agent.TSFSAgentID)
	job, _ := h.jobs.Create(ctx, s.ID, "x", nil)

	if err := h.runner.Execute(ctx, job.ID); err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	if err := h.runner.Execute(ctx, job.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("second Execute should be rejected, got %v", err)
	}
	hist, _ := h.chat.GetHistory(ctx, s.ID)
	if len(hist.Messages) != 2 {
		t.Fatalf("history touched by second run: %d messages", len(hist.Messages))
	}
}

func TestStream_ReplaysThenEnds(t *testing.T) {
	h := newHarness(t, placeholderRegistry{})
	ctx := context.Background()
	s := h.session(t, "openai", agent.TSFSAgentID)

	job, err := h.job.Create(ctx, s.ID, "REPORT z.")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	var events []JobEvent
	err = h.streamer.Stream(ctx, job.ID, func(e JobEvent) error {
		events = append(events, e)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	h.disp.wg.Wait()

	if events[0].Type != EventOpen {
		t.Fatalf("first event = %+v, want open", events[0])
	}
	events = events[1:]

	entry, _ := h.ledger.Get(ctx, job.ID)
	if len(events) != len(entry.Logs)+1 {
		t.Fatalf("got %d events for %d logs", len(events), len(entry.Logs))
	}
	for i, l := range entry.Logs {
		if events[i].Type != EventLog || events[i].Message != l {
			t.Errorf("event %d = %+v, want log %q", i, events[i], l)
		}
	}
	end := events[len(events)-1]
	if end.Type != EventEnd || end.Status != model.AIJobStatusCompleted || end.Result == nil {
		t.Fatalf("unexpected end event: %+v", end)
	}
}

func TestStream_UnknownJob(t *testing.T) {
	h := newHarness(t, placeholderRegistry{})
	called := false
	err := h.streamer.Stream(context.Background(), "job_missing", func(JobEvent) error {
		called = true
		return nil
	})
	if !errors.Is(err, domain.ErrNotFound) || called {
		t.Fatalf("expected ErrNotFound with no events, got %v (called=%v)", err, called)
	}
}

func TestStream_CancelAndHeartbeat(t *testing.T) {
	log := zerolog.Nop()
	ledger := memory.NewJobLedger()
	ctx := context.Background()
	_ = ledger.Create(ctx, "job_1", nil)

	st := NewJobStreamer(ledger, 2*time.Millisecond, 5*time.Millisecond, &log)
	cctx, cancel := context.WithCancel(ctx)
	var beats int
	err := st.Stream(cctx, "job_1", func(e JobEvent) error {
		if e.Type == EventHeartbeat {
			beats++
			if beats == 2 {
				cancel()
			}
		}
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if beats < 2 {
		t.Fatalf("expected heartbeats, got %d", beats)
	}
}

func TestExecute_PanicBecomesFailure(t *testing.T) {
	h := newHarness(t, fixedRegistry{gen: panicGenerator{}})
	ctx := context.Background()
	s := h.session(t, "openai", agent.TSFSAgentID)
	job, _ := h.jobs.Create(ctx, s.ID, "x", map[string]string{"agent_id": agent.TSFSAgentID})

	err := h.runner.Execute(ctx, job.ID)
	if err == nil || !strings.Contains(err.Error(), "agent blew up") {
		t.Fatalf("expected panic surfaced as error, got %v", err)
	}
	got, _ := h.job.Get(ctx, job.ID)
	if got.Status != model.AIJobStatusFailed || !strings.Contains(got.Error, "agent blew up") {
		t.Fatalf("want failed job, got %s/%q", got.Status, got.Error)
	}
	entry, _ := h.ledger.Get(ctx, job.ID)
	if entry.Status != model.AIJobStatusFailed {
		t.Fatalf("ledger not terminal after panic: %s", entry.Status)
	}
}

func newFlakyRunner(t *testing.T, h *harness, providers adapter.ProviderRegistry, failOn map[model.AIJobStatus]error) *AgentRunner {
	t.Helper()
	log := zerolog.Nop()
	agents := agent.NewRegistry(agent.NewTSFSAgent(staticKB("kb"), document.NewDocxRenderer("Technical Specification"), h.outDir))
	return NewAgentRunner(&flakyJobs{JobStore: h.jobs, failOn: failOn}, h.sessions, h.ledger, agents, providers, &log)
}

func TestExecute_CompletionWriteFailsMarksFailed(t *testing.T) {
	h := newHarness(t, placeholderRegistry{})
	ctx := context.Background()
	s := h.session(t, "openai", agent.TSFSAgentID)
	job, _ := h.jobs.Create(ctx, s.ID, "x", nil)
	_ = h.ledger.Create(ctx, job.ID, nil)

	storeDown := errors.New("store unavailable")
	runner := newFlakyRunner(t, h, placeholderRegistry{}, map[model.AIJobStatus]error{model.AIJobStatusCompleted: storeDown})

	if err := runner.Execute(ctx, job.ID); !errors.Is(err, storeDown) {
		t.Fatalf("expected completion error, got %v", err)
	}
	got, _ := h.jobs.FindByID(ctx, job.ID)
	if got.Status != model.AIJobStatusFailed || !strings.Contains(got.Error, "store unavailable") {
		t.Fatalf("want failed job, got %s/%q", got.Status, got.Error)
	}
	entry, _ := h.ledger.Get(ctx, job.ID)
	if entry.Status != model.AIJobStatusFailed || entry.Result != nil {
		t.Fatalf("ledger disagrees with store: %+v", entry)
	}
}

func TestExecute_FailureWriteFailsLeavesLedgerConsistent(t *testing.T) {
	h := newHarness(t, placeholderRegistry{})
	ctx := context.Background()
	s := h.session(t, "openai", agent.TSFSAgentID)
	job, _ := h.jobs.Create(ctx, s.ID, "x", nil)
	_ = h.ledger.Create(ctx, job.ID, nil)

	storeDown := errors.New("store unavailable")
	runner := newFlakyRunner(t, h, fixedRegistry{gen: failingGenerator{err: errors.New("boom")}},
		map[model.AIJobStatus]error{model.AIJobStatusFailed: storeDown})

	err := runner.Execute(ctx, job.ID)
	if !errors.Is(err, storeDown) || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected both causes, got %v", err)
	}
	got, _ := h.jobs.FindByID(ctx, job.ID)
	entry, _ := h.ledger.Get(ctx, job.ID)
	if got.Status != model.AIJobStatusRunning || entry.Status != got.Status {
		t.Fatalf("store %s and ledger %s must agree", got.Status, entry.Status)
	}
}

func TestStream_OpensBeforeAnyLine(t *testing.T) {
	log := zerolog.Nop()
	ledger := memory.NewJobLedger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = ledger.Create(ctx, "job_quiet", nil)

	st := NewJobStreamer(ledger, time.Hour, 0, &log)
	first := make(chan string, 1)
	go func() {
		_ = st.Stream(ctx, "job_quiet", func(e JobEvent) error {
			select {
			case first <- e.Type:
			default:
			}
			return nil
		})
	}()

	select {
	case typ := <-first:
		if typ != EventOpen {
			t.Fatalf("first event = %q, want open", typ)
		}
	case <-time.After(time.Second):
		t.Fatal("no event before the first poll")
	}
}

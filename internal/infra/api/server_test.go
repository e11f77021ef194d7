//go:build !integration

package api_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ai-agent-backend/internal/config"
	"ai-agent-backend/internal/infra/adapters/agent"
	"ai-agent-backend/internal/infra/adapters/ai"
	"ai-agent-backend/internal/infra/adapters/document"
	"ai-agent-backend/internal/infra/api"
	"ai-agent-backend/internal/infra/memory"
	"ai-agent-backend/internal/infra/worker"
	"ai-agent-backend/internal/usecase"
)

const baseURL = "http://api.test"

type staticKB struct{}

func (staticKB) ContextFor(context.Context, string) string { return "kb" }

type denyLimiter struct{ calls int }

func (d *denyLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	d.calls++
	return false, nil
}

func newTestServer(t *testing.T, limiter api.Limiter) http.Handler {
	t.Helper()
	log := zerolog.Nop()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	sessions := memory.NewSessionStore()
	jobs := memory.NewJobStore(sessions)
	ledger := memory.NewJobLedger()

	providers, err := ai.NewRegistry(ctx, config.AIConfig{
		ConcurrentLimit: 2,
		Models:          map[string][]string{"openai": {"gpt-4o-mini"}},
	}, &log)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	agents := agent.NewRegistry(agent.NewTSFSAgent(staticKB{}, document.NewDocxRenderer("Technical Specification"), t.TempDir()))

	runner := usecase.NewAgentRunner(jobs, sessions, ledger, agents, providers, &log)
	pool := worker.NewPool(2, 8, &log)
	pool.Start(ctx)
	t.Cleanup(pool.Stop)
	disp := worker.NewInProcessDispatcher(ctx, pool, runner, &log)

	srv := api.NewServer(
		usecase.NewChatUseCase(sessions, &log),
		usecase.NewJobUseCase(sessions, jobs, ledger, disp, &log),
		usecase.NewJobStreamer(ledger, 5*time.Millisecond, time.Second, &log),
		agents,
		providers,
		limiter,
		config.ServerConfig{
			BaseURL:        baseURL,
			CORSOrigins:    []string{"http://localhost:3000"},
			RequestTimeout: 5 * time.Second,
			JobRateLimit:   1,
		},
		&log,
	)
	return srv.Routes()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v (body=%q)", err, rec.Body.String())
	}
}

type jobBody struct {
	JobID         string  `json:"job_id"`
	Status        string  `json:"status"`
	ChatID        string  `json:"chat_id"`
	ResultMessage *string `json:"result_message"`
	OutputDocxURL *string `json:"output_docx_url"`
	Error         *string `json:"error"`
}

func createChat(t *testing.T, h http.Handler, agentID string) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/chat", `{"provider":"openai","model":"gpt-4o-mini","agent_id":"`+agentID+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create chat: %d %s", rec.Code, rec.Body.String())
	}
	var body struct {
		ChatID string `json:"chat_id"`
	}
	decode(t, rec, &body)
	return body.ChatID
}

func waitTerminal(t *testing.T, h http.Handler, jobID string) jobBody {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec := do(t, h, http.MethodGet, "/jobs/"+jobID, "")
		var jb jobBody
		decode(t, rec, &jb)
		if jb.Status == "completed" || jb.Status == "failed" {
			return jb
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", jobID)
	return jobBody{}
}

func TestStaticRoutes(t *testing.T) {
	h := newTestServer(t, nil)

	if rec := do(t, h, http.MethodGet, "/health", ""); rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("health: %d %q", rec.Code, rec.Body.String())
	}

	var root map[string]string
	decode(t, do(t, h, http.MethodGet, "/", ""), &root)
	if root["message"] != "AI Agent Wrapper Backend is running" {
		t.Errorf("root: %v", root)
	}

	var models struct {
		Data map[string][]string `json:"data"`
	}
	decode(t, do(t, h, http.MethodGet, "/meta/models", ""), &models)
	if len(models.Data["openai"]) != 1 {
		t.Errorf("models: %v", models.Data)
	}

	var agents struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	decode(t, do(t, h, http.MethodGet, "/meta/agents", ""), &agents)
	if len(agents.Data) != 1 || agents.Data[0].ID != agent.TSFSAgentID {
		t.Errorf("agents: %+v", agents.Data)
	}

	if rec := do(t, h, http.MethodGet, "/metrics", ""); rec.Code != http.StatusOK {
		t.Errorf("metrics: %d", rec.Code)
	}
}

func TestJobLifecycle(t *testing.T) {
	h := newTestServer(t, nil)
	chatID := createChat(t, h, agent.TSFSAgentID)

	rec := do(t, h, http.MethodPost, "/jobs/"+chatID, `{"prompt":"REPORT Z_TEST."}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create job: %d %s", rec.Code, rec.Body.String())
	}
	var created jobBody
	decode(t, rec, &created)
	if created.Status != "queued" || created.ChatID != chatID || created.ResultMessage != nil || created.OutputDocxURL != nil {
		t.Fatalf("unexpected created job: %+v", created)
	}

	done := waitTerminal(t, h, created.JobID)
	if done.Status != "completed" || done.ResultMessage == nil || *done.ResultMessage == "" {
		t.Fatalf("unexpected finished job: %+v", done)
	}
	wantURL := baseURL + "/jobs/" + created.JobID + "/download"
	if done.OutputDocxURL == nil || *done.OutputDocxURL != wantURL {
		t.Fatalf("output url = %v, want %s", done.OutputDocxURL, wantURL)
	}

	dl := do(t, h, http.MethodGet, "/jobs/"+created.JobID+"/download", "")
	if dl.Code != http.StatusOK {
		t.Fatalf("download: %d %s", dl.Code, dl.Body.String())
	}
	if ct := dl.Header().Get("Content-Type"); ct != document.DocxContentType {
		t.Errorf("content type = %q", ct)
	}
	if cd := dl.Header().Get("Content-Disposition"); !strings.Contains(cd, created.JobID+"_ts.docx") {
		t.Errorf("content disposition = %q", cd)
	}
	if !bytes.HasPrefix(dl.Body.Bytes(), []byte("PK")) {
		t.Errorf("download is not a zip container")
	}

	var hist struct {
		ChatID   string `json:"chat_id"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	decode(t, do(t, h, http.MethodGet, "/chat/"+chatID+"/history", ""), &hist)
	if len(hist.Messages) != 2 || hist.Messages[0].Role != "user" || hist.Messages[1].Role != "assistant" {
		t.Fatalf("unexpected history: %+v", hist.Messages)
	}
}

func TestNotFoundPaths(t *testing.T) {
	h := newTestServer(t, nil)

	cases := []struct {
		method, path, body, detail string
	}{
		{http.MethodPost, "/jobs/chat_missing", `{"prompt":"x"}`, "Chat not found"},
		{http.MethodGet, "/jobs/job_missing", "", "Job not found"},
		{http.MethodGet, "/jobs/job_missing/download", "", "Job not found"},
		{http.MethodGet, "/jobs/job_missing/events", "", "Job not found"},
		{http.MethodGet, "/chat/chat_missing/history", "", "Chat not found"},
	}
	for _, c := range cases {
		rec := do(t, h, c.method, c.path, c.body)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s: status %d", c.method, c.path, rec.Code)
			continue
		}
		var eb struct {
			Detail string `json:"detail"`
		}
		decode(t, rec, &eb)
		if eb.Detail != c.detail {
			t.Errorf("%s %s: detail %q, want %q", c.method, c.path, eb.Detail, c.detail)
		}
	}
}

func TestFailedJobHasNoDocument(t *testing.T) {
	h := newTestServer(t, nil)
	chatID := createChat(t, h, "no_such_agent")

	var created jobBody
	decode(t, do(t, h, http.MethodPost, "/jobs/"+chatID, `{"prompt":"x"}`), &created)
	done := waitTerminal(t, h, created.JobID)
	if done.Status != "failed" || done.Error == nil {
		t.Fatalf("expected failed job with error, got %+v", done)
	}

	rec := do(t, h, http.MethodGet, "/jobs/"+created.JobID+"/download", "")
	var eb struct {
		Detail string `json:"detail"`
	}
	decode(t, rec, &eb)
	if rec.Code != http.StatusNotFound || eb.Detail != "No DOCX generated for this job" {
		t.Fatalf("download of failed job: %d %q", rec.Code, eb.Detail)
	}
}

func TestBadRequests(t *testing.T) {
	h := newTestServer(t, nil)
	if rec := do(t, h, http.MethodPost, "/chat", `{not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed chat body: %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/chat", `{"provider":"openai"}`); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("incomplete chat body: %d", rec.Code)
	}
	chatID := createChat(t, h, agent.TSFSAgentID)
	if rec := do(t, h, http.MethodPost, "/jobs/"+chatID, `{"prompt":""}`); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty prompt: %d", rec.Code)
	}
}

func TestRateLimitedJobCreation(t *testing.T) {
	lim := &denyLimiter{}
	h := newTestServer(t, lim)
	chatID := createChat(t, h, agent.TSFSAgentID)

	rec := do(t, h, http.MethodPost, "/jobs/"+chatID, `{"prompt":"x"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if lim.calls != 1 {
		t.Errorf("limiter called %d times", lim.calls)
	}
	// other routes are not limited
	if rec := do(t, h, http.MethodGet, "/meta/agents", ""); rec.Code != http.StatusOK {
		t.Errorf("meta limited: %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected allow origin for unknown origin: %q", got)
	}
}

func TestJobEventStream(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t, nil))
	defer ts.Close()
	h := ts.Config.Handler
	chatID := createChat(t, h, agent.TSFSAgentID)

	var created jobBody
	decode(t, do(t, h, http.MethodPost, "/jobs/"+chatID, `{"prompt":"REPORT Z."}`), &created)

	resp, err := http.Get(ts.URL + "/jobs/" + created.JobID + "/events")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	var events []string
	var endData string
	sc := bufio.NewScanner(resp.Body)
	current := ""
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current = strings.TrimPrefix(line, "event: ")
			events = append(events, current)
		case strings.HasPrefix(line, "data: ") && current == "end":
			endData = strings.TrimPrefix(line, "data: ")
		}
	}

	logs, ends := 0, 0
	for _, e := range events {
		switch e {
		case "log":
			logs++
		case "end":
			ends++
		}
	}
	if logs == 0 || ends != 1 || events[len(events)-1] != "end" {
		t.Fatalf("unexpected event sequence: %v", events)
	}
	var end struct {
		Status string `json:"status"`
		Result *struct {
			ResultMessage string `json:"result_message"`
		} `json:"result"`
	}
	if err := json.Unmarshal([]byte(endData), &end); err != nil {
		t.Fatalf("end payload: %v", err)
	}
	if end.Status != "completed" || end.Result == nil || end.Result.ResultMessage == "" {
		t.Fatalf("unexpected end payload: %s", endData)
	}
}

func TestJobEventStreamSendsHeadersForQuietJob(t *testing.T) {
	log := zerolog.Nop()
	ledger := memory.NewJobLedger()
	if err := ledger.Create(context.Background(), "job_quiet", nil); err != nil {
		t.Fatalf("ledger.Create: %v", err)
	}
	srv := api.NewServer(nil, nil,
		usecase.NewJobStreamer(ledger, time.Hour, time.Hour, &log),
		nil, nil, nil, config.ServerConfig{RequestTimeout: time.Second}, &log)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/jobs/job_quiet/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("headers not sent before any event: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
}

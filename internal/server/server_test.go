package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/deepresearch/internal/research/config"
	"github.com/mohammad-safakhou/deepresearch/internal/research/core"
	"github.com/mohammad-safakhou/deepresearch/internal/session/inmemory"
	"github.com/mohammad-safakhou/deepresearch/internal/store"
)

// stubRunner pauses with a clarifying question until the session has an
// assistant turn, then completes with a fixed report.
type stubRunner struct {
	question string
	report   core.FinalReport
	seen     [][]core.Turn
	err      error
}

func (r *stubRunner) Run(ctx context.Context, runID string, turns []core.Turn) (core.Outcome, error) {
	r.seen = append(r.seen, turns)
	if r.err != nil {
		return core.Outcome{}, r.err
	}
	for _, t := range turns {
		if t.Role == core.RoleAssistant {
			report := r.report
			return core.Outcome{RunID: runID, Report: &report}, nil
		}
	}
	if r.question != "" {
		return core.Outcome{RunID: runID, Clarification: r.question}, nil
	}
	report := r.report
	return core.Outcome{RunID: runID, Report: &report}, nil
}

// memoryArchive implements Archive in memory for handler tests.
type memoryArchive struct {
	saved []store.RunRecord
}

func (a *memoryArchive) SaveRun(ctx context.Context, rec store.RunRecord) error {
	a.saved = append(a.saved, rec)
	return nil
}

func (a *memoryArchive) GetRun(ctx context.Context, id string) (store.RunRecord, error) {
	for _, rec := range a.saved {
		if rec.ID == id {
			return rec, nil
		}
	}
	return store.RunRecord{}, fmt.Errorf("not found")
}

func (a *memoryArchive) ListRuns(ctx context.Context, limit int) ([]store.RunRecord, error) {
	return a.saved, nil
}

func newTestServer(runner Runner, archive Archive) *Server {
	cfg := &config.Config{}
	return New(cfg, runner, inmemory.NewInMemorySessionStore(), archive, log.New(io.Discard, "", 0))
}

func postResearch(t *testing.T, e http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/research", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestResearchRequiresQuery(t *testing.T) {
	srv := newTestServer(&stubRunner{}, nil)
	rec := postResearch(t, srv.Echo(), `{"query": "  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestResearchCompletesDirectly(t *testing.T) {
	runner := &stubRunner{report: core.FinalReport{
		Markdown:    "# Report\n\n## Sources\n\n1. [A](https://a)",
		Satisfied:   true,
		Iterations:  1,
		SourceCount: 1,
	}}
	archive := &memoryArchive{}
	srv := newTestServer(runner, archive)

	rec := postResearch(t, srv.Echo(), `{"query": "well formed question"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp reportResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Satisfied || resp.Iterations != 1 {
		t.Fatalf("response = %+v", resp)
	}
	if !strings.Contains(resp.Report, "## Sources") {
		t.Fatal("report body missing from response")
	}
	if len(archive.saved) != 1 || archive.saved[0].Query != "well formed question" {
		t.Fatalf("archive = %+v", archive.saved)
	}
}

func TestResearchClarificationRoundTrip(t *testing.T) {
	runner := &stubRunner{
		question: "Which decade?",
		report:   core.FinalReport{Markdown: "# R", Satisfied: true, Iterations: 1},
	}
	srv := newTestServer(runner, nil)
	e := srv.Echo()

	// First request pauses with the question.
	rec := postResearch(t, e, `{"query": "music history"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	var clar clarificationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &clar); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if clar.Question != "Which decade?" || clar.SessionID == "" {
		t.Fatalf("clarification = %+v", clar)
	}

	// Second request resumes the same session and completes.
	rec = postResearch(t, e, fmt.Sprintf(`{"session_id": %q, "query": "the 1970s"}`, clar.SessionID))
	if rec.Code != http.StatusOK {
		t.Fatalf("resume status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// The resumed run must see the full conversation.
	last := runner.seen[len(runner.seen)-1]
	if len(last) != 3 {
		t.Fatalf("resumed turns = %+v", last)
	}
	if last[1].Role != core.RoleAssistant || last[1].Content != "Which decade?" {
		t.Fatalf("clarifying question not preserved in session: %+v", last)
	}
	if last[2].Content != "the 1970s" {
		t.Fatalf("answer turn missing: %+v", last)
	}
}

func TestResearchRunnerErrorIs500(t *testing.T) {
	runner := &stubRunner{err: fmt.Errorf("provider down")}
	srv := newTestServer(runner, nil)

	rec := postResearch(t, srv.Echo(), `{"query": "anything"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestListRunsWithoutArchive(t *testing.T) {
	srv := newTestServer(&stubRunner{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestGetRun(t *testing.T) {
	archive := &memoryArchive{saved: []store.RunRecord{{ID: "run-9", Query: "q", Report: "# R"}}}
	srv := newTestServer(&stubRunner{}, archive)

	req := httptest.NewRequest(http.MethodGet, "/api/runs/run-9", nil)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got store.RunRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "run-9" {
		t.Fatalf("record = %+v", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/runs/missing", nil)
	rec = httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing run status = %d, want 404", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&stubRunner{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

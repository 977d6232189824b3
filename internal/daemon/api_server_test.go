package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"segue/internal/analysis"
	"segue/internal/api"
	"segue/internal/progress"
	"segue/internal/queue"
	"segue/internal/stage"
	"segue/internal/testsupport"
	"segue/internal/workflow"
)

type idleStage struct{ name string }

func (s idleStage) Prepare(context.Context, *queue.Session) error { return nil }
func (s idleStage) Execute(context.Context, *queue.Session) error { return nil }
func (s idleStage) HealthCheck(context.Context) stage.Health      { return stage.Healthy(s.name) }

// newTestServer builds a daemon without starting it so handlers can be
// exercised synchronously.
func newTestServer(t *testing.T) (*apiServer, *Daemon) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithWorkerCount(1))
	store := testsupport.MustOpenStore(t, cfg)
	reporter := progress.NewHub(0)
	mgr := workflow.NewManager(cfg, store, nil, reporter, workflow.StageSet{
		Planner:  idleStage{name: "planning"},
		Renderer: idleStage{name: "rendering"},
	})
	d, err := New(cfg, store, nil, mgr, reporter, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d.api, d
}

func testRecord(t *testing.T, dir, name string) (analysis.Record, string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("riff"), 0o644); err != nil {
		t.Fatalf("write track: %v", err)
	}
	return analysis.Record{
		Filename:      name,
		DurationMS:    240000,
		BPM:           124,
		BPMConfidence: 0.92,
		Key:           "A minor",
		KeyConfidence: 0.88,
		Wheel:         "8A",
	}, path
}

func createBody(t *testing.T, pathA, pathB string, recA, recB analysis.Record) string {
	t.Helper()
	payload := api.CreateSessionRequest{
		TrackAPath: pathA,
		TrackBPath: pathB,
		TrackA:     recA,
		TrackB:     recB,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return string(encoded)
}

func TestCreateSessionAcceptsValidRequest(t *testing.T) {
	srv, _ := newTestServer(t)
	dir := t.TempDir()
	recA, pathA := testRecord(t, dir, "a.wav")
	recB, pathB := testRecord(t, dir, "b.wav")

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(createBody(t, pathA, pathB, recA, recB)))
	w := httptest.NewRecorder()
	srv.handleSessions(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp api.SessionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Session.UUID == "" || resp.Session.Status != string(queue.StatusPending) {
		t.Fatalf("unexpected session: %+v", resp.Session)
	}
}

func TestCreateSessionRejectsBadAnalysis(t *testing.T) {
	srv, _ := newTestServer(t)
	dir := t.TempDir()
	recA, pathA := testRecord(t, dir, "a.wav")
	recB, pathB := testRecord(t, dir, "b.wav")
	recB.BPM = -10

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(createBody(t, pathA, pathB, recA, recB)))
	w := httptest.NewRecorder()
	srv.handleSessions(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var resp api.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !strings.Contains(resp.Error, "track B") {
		t.Fatalf("unexpected error: %q", resp.Error)
	}
}

func TestCreateSessionRejectsMissingSource(t *testing.T) {
	srv, _ := newTestServer(t)
	dir := t.TempDir()
	recA, pathA := testRecord(t, dir, "a.wav")
	recB, _ := testRecord(t, dir, "b.wav")

	req := httptest.NewRequest(http.MethodPost, "/api/sessions",
		strings.NewReader(createBody(t, pathA, filepath.Join(dir, "gone.wav"), recA, recB)))
	w := httptest.NewRecorder()
	srv.handleSessions(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestListAndFetchSessions(t *testing.T) {
	srv, d := newTestServer(t)
	ctx := context.Background()
	session, err := d.store.NewSession(ctx, "/music/a.wav", "/music/b.wav", "{}", "")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	w := httptest.NewRecorder()
	srv.handleSessions(w, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list api.SessionListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Sessions) != 1 || list.Sessions[0].UUID != session.UUID {
		t.Fatalf("list = %+v", list.Sessions)
	}

	w = httptest.NewRecorder()
	srv.handleSessionSubtree(w, httptest.NewRequest(http.MethodGet, "/api/sessions/"+session.UUID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("fetch by uuid status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	srv.handleSessionSubtree(w, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/sessions/%d", session.ID), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("fetch by id status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	srv.handleSessionSubtree(w, httptest.NewRequest(http.MethodGet, "/api/sessions/does-not-exist", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing session status = %d", w.Code)
	}
}

func TestListSessionsRejectsUnknownStatus(t *testing.T) {
	srv, _ := newTestServer(t)
	w := httptest.NewRecorder()
	srv.handleSessions(w, httptest.NewRequest(http.MethodGet, "/api/sessions?status=bogus", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestCancelSession(t *testing.T) {
	srv, d := newTestServer(t)
	ctx := context.Background()
	session, _ := d.store.NewSession(ctx, "/music/a.wav", "/music/b.wav", "{}", "")

	w := httptest.NewRecorder()
	srv.handleSessionSubtree(w, httptest.NewRequest(http.MethodPost, "/api/sessions/"+session.UUID+"/cancel", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("cancel status = %d: %s", w.Code, w.Body.String())
	}
	var resp api.CancelResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode cancel: %v", err)
	}
	if !resp.Cancelled || resp.Session.Status != string(queue.StatusCancelled) {
		t.Fatalf("cancel response = %+v", resp)
	}
}

func TestSessionEvents(t *testing.T) {
	srv, d := newTestServer(t)
	ctx := context.Background()
	session, _ := d.store.NewSession(ctx, "/music/a.wav", "/music/b.wav", "{}", "")
	d.reporter.Publish(session.UUID, progress.StageAnalysis, 0.1, "Analyzing compatibility")
	d.reporter.Publish(session.UUID, progress.StageStrategy, 0.25, "Plan ready")

	w := httptest.NewRecorder()
	srv.handleSessionSubtree(w, httptest.NewRequest(http.MethodGet, "/api/sessions/"+session.UUID+"/events?since=0", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("events status = %d", w.Code)
	}
	var resp api.EventListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(resp.Events) != 2 || resp.Next == 0 {
		t.Fatalf("events = %+v next = %d", resp.Events, resp.Next)
	}
	if resp.Events[1].Stage != progress.StageStrategy || resp.Events[1].Progress != 0.25 {
		t.Fatalf("second event = %+v", resp.Events[1])
	}

	// Cursor resumes after the delivered batch.
	w = httptest.NewRecorder()
	srv.handleSessionSubtree(w, httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/api/sessions/%s/events?since=%d", session.UUID, resp.Next), nil))
	var rest api.EventListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &rest); err != nil {
		t.Fatalf("decode second batch: %v", err)
	}
	if len(rest.Events) != 0 {
		t.Fatalf("expected empty batch, got %+v", rest.Events)
	}
}

func TestSessionArtifact(t *testing.T) {
	srv, d := newTestServer(t)
	ctx := context.Background()
	session, _ := d.store.NewSession(ctx, "/music/a.wav", "/music/b.wav", "{}", "")

	w := httptest.NewRecorder()
	srv.handleSessionSubtree(w, httptest.NewRequest(http.MethodGet, "/api/sessions/"+session.UUID+"/artifact", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("artifact before render status = %d", w.Code)
	}

	artifact := filepath.Join(t.TempDir(), "mix.mp3")
	if err := os.WriteFile(artifact, []byte("ID3mp3data"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	session.ArtifactPath = artifact
	session.Strategy = "bass_swap"
	session.DurationMS = 241000
	session.PeakDB = -1.0
	if err := d.store.Update(ctx, session); err != nil {
		t.Fatalf("update session: %v", err)
	}

	w = httptest.NewRecorder()
	srv.handleSessionSubtree(w, httptest.NewRequest(http.MethodGet, "/api/sessions/"+session.UUID+"/artifact", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("artifact status = %d", w.Code)
	}
	if got := w.Header().Get("X-Mix-Strategy"); got != "bass_swap" {
		t.Fatalf("strategy header = %q", got)
	}
	if got := w.Header().Get("X-Mix-Duration-Ms"); got != "241000" {
		t.Fatalf("duration header = %q", got)
	}
	if got := w.Header().Get("X-Mix-Peak-Db"); got != "-1.0" {
		t.Fatalf("peak header = %q", got)
	}
	if w.Body.String() != "ID3mp3data" {
		t.Fatalf("artifact body = %q", w.Body.String())
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	w := httptest.NewRecorder()
	srv.handleStatus(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp api.DaemonStatus
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if resp.Running {
		t.Fatal("daemon not started, running must be false")
	}
	if len(resp.StageHealth) != 2 {
		t.Fatalf("stage health = %+v", resp.StageHealth)
	}
	if resp.SessionCounts["pending"] != 0 {
		t.Fatalf("counts = %v", resp.SessionCounts)
	}
	if len(resp.Dependencies) == 0 {
		t.Fatal("dependency preflight missing")
	}
}

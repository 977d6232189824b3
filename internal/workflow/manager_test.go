package workflow

import (
	"context"
	"testing"
	"time"

	"segue/internal/config"
	"segue/internal/progress"
	"segue/internal/queue"
	"segue/internal/services"
	"segue/internal/stage"
	"segue/internal/testsupport"
)

type fakeHandler struct {
	name       string
	prepareErr error
	executeErr error
	calls      int
	onExecute  func(*queue.Session)
}

func (f *fakeHandler) Prepare(ctx context.Context, session *queue.Session) error {
	return f.prepareErr
}

func (f *fakeHandler) Execute(ctx context.Context, session *queue.Session) error {
	f.calls++
	if f.executeErr != nil {
		return f.executeErr
	}
	if f.onExecute != nil {
		f.onExecute(session)
	}
	return nil
}

func (f *fakeHandler) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy(f.name)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithWorkerCount(1))
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.ErrorRetryInterval = 1
	return cfg
}

func newTestManager(t *testing.T, stages StageSet) (*Manager, *queue.Store, *progress.Hub) {
	t.Helper()
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	reporter := progress.NewHub(0)
	return NewManager(cfg, store, nil, reporter, stages), store, reporter
}

func TestClaimAndProcessDrivesSessionToCompleted(t *testing.T) {
	planner := &fakeHandler{name: "planning", onExecute: func(s *queue.Session) {
		s.DecisionJSON = `{"strategy":"bass_swap"}`
		s.Strategy = "bass_swap"
	}}
	renderer := &fakeHandler{name: "rendering", onExecute: func(s *queue.Session) {
		s.ArtifactPath = "/output/mix.mp3"
	}}
	mgr, store, reporter := newTestManager(t, StageSet{Planner: planner, Renderer: renderer})
	ctx := context.Background()

	session, err := store.NewSession(ctx, "/music/a.wav", "/music/b.wav", "{}", "")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	// First pass plans, second pass renders.
	for i := 0; i < 2; i++ {
		claimed, err := mgr.claimAndProcess(ctx, mgr.logger)
		if err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
		if !claimed {
			t.Fatalf("pass %d claimed nothing", i)
		}
	}

	got, err := store.GetByID(ctx, session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.Status != queue.StatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if got.CompletedAt == nil {
		t.Fatal("completed session missing completion time")
	}
	if planner.calls != 1 || renderer.calls != 1 {
		t.Fatalf("handler calls = %d/%d", planner.calls, renderer.calls)
	}

	event, ok := reporter.Latest(session.UUID)
	if !ok || event.Stage != progress.StageComplete || event.Progress != 1.0 {
		t.Fatalf("latest event = %+v", event)
	}

	claimed, err := mgr.claimAndProcess(ctx, mgr.logger)
	if err != nil || claimed {
		t.Fatalf("drained queue still claims: %v %v", claimed, err)
	}
}

func TestStageFailureClassifiesStatus(t *testing.T) {
	planner := &fakeHandler{
		name:       "planning",
		executeErr: services.Wrap(services.ErrValidation, "planning", "validate track A", "bpm out of range", nil),
	}
	mgr, store, reporter := newTestManager(t, StageSet{Planner: planner, Renderer: &fakeHandler{name: "rendering"}})
	ctx := context.Background()

	session, _ := store.NewSession(ctx, "/music/a.wav", "/music/b.wav", "{}", "")
	if _, err := mgr.claimAndProcess(ctx, mgr.logger); err == nil {
		t.Fatal("expected stage error to propagate")
	}

	got, _ := store.GetByID(ctx, session.ID)
	if got.Status != queue.StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Fatal("error message not persisted")
	}

	event, ok := reporter.Latest(session.UUID)
	if !ok || event.Stage != progress.StageError {
		t.Fatalf("latest event = %+v", event)
	}
	if event.Progress >= 1.0 {
		t.Fatalf("error event progress = %v", event.Progress)
	}
}

func TestCancelRequestedHonoredBeforeRender(t *testing.T) {
	renderer := &fakeHandler{name: "rendering"}
	mgr, store, _ := newTestManager(t, StageSet{Planner: &fakeHandler{name: "planning"}, Renderer: renderer})
	ctx := context.Background()

	session, _ := store.NewSession(ctx, "/music/a.wav", "/music/b.wav", "{}", "")
	session.Status = queue.StatusPlanned
	session.CancelRequested = true
	if err := store.Update(ctx, session); err != nil {
		t.Fatalf("update: %v", err)
	}

	if _, err := mgr.claimAndProcess(ctx, mgr.logger); err != nil {
		t.Fatalf("claim: %v", err)
	}
	got, _ := store.GetByID(ctx, session.ID)
	if got.Status != queue.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", got.Status)
	}
	if renderer.calls != 0 {
		t.Fatal("cancelled session must not reach the render handler")
	}
}

func TestStartResetsStuckSessionsAndStops(t *testing.T) {
	planner := &fakeHandler{name: "planning"}
	mgr, store, _ := newTestManager(t, StageSet{Planner: planner, Renderer: &fakeHandler{name: "rendering"}})
	ctx := context.Background()

	stuck, _ := store.NewSession(ctx, "/music/a.wav", "/music/b.wav", "{}", "")
	stuck.Status = queue.StatusPlanning
	if err := store.Update(ctx, stuck); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := mgr.Start(ctx); err == nil {
		mgr.Stop()
		t.Fatal("second start should fail")
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		got, err := store.GetByID(ctx, stuck.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Status == queue.StatusCompleted {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	mgr.Stop()

	got, _ := store.GetByID(ctx, stuck.ID)
	if got.Status != queue.StatusCompleted {
		t.Fatalf("stuck session ended as %s, want completed", got.Status)
	}
}

func TestStartRejectsMissingHandler(t *testing.T) {
	mgr, _, _ := newTestManager(t, StageSet{Planner: &fakeHandler{name: "planning"}})
	if err := mgr.Start(context.Background()); err == nil {
		mgr.Stop()
		t.Fatal("expected error for missing renderer handler")
	}
}

func TestHealthCollectsStages(t *testing.T) {
	mgr, _, _ := newTestManager(t, StageSet{Planner: &fakeHandler{name: "planning"}, Renderer: &fakeHandler{name: "rendering"}})
	health := mgr.Health(context.Background())
	if len(health) != 2 || !health[0].Ready || !health[1].Ready {
		t.Fatalf("health = %+v", health)
	}
}

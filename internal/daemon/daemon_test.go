package daemon_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"segue/internal/config"
	"segue/internal/daemon"
	"segue/internal/progress"
	"segue/internal/queue"
	"segue/internal/stage"
	"segue/internal/testsupport"
	"segue/internal/workflow"
)

type noopStage struct{ name string }

func (s noopStage) Prepare(context.Context, *queue.Session) error { return nil }
func (s noopStage) Execute(context.Context, *queue.Session) error { return nil }
func (s noopStage) HealthCheck(context.Context) stage.Health      { return stage.Healthy(s.name) }

func newDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	reporter := progress.NewHub(0)
	mgr := workflow.NewManager(cfg, store, nil, reporter, workflow.StageSet{
		Planner:  noopStage{name: "planning"},
		Renderer: noopStage{name: "rendering"},
	})
	d, err := daemon.New(cfg, store, nil, mgr, reporter, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkerCount(1))
	d := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.LockFilePath == "" || status.SessionDBPath == "" {
		t.Fatalf("status paths missing: %+v", status)
	}

	addr := d.APIAddr()
	if addr == "" {
		t.Fatal("api listener not bound")
	}
	resp, err := http.Get("http://" + addr + "/api/status")
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status endpoint returned %d", resp.StatusCode)
	}

	// Second start should fail.
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	time.Sleep(50 * time.Millisecond)
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkerCount(1))
	first := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first start: %v", err)
	}
	defer first.Stop()

	secondCfg := *cfg
	secondCfg.Paths.APIBind = "127.0.0.1:0"
	second := newDaemon(t, &secondCfg)
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected lock to reject second instance")
	}
}

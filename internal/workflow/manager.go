package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"log/slog"

	"golang.org/x/sync/errgroup"

	"segue/internal/config"
	"segue/internal/logging"
	"segue/internal/progress"
	"segue/internal/queue"
	"segue/internal/services"
	"segue/internal/stage"
)

// StageSet bundles the concrete handlers the manager orchestrates.
type StageSet struct {
	Planner  stage.Handler
	Renderer stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      queue.Status
	processingStatus queue.Status
	doneStatus       queue.Status
}

// Manager coordinates session processing across a bounded worker pool.
type Manager struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	reporter *progress.Hub

	stages             []pipelineStage
	workers            int
	pollInterval       time.Duration
	errorRetryInterval time.Duration
	retention          time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	group   *errgroup.Group
	lastErr error
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, reporter *progress.Hub, stages StageSet) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	workers := cfg.Workflow.WorkerCount
	if workers < 1 {
		workers = 1
	}
	return &Manager{
		cfg:      cfg,
		store:    store,
		logger:   logging.NewComponentLogger(logger, "workflow"),
		reporter: reporter,
		stages: []pipelineStage{
			{
				name:             "planning",
				handler:          stages.Planner,
				startStatus:      queue.StatusPending,
				processingStatus: queue.StatusPlanning,
				doneStatus:       queue.StatusPlanned,
			},
			{
				name:             "rendering",
				handler:          stages.Renderer,
				startStatus:      queue.StatusPlanned,
				processingStatus: queue.StatusRendering,
				doneStatus:       queue.StatusCompleted,
			},
		},
		workers:            workers,
		pollInterval:       time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		errorRetryInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		retention:          time.Duration(cfg.Workflow.RetentionHours) * time.Hour,
	}
}

// Start begins background processing. Sessions stranded in a processing
// state by a previous run are reset before workers launch.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}
	for _, stg := range m.stages {
		if stg.handler == nil {
			return fmt.Errorf("stage %s has no handler", stg.name)
		}
	}

	if reset, err := m.store.ResetStuckProcessing(ctx); err != nil {
		return fmt.Errorf("reset stuck sessions: %w", err)
	} else if reset > 0 {
		m.logger.Info("reset sessions stranded by previous run", logging.Int64("count", reset))
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	m.cancel = cancel
	m.group = group
	m.running = true

	for i := 0; i < m.workers; i++ {
		worker := i
		group.Go(func() error {
			m.runWorker(groupCtx, worker)
			return nil
		})
	}
	group.Go(func() error {
		m.runJanitor(groupCtx)
		return nil
	})
	return nil
}

// Stop terminates background processing and waits for workers to drain.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	group := m.group
	m.running = false
	m.cancel = nil
	m.group = nil
	m.mu.Unlock()

	cancel()
	_ = group.Wait()
}

// LastError returns the most recent processing error, for status output.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Health reports readiness of every configured stage.
func (m *Manager) Health(ctx context.Context) []stage.Health {
	out := make([]stage.Health, 0, len(m.stages))
	for _, stg := range m.stages {
		if stg.handler == nil {
			out = append(out, stage.Unhealthy(stg.name, "handler missing"))
			continue
		}
		out = append(out, stg.handler.HealthCheck(ctx))
	}
	return out
}

func (m *Manager) runWorker(ctx context.Context, worker int) {
	logger := m.logger.With(logging.Int("worker", worker))
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		claimed, err := m.claimAndProcess(ctx, logger)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.setLastError(err)
			logger.Error("session processing failed", logging.Error(err))
			if !m.sleep(ctx, m.errorRetryInterval) {
				return
			}
			continue
		}
		if !claimed {
			if !m.sleep(ctx, m.pollInterval) {
				return
			}
		}
	}
}

// claimAndProcess claims at most one session for the first stage with work
// available and runs it through that stage. The later stage is checked
// first so in-flight sessions finish before new ones start.
func (m *Manager) claimAndProcess(ctx context.Context, logger *slog.Logger) (bool, error) {
	for i := len(m.stages) - 1; i >= 0; i-- {
		stg := m.stages[i]
		session, err := m.store.ClaimNext(ctx, stg.startStatus, stg.processingStatus)
		if err != nil {
			return false, err
		}
		if session == nil {
			continue
		}
		return true, m.processSession(ctx, logger, stg, session)
	}
	return false, nil
}

func (m *Manager) processSession(ctx context.Context, logger *slog.Logger, stg pipelineStage, session *queue.Session) error {
	stageCtx := services.WithStage(services.WithSessionID(ctx, session.ID), stg.name)
	stageLogger := logging.WithContext(stageCtx, logger).With(
		logging.String("session_uuid", session.UUID),
		logging.String("stage", stg.name),
	)

	// Cooperative cancellation is honored between stages only; once the
	// render stage is claimed it runs to completion.
	if session.CancelRequested && stg.startStatus == queue.StatusPlanned {
		return m.finishCancelled(stageCtx, stageLogger, session)
	}

	stageStart := time.Now()
	stageLogger.Info("stage started", logging.String("status", string(stg.processingStatus)))

	if err := stg.handler.Prepare(stageCtx, session); err != nil {
		m.failSession(stageCtx, stageLogger, stg.name, session, err)
		return err
	}
	if err := m.store.Update(stageCtx, session); err != nil {
		return fmt.Errorf("persist stage preparation: %w", err)
	}

	execErr := stg.handler.Execute(stageCtx, session)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			stageLogger.Debug("stage interrupted by shutdown")
			return execErr
		}
		m.failSession(stageCtx, stageLogger, stg.name, session, execErr)
		return execErr
	}

	if session.Status == stg.processingStatus || session.Status == "" {
		session.Status = stg.doneStatus
	}
	if session.Status == queue.StatusCompleted {
		if session.CompletedAt == nil {
			now := time.Now().UTC()
			session.CompletedAt = &now
		}
		if session.ProgressPercent < 1 {
			session.SetProgress(progress.StageComplete, "Mix ready", 1.0)
		}
		m.publish(session, progress.StageComplete, 1.0, session.ProgressMessage)
	}
	if err := m.store.Update(stageCtx, session); err != nil {
		return fmt.Errorf("persist stage result: %w", err)
	}

	stageLogger.Info("stage completed",
		logging.String("next_status", string(session.Status)),
		logging.Duration("stage_duration", time.Since(stageStart)))
	return nil
}

func (m *Manager) finishCancelled(ctx context.Context, logger *slog.Logger, session *queue.Session) error {
	session.SetCancelled()
	now := time.Now().UTC()
	session.CompletedAt = &now
	if err := m.store.Update(ctx, session); err != nil {
		return fmt.Errorf("persist cancellation: %w", err)
	}
	m.publish(session, progress.StageError, session.ProgressPercent, "Session cancelled")
	logger.Info("session cancelled before rendering")
	return nil
}

func (m *Manager) failSession(ctx context.Context, logger *slog.Logger, stageName string, session *queue.Session, stageErr error) {
	message := strings.TrimSpace(stageErr.Error())
	if message == "" {
		message = fmt.Sprintf("%s failed", stageName)
	}

	session.Status = services.FailureStatus(stageErr)
	session.ErrorMessage = message
	session.ProgressStage = string(session.Status)
	session.ProgressMessage = message
	now := time.Now().UTC()
	session.CompletedAt = &now

	logger.Error("stage failed",
		logging.Error(stageErr),
		logging.String("error_kind", services.Kind(stageErr)),
		logging.String("resolved_status", string(session.Status)))

	if err := m.store.Update(ctx, session); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not persist stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}
	m.publish(session, progress.StageError, session.ProgressPercent, message)
	m.setLastError(stageErr)
}

// runJanitor prunes terminal sessions past the retention window.
func (m *Manager) runJanitor(ctx context.Context) {
	if m.retention <= 0 {
		return
	}
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pruned, err := m.store.PruneCompleted(ctx, m.retention)
			if err != nil {
				m.logger.Warn("session retention prune failed", logging.Error(err))
				continue
			}
			if pruned > 0 {
				m.logger.Info("pruned expired sessions", logging.Int64("count", pruned))
			}
		}
	}
}

func (m *Manager) publish(session *queue.Session, stageName string, fraction float64, message string) {
	if m.reporter == nil || session == nil {
		return
	}
	m.reporter.Publish(session.UUID, stageName, fraction, message)
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Second
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

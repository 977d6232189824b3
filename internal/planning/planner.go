package planning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"segue/internal/analysis"
	"segue/internal/config"
	"segue/internal/logging"
	"segue/internal/progress"
	"segue/internal/queue"
	"segue/internal/services"
	"segue/internal/services/reasoning"
	"segue/internal/stage"
	"segue/internal/strategist"
)

// Planner validates the analysis bundle and produces the mix decision.
type Planner struct {
	cfg        *config.Config
	logger     *slog.Logger
	dispatcher *strategist.Dispatcher
	reporter   *progress.Hub
	reasoner   *reasoning.Client
}

// NewPlanner constructs the planning stage handler using the configured
// reasoning service.
func NewPlanner(cfg *config.Config, logger *slog.Logger, reporter *progress.Hub) *Planner {
	rc := cfg.GetReasoning()
	client := reasoning.NewClient(reasoning.Config{
		APIKey:         rc.APIKey,
		BaseURL:        rc.BaseURL,
		Model:          rc.Model,
		TimeoutSeconds: rc.TimeoutSeconds,
	})
	dispatcher := strategist.NewDispatcher(client, time.Duration(rc.TimeoutSeconds)*time.Second, logger)
	return NewPlannerWithDispatcher(cfg, logger, reporter, dispatcher, client)
}

// NewPlannerWithDispatcher allows injecting the dispatcher (used in tests).
func NewPlannerWithDispatcher(cfg *config.Config, logger *slog.Logger, reporter *progress.Hub, dispatcher *strategist.Dispatcher, reasoner *reasoning.Client) *Planner {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = logging.NewComponentLogger(stageLogger, "planning")
	}
	return &Planner{
		cfg:        cfg,
		logger:     stageLogger,
		dispatcher: dispatcher,
		reporter:   reporter,
		reasoner:   reasoner,
	}
}

// Prepare validates both analysis records, applies the confidence policy,
// and stores the computed compatibility back on the session.
func (p *Planner) Prepare(ctx context.Context, session *queue.Session) error {
	logger := logging.WithContext(ctx, p.logger)

	bundle, err := stage.ParseBundle(session)
	if err != nil {
		return err
	}
	if err := analysis.ValidateRecord(bundle.TrackA); err != nil {
		return services.Wrap(services.ErrValidation, "planning", "validate track A", "", err)
	}
	if err := analysis.ValidateRecord(bundle.TrackB); err != nil {
		return services.Wrap(services.ErrValidation, "planning", "validate track B", "", err)
	}

	analysis.ApplyConfidencePolicy(&bundle.TrackA)
	analysis.ApplyConfidencePolicy(&bundle.TrackB)
	for _, warning := range []string{bundle.TrackA.BPMWarning, bundle.TrackA.KeyWarning, bundle.TrackB.BPMWarning, bundle.TrackB.KeyWarning} {
		if strings.TrimSpace(warning) != "" {
			session.AppendWarnings(warning)
		}
	}

	bundle.Compatibility = analysis.Compare(bundle.TrackA, bundle.TrackB)
	encoded, err := json.Marshal(bundle)
	if err != nil {
		return services.Wrap(services.ErrValidation, "planning", "encode bundle", "", err)
	}
	session.BundleJSON = string(encoded)
	session.SetProgress(progress.StageAnalysis, "Compatibility analyzed", 0.1)
	p.publish(session, progress.StageAnalysis, 0.1, "Compatibility analyzed")

	logger.Info("compatibility computed",
		logging.String("wheel_relation", bundle.Compatibility.WheelRelation),
		logging.Float64("harmonic_score", bundle.Compatibility.HarmonicMixingScore),
		logging.Float64("bpm_diff", bundle.Compatibility.BPMDiff))
	return nil
}

// Execute runs the dispatcher and persists the finalized decision on the
// session. The dispatcher guarantees a decision for every live request, so
// the only error surfaced is a cancelled context.
func (p *Planner) Execute(ctx context.Context, session *queue.Session) error {
	logger := logging.WithContext(ctx, p.logger)

	bundle, err := stage.ParseBundle(session)
	if err != nil {
		return err
	}
	prefs, err := stage.ParsePreferences(session)
	if err != nil {
		return err
	}

	p.publish(session, progress.StageStrategy, 0.15, "Requesting mix plan")
	outcome, err := p.dispatcher.Decide(ctx, bundle, prefs)
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(outcome.Decision)
	if err != nil {
		return services.Wrap(services.ErrValidation, "planning", "encode decision", "", err)
	}
	session.DecisionJSON = string(encoded)
	session.DecisionSource = outcome.Source
	session.Strategy = outcome.Decision.Strategy
	if outcome.RejectReason != "" {
		session.AppendWarnings(fmt.Sprintf("external plan rejected: %s", outcome.RejectReason))
	}
	if outcome.Decision.Incompatible() {
		session.Suggestion = outcome.Decision.Suggestion
	}

	message := fmt.Sprintf("Plan ready (%s via %s)", outcome.Decision.Strategy, outcome.Source)
	session.SetProgress(progress.StageStrategy, message, 0.25)
	p.publish(session, progress.StageStrategy, 0.25, message)

	logger.Info("mix decision finalized",
		logging.String("strategy", outcome.Decision.Strategy),
		logging.String("source", outcome.Source),
		logging.Float64("confidence", outcome.Decision.Confidence),
		logging.String("reject_reason", outcome.RejectReason))
	return nil
}

// HealthCheck reports stage readiness. The fallback planner keeps the stage
// usable without a configured reasoning service.
func (p *Planner) HealthCheck(ctx context.Context) stage.Health {
	if p.dispatcher == nil {
		return stage.Unhealthy("planning", "dispatcher not initialized")
	}
	return stage.Healthy("planning")
}

// ReasoningConfigured reports whether the external reasoning service has
// credentials. Surfaced by the daemon status endpoint.
func (p *Planner) ReasoningConfigured() bool {
	return p.reasoner.Configured()
}

func (p *Planner) publish(session *queue.Session, stageName string, fraction float64, message string) {
	if p.reporter == nil || session == nil {
		return
	}
	p.reporter.Publish(session.UUID, stageName, fraction, message)
}

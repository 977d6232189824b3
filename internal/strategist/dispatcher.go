package strategist

import (
	"context"
	"log/slog"
	"time"

	"segue/internal/analysis"
	"segue/internal/decision"
	"segue/internal/logging"
)

// Dispatch states. Every request walks Idle through Finalized.
type State string

const (
	StateIdle             State = "idle"
	StateAwaitingExternal State = "awaiting_external_decision"
	StateAccepted         State = "accepted"
	StateRejected         State = "rejected"
	StateTimedOut         State = "timed_out"
	StateFinalized        State = "finalized"
)

// Decision sources.
const (
	SourceExternal = "external"
	SourceFallback = "fallback"
)

// DefaultExternalTimeout bounds the single reasoning-service call.
const DefaultExternalTimeout = 12 * time.Second

// Proposer is the external reasoning surface the dispatcher consumes.
type Proposer interface {
	Configured() bool
	Propose(ctx context.Context, bundle analysis.Bundle, prefs decision.Preferences) (decision.MixDecision, error)
}

// Outcome is the finalized result of one dispatch: exactly one decision,
// its source, and the states the request walked through.
type Outcome struct {
	Decision decision.MixDecision
	Source   string
	Trace    []State
	// RejectReason explains why an external candidate was discarded, when
	// one was.
	RejectReason string
}

// Dispatcher finalizes one mix decision per request, preferring the external
// reasoning service and falling back to the rule-based planner.
type Dispatcher struct {
	proposer Proposer
	timeout  time.Duration
	logger   *slog.Logger
}

// NewDispatcher constructs a dispatcher. A nil proposer means the fallback
// planner handles every request.
func NewDispatcher(proposer Proposer, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultExternalTimeout
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Dispatcher{
		proposer: proposer,
		timeout:  timeout,
		logger:   logging.NewComponentLogger(logger, "strategist"),
	}
}

// Decide runs the dispatch state machine for one request. It makes at most
// one external call, bounded by the configured deadline, and always returns
// a finalized decision unless the caller cancelled or the fallback itself
// produced an invalid plan.
func (d *Dispatcher) Decide(ctx context.Context, bundle analysis.Bundle, prefs decision.Preferences) (Outcome, error) {
	out := Outcome{Trace: []State{StateIdle}}

	if d.proposer == nil || !d.proposer.Configured() {
		d.logger.Info("reasoning service unconfigured, planning with rules")
		return d.finalizeFallback(ctx, bundle, prefs, out, "")
	}

	out.Trace = append(out.Trace, StateAwaitingExternal)
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	candidate, err := d.proposer.Propose(callCtx, bundle, prefs)
	cancel()

	switch {
	case err != nil && callCtx.Err() != nil && ctx.Err() == nil:
		// Deadline expired while the parent is still live: abandon the
		// call, do not retry it.
		out.Trace = append(out.Trace, StateTimedOut)
		d.logger.Warn("reasoning service timed out, planning with rules",
			logging.Duration("timeout", d.timeout))
		return d.finalizeFallback(ctx, bundle, prefs, out, "external call timed out")
	case ctx.Err() != nil:
		return out, ctx.Err()
	case err != nil:
		out.Trace = append(out.Trace, StateRejected)
		d.logger.Warn("reasoning service failed, planning with rules", logging.Error(err))
		return d.finalizeFallback(ctx, bundle, prefs, out, err.Error())
	}

	if err := candidate.Validate(bundle.TrackA.DurationMS, bundle.TrackB.DurationMS); err != nil {
		out.Trace = append(out.Trace, StateRejected)
		d.logger.Warn("external decision failed validation, planning with rules",
			logging.Error(err),
			logging.String("strategy", candidate.Strategy))
		return d.finalizeFallback(ctx, bundle, prefs, out, err.Error())
	}

	// A schema-valid candidate is accepted regardless of its confidence;
	// incompatible is a legitimate terminal outcome in its own right.
	if prefs.MixInKey && !candidate.Incompatible() && candidate.TrackB.PitchShiftSemitones == 0 {
		if wa, errA := analysis.ParseWheel(bundle.TrackA.Wheel); errA == nil {
			if wb, errB := analysis.ParseWheel(bundle.TrackB.Wheel); errB == nil {
				candidate.TrackB.PitchShiftSemitones = analysis.PitchShiftToMatch(wb, wa)
			}
		}
	}
	out.Trace = append(out.Trace, StateAccepted, StateFinalized)
	out.Decision = candidate
	out.Source = SourceExternal
	d.logger.Info("external decision accepted",
		logging.String("strategy", candidate.Strategy),
		logging.Float64("confidence", candidate.Confidence))
	return out, nil
}

func (d *Dispatcher) finalizeFallback(ctx context.Context, bundle analysis.Bundle, prefs decision.Preferences, out Outcome, reason string) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return out, err
	}
	planned := Fallback(bundle, prefs)
	// The fallback carries the same validation contract as an external
	// candidate.
	if err := planned.Validate(bundle.TrackA.DurationMS, bundle.TrackB.DurationMS); err != nil {
		return out, err
	}
	out.Decision = planned
	out.Source = SourceFallback
	out.RejectReason = reason
	out.Trace = append(out.Trace, StateFinalized)
	return out, nil
}

package strategist

import (
	"context"
	"errors"
	"testing"
	"time"

	"segue/internal/analysis"
	"segue/internal/decision"
	"segue/internal/services"
)

type stubProposer struct {
	configured bool
	decision   decision.MixDecision
	err        error
	block      bool
	calls      int
}

func (s *stubProposer) Configured() bool { return s.configured }

func (s *stubProposer) Propose(ctx context.Context, bundle analysis.Bundle, prefs decision.Preferences) (decision.MixDecision, error) {
	s.calls++
	if s.block {
		<-ctx.Done()
		return decision.MixDecision{}, services.Wrap(services.ErrTimeout, "reasoning", "request", "deadline exceeded", ctx.Err())
	}
	return s.decision, s.err
}

func externalDecision() decision.MixDecision {
	return decision.MixDecision{
		Strategy:   decision.StrategyPhraseBlend,
		Confidence: 0.85,
		Reasoning:  "long blend across compatible choruses",
		TrackA:     decision.TrackCue{OutPointMS: 160000, FadeStartMS: 160000, TempoStretchFactor: 1.016},
		TrackB:     decision.TrackCue{InPointMS: 30000, FadeEndMS: 62000, TempoStretchFactor: 0.984},
		Transition: decision.Transition{TotalDurationMS: 32000, CrossfadeCurve: decision.CurveEqualPower},
	}
}

func hasState(trace []State, want State) bool {
	for _, s := range trace {
		if s == want {
			return true
		}
	}
	return false
}

func TestDecideAcceptsValidExternalDecision(t *testing.T) {
	proposer := &stubProposer{configured: true, decision: externalDecision()}
	d := NewDispatcher(proposer, time.Second, nil)

	out, err := d.Decide(context.Background(), fallbackBundle(), decision.Preferences{})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if out.Source != SourceExternal {
		t.Fatalf("source = %q, want external", out.Source)
	}
	if out.Decision.Strategy != decision.StrategyPhraseBlend {
		t.Fatalf("strategy = %q", out.Decision.Strategy)
	}
	if !hasState(out.Trace, StateAccepted) || !hasState(out.Trace, StateFinalized) {
		t.Fatalf("trace = %v", out.Trace)
	}
	if proposer.calls != 1 {
		t.Fatalf("external calls = %d, want 1", proposer.calls)
	}
}

func TestDecideAcceptsLowConfidenceCandidate(t *testing.T) {
	candidate := externalDecision()
	candidate.Confidence = 0.1
	proposer := &stubProposer{configured: true, decision: candidate}
	d := NewDispatcher(proposer, time.Second, nil)

	out, err := d.Decide(context.Background(), fallbackBundle(), decision.Preferences{})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if out.Source != SourceExternal {
		t.Fatalf("source = %q, schema-valid low confidence should be accepted", out.Source)
	}
}

func TestDecideTimeoutFallsBack(t *testing.T) {
	proposer := &stubProposer{configured: true, block: true}
	d := NewDispatcher(proposer, 20*time.Millisecond, nil)

	out, err := d.Decide(context.Background(), fallbackBundle(), decision.Preferences{})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if out.Source != SourceFallback {
		t.Fatalf("source = %q, want fallback", out.Source)
	}
	if !hasState(out.Trace, StateTimedOut) {
		t.Fatalf("trace = %v, want timed_out", out.Trace)
	}
	if out.Decision.Confidence != 0.5 {
		t.Fatalf("confidence = %v, want exactly 0.5", out.Decision.Confidence)
	}
	if out.Decision.SFX.Enabled {
		t.Fatal("fallback must disable sfx")
	}
	if proposer.calls != 1 {
		t.Fatalf("external calls = %d, want exactly one (no retry)", proposer.calls)
	}
}

func TestDecideInvalidCandidateFallsBack(t *testing.T) {
	candidate := externalDecision()
	candidate.TrackA.OutPointMS = 999999 // past track A's duration
	proposer := &stubProposer{configured: true, decision: candidate}
	d := NewDispatcher(proposer, time.Second, nil)

	out, err := d.Decide(context.Background(), fallbackBundle(), decision.Preferences{})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if out.Source != SourceFallback {
		t.Fatalf("source = %q, want fallback", out.Source)
	}
	if !hasState(out.Trace, StateRejected) {
		t.Fatalf("trace = %v, want rejected", out.Trace)
	}
	if out.RejectReason == "" {
		t.Fatal("expected a reject reason")
	}
}

func TestDecideServiceErrorFallsBack(t *testing.T) {
	proposer := &stubProposer{
		configured: true,
		err:        services.Wrap(services.ErrExternalTool, "reasoning", "request", "http 500", nil),
	}
	d := NewDispatcher(proposer, time.Second, nil)

	out, err := d.Decide(context.Background(), fallbackBundle(), decision.Preferences{})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if out.Source != SourceFallback {
		t.Fatalf("source = %q, want fallback", out.Source)
	}
}

func TestDecideIncompatibleIsTerminal(t *testing.T) {
	proposer := &stubProposer{configured: true, decision: decision.MixDecision{
		Strategy:   decision.StrategyIncompatible,
		Confidence: 0,
		Reasoning:  "ten BPM apart with clashing keys",
		Suggestion: "pick a track closer to 124 BPM in 8A",
	}}
	d := NewDispatcher(proposer, time.Second, nil)

	out, err := d.Decide(context.Background(), fallbackBundle(), decision.Preferences{})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if out.Source != SourceExternal {
		t.Fatalf("source = %q, incompatible should surface as-is", out.Source)
	}
	if !out.Decision.Incompatible() {
		t.Fatalf("strategy = %q", out.Decision.Strategy)
	}
}

func TestDecideUnconfiguredUsesFallback(t *testing.T) {
	d := NewDispatcher(&stubProposer{configured: false}, time.Second, nil)
	out, err := d.Decide(context.Background(), fallbackBundle(), decision.Preferences{})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if out.Source != SourceFallback {
		t.Fatalf("source = %q, want fallback", out.Source)
	}
}

func TestDecideFallbackOutcomeSatisfiesContract(t *testing.T) {
	bundle := fallbackBundle()
	bundle.TrackB.DurationMS = 60000
	bundle.TrackB.BeatsMS = beatsEvery(60000, 469)
	bundle.TrackB.DownbeatsMS = beatsEvery(60000, 1876)
	bundle.TrackB.Phrases = []analysis.Phrase{
		{StartMS: 0, EndMS: 50000, Bars: 26, Type: "intro", AvgEnergy: 0.2},
		{StartMS: 50000, EndMS: 60000, Bars: 5, Type: "verse", AvgEnergy: 0.5},
	}
	bundle.Compatibility = analysis.Compare(bundle.TrackA, bundle.TrackB)

	d := NewDispatcher(nil, time.Second, nil)
	out, err := d.Decide(context.Background(), bundle, decision.Preferences{})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if out.Source != SourceFallback {
		t.Fatalf("source = %q, want fallback", out.Source)
	}
	if err := out.Decision.Validate(bundle.TrackA.DurationMS, bundle.TrackB.DurationMS); err != nil {
		t.Fatalf("fallback outcome failed the decision contract: %v", err)
	}
}

func TestDecideCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := NewDispatcher(&stubProposer{configured: true, block: true}, time.Second, nil)
	_, err := d.Decide(ctx, fallbackBundle(), decision.Preferences{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

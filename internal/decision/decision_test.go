package decision

import (
	"strings"
	"testing"
)

func validDecision() MixDecision {
	return MixDecision{
		Strategy:   StrategyBassSwap,
		Confidence: 0.8,
		Reasoning:  "adjacent keys and a small tempo gap",
		TrackA: TrackCue{
			OutPointMS:         168000,
			FadeStartMS:        168000,
			TempoStretchFactor: 1.012,
		},
		TrackB: TrackCue{
			InPointMS:          32000,
			FadeEndMS:          48000,
			TempoStretchFactor: 0.987,
		},
		Transition: Transition{
			TotalDurationMS: 16000,
			CrossfadeCurve:  CurveEqualPower,
			EQAutomation: []EQEntry{
				{Track: TrackA, Band: BandBass, Action: ActionCut, StartMS: 168000, EndMS: 176000, FromDB: 0, ToDB: -12, Curve: CurveLinear},
				{Track: TrackB, Band: BandBass, Action: ActionBoost, StartMS: 32000, EndMS: 40000, FromDB: -12, ToDB: 0, Curve: CurveLinear},
			},
		},
		SFX: SFX{
			Enabled:      true,
			Type:         "riser",
			PositionMS:   164000,
			DurationMS:   4000,
			Source:       "library",
			FallbackFile: "riser_01.wav",
		},
	}
}

const (
	testDurationA = 240000.0
	testDurationB = 230000.0
)

func TestValidateAcceptsWellFormedDecision(t *testing.T) {
	if err := validDecision().Validate(testDurationA, testDurationB); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsMalformedDecisions(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*MixDecision)
		mention string
	}{
		{"unknown strategy", func(d *MixDecision) { d.Strategy = "wild_cut" }, "strategy"},
		{"confidence above one", func(d *MixDecision) { d.Confidence = 1.2 }, "confidence"},
		{"out point past duration", func(d *MixDecision) { d.TrackA.OutPointMS = testDurationA + 1 }, "out point"},
		{"in point past duration", func(d *MixDecision) { d.TrackB.InPointMS = testDurationB + 1 }, "in point"},
		{"zero stretch factor", func(d *MixDecision) { d.TrackA.TempoStretchFactor = 0 }, "stretch"},
		{"zero transition duration", func(d *MixDecision) { d.Transition.TotalDurationMS = 0 }, "duration"},
		{"unknown crossfade curve", func(d *MixDecision) { d.Transition.CrossfadeCurve = "sigmoid" }, "curve"},
		{"eq window reversed", func(d *MixDecision) {
			d.Transition.EQAutomation[0].StartMS = 176000
			d.Transition.EQAutomation[0].EndMS = 168000
		}, "time-ordered"},
		{"eq unknown band", func(d *MixDecision) { d.Transition.EQAutomation[0].Band = "presence" }, "band"},
		{"eq past track end", func(d *MixDecision) { d.Transition.EQAutomation[1].EndMS = testDurationB + 1 }, "past its track"},
		{"sfx without fallback", func(d *MixDecision) { d.SFX.FallbackFile = "" }, "fallback"},
	}
	for _, tc := range cases {
		d := validDecision()
		tc.mutate(&d)
		err := d.Validate(testDurationA, testDurationB)
		if err == nil {
			t.Errorf("%s: expected validation error", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.mention) {
			t.Errorf("%s: error %q does not mention %q", tc.name, err, tc.mention)
		}
	}
}

func TestValidateIncompatibleTerminalVariant(t *testing.T) {
	d := MixDecision{
		Strategy:   StrategyIncompatible,
		Confidence: 0,
		Reasoning:  "six steps apart on the wheel",
		Suggestion: "try a track in 8A or 9A instead",
	}
	if err := d.Validate(testDurationA, testDurationB); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d.Confidence = 0.4
	if err := d.Validate(testDurationA, testDurationB); err == nil {
		t.Fatal("incompatible with nonzero confidence should fail")
	}

	d.Confidence = 0
	d.Suggestion = ""
	if err := d.Validate(testDurationA, testDurationB); err == nil {
		t.Fatal("incompatible without suggestion should fail")
	}
}

func TestSimplifiedDropsRiskyFeatures(t *testing.T) {
	d := validDecision()
	s := d.Simplified()

	if s.Transition.CrossfadeCurve != CurveLinear {
		t.Fatalf("curve = %q, want linear", s.Transition.CrossfadeCurve)
	}
	if len(s.Transition.EQAutomation) != 0 {
		t.Fatal("simplified decision should carry no EQ automation")
	}
	if s.SFX.Enabled {
		t.Fatal("simplified decision should disable sfx")
	}
	if s.TrackA.OutPointMS != d.TrackA.OutPointMS || s.TrackB.InPointMS != d.TrackB.InPointMS {
		t.Fatal("simplified decision must preserve cue points")
	}
	if s.TrackA.TempoStretchFactor != d.TrackA.TempoStretchFactor {
		t.Fatal("simplified decision must preserve stretch factors")
	}
	if err := s.Validate(testDurationA, testDurationB); err != nil {
		t.Fatalf("simplified decision failed validation: %v", err)
	}
}

package strategist

import (
	"math"

	"segue/internal/analysis"
	"segue/internal/decision"
)

// FallbackReasoning is the fixed explanation attached to every plan the
// rule-based planner produces.
const FallbackReasoning = "Deterministic rule-based plan: 8-bar linear crossfade with bass swap."

const (
	fallbackConfidence      = 0.5
	fallbackBars            = 8
	beatsPerBar             = 4
	defaultTransitionAnchor = 0.7
)

// Fallback builds a mix decision from rules alone. It is fully deterministic
// and needs no network. The output satisfies the same validation contract as
// an external decision.
func Fallback(bundle analysis.Bundle, prefs decision.Preferences) decision.MixDecision {
	a := bundle.TrackA
	b := bundle.TrackB
	compat := bundle.Compatibility

	// Out point: downbeat of A nearest the requested transition start, or
	// nearest 70% of the track absent a preference.
	target := a.DurationMS * defaultTransitionAnchor
	if prefs.TransitionStartMS > 0 {
		target = prefs.TransitionStartMS
	}
	outPoint := nearestDownbeat(a.DownbeatsMS, target)

	// In point: the first downbeat of the earliest non-intro phrase of B.
	inPoint := 0.0
	if prefs.TrackBInPointMS > 0 {
		inPoint = nearestDownbeat(b.DownbeatsMS, prefs.TrackBInPointMS)
	} else if start, ok := earliestNonIntroPhrase(b); ok {
		inPoint = firstDownbeatAfter(b.DownbeatsMS, start)
	} else if len(b.DownbeatsMS) > 0 {
		inPoint = b.DownbeatsMS[0]
	}

	// Eight bars at track A's beat interval, shortened to whatever room is
	// left on either side of the transition.
	transition := a.BeatIntervalMS() * beatsPerBar * fallbackBars
	if room := a.DurationMS - outPoint; transition > room {
		transition = room
	}
	if room := b.DurationMS - inPoint; transition > room {
		transition = room
	}
	if transition < 0 {
		transition = 0
	}

	stretchA, stretchB := 1.0, 1.0
	if compat.NeedsTempoAdjust && a.BPM > 0 && b.BPM > 0 {
		stretchA = round4(compat.RecommendedBPM / a.BPM)
		stretchB = round4(compat.RecommendedBPM / b.BPM)
	}

	pitchShiftB := 0
	if prefs.MixInKey && compat.KeyCompatible == analysis.KeyIncompatible {
		wa, errA := analysis.ParseWheel(a.Wheel)
		wb, errB := analysis.ParseWheel(b.Wheel)
		if errA == nil && errB == nil {
			pitchShiftB = analysis.PitchShiftToMatch(wb, wa)
		}
	}

	half := transition / 2
	return decision.MixDecision{
		Strategy:   decision.StrategyBassSwap,
		Confidence: fallbackConfidence,
		Reasoning:  FallbackReasoning,
		TrackA: decision.TrackCue{
			OutPointMS:         round1In(outPoint, a.DurationMS),
			OutPhrase:          a.PhraseAt(outPoint),
			FadeStartMS:        round1In(outPoint, a.DurationMS),
			TempoStretchFactor: stretchA,
		},
		TrackB: decision.TrackCue{
			InPointMS:           round1In(inPoint, b.DurationMS),
			InPhrase:            b.PhraseAt(inPoint),
			FadeEndMS:           round1In(inPoint+transition, b.DurationMS),
			TempoStretchFactor:  stretchB,
			PitchShiftSemitones: pitchShiftB,
		},
		Transition: decision.Transition{
			TotalDurationMS: round1(transition),
			CrossfadeCurve:  decision.CurveLinear,
			EQAutomation: []decision.EQEntry{
				{
					Track:   decision.TrackA,
					Band:    decision.BandBass,
					Action:  decision.ActionCut,
					StartMS: round1In(outPoint, a.DurationMS),
					EndMS:   round1In(outPoint+half, a.DurationMS),
					FromDB:  0,
					ToDB:    -24,
					Curve:   decision.CurveLinear,
				},
				{
					Track:   decision.TrackB,
					Band:    decision.BandBass,
					Action:  decision.ActionBoost,
					StartMS: round1In(inPoint+half, b.DurationMS),
					EndMS:   round1In(inPoint+transition, b.DurationMS),
					FromDB:  -24,
					ToDB:    0,
					Curve:   decision.CurveLinear,
				},
			},
		},
		SFX: decision.SFX{Enabled: false},
	}
}

func nearestDownbeat(downbeats []float64, target float64) float64 {
	if len(downbeats) == 0 {
		return target
	}
	best := downbeats[0]
	for _, d := range downbeats[1:] {
		if math.Abs(d-target) < math.Abs(best-target) {
			best = d
		}
	}
	return best
}

func earliestNonIntroPhrase(r analysis.Record) (float64, bool) {
	for _, p := range r.Phrases {
		if p.Type != "intro" {
			return p.StartMS, true
		}
	}
	return 0, false
}

func firstDownbeatAfter(downbeats []float64, ms float64) float64 {
	for _, d := range downbeats {
		if d >= ms {
			return d
		}
	}
	return ms
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

// round1In rounds to one decimal without crossing the track boundary.
func round1In(v, limit float64) float64 { return math.Min(round1(v), limit) }

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }

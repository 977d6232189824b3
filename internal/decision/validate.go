package decision

import (
	"fmt"

	"segue/internal/services"
)

func validationErr(message string) error {
	return services.Wrap(services.ErrValidation, "decision", "validate", message, nil)
}

func validStrategy(s string) bool {
	for _, known := range Strategies {
		if s == known {
			return true
		}
	}
	return false
}

func validCurve(c string) bool {
	switch c {
	case CurveLinear, CurveEqualPower, CurveExponential:
		return true
	}
	return false
}

func withinTrack(ms, duration float64) bool { return ms >= 0 && ms <= duration }

// Validate checks a mix decision against the durations of the two source
// tracks. Both external and fallback decisions pass through the same checks.
func (d MixDecision) Validate(durationAMS, durationBMS float64) error {
	if !validStrategy(d.Strategy) {
		return validationErr(fmt.Sprintf("unknown strategy %q", d.Strategy))
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return validationErr(fmt.Sprintf("confidence %.3f out of range", d.Confidence))
	}

	if d.Incompatible() {
		if d.Confidence != 0 {
			return validationErr("incompatible decision must carry confidence 0")
		}
		if d.Suggestion == "" {
			return validationErr("incompatible decision must carry a suggestion")
		}
		return nil
	}

	if d.TrackA.OutPointMS <= 0 {
		return validationErr("track A out point must be positive")
	}
	if !withinTrack(d.TrackA.OutPointMS, durationAMS) {
		return validationErr(fmt.Sprintf("track A out point %.1f ms past duration %.1f ms", d.TrackA.OutPointMS, durationAMS))
	}
	if !withinTrack(d.TrackB.InPointMS, durationBMS) {
		return validationErr(fmt.Sprintf("track B in point %.1f ms past duration %.1f ms", d.TrackB.InPointMS, durationBMS))
	}
	if d.TrackA.FadeStartMS != 0 && !withinTrack(d.TrackA.FadeStartMS, durationAMS) {
		return validationErr("track A fade start outside track")
	}
	if d.TrackB.FadeEndMS != 0 && !withinTrack(d.TrackB.FadeEndMS, durationBMS) {
		return validationErr("track B fade end outside track")
	}
	if d.TrackA.TempoStretchFactor <= 0 || d.TrackB.TempoStretchFactor <= 0 {
		return validationErr("tempo stretch factors must be positive")
	}

	if d.Transition.TotalDurationMS <= 0 {
		return validationErr("transition duration must be positive")
	}
	if !validCurve(d.Transition.CrossfadeCurve) {
		return validationErr(fmt.Sprintf("unknown crossfade curve %q", d.Transition.CrossfadeCurve))
	}
	for i, e := range d.Transition.EQAutomation {
		if e.Track != TrackA && e.Track != TrackB {
			return validationErr(fmt.Sprintf("eq entry %d references unknown track %q", i, e.Track))
		}
		switch e.Band {
		case BandBass, BandMids, BandHighs:
		default:
			return validationErr(fmt.Sprintf("eq entry %d references unknown band %q", i, e.Band))
		}
		if e.StartMS < 0 || e.EndMS < e.StartMS {
			return validationErr(fmt.Sprintf("eq entry %d window is not time-ordered", i))
		}
		duration := durationAMS
		if e.Track == TrackB {
			duration = durationBMS
		}
		if e.EndMS > duration {
			return validationErr(fmt.Sprintf("eq entry %d ends past its track", i))
		}
		if e.Curve != "" && e.Curve != CurveLinear && e.Curve != CurveExponential {
			return validationErr(fmt.Sprintf("eq entry %d has unknown curve %q", i, e.Curve))
		}
	}

	if d.SFX.Enabled {
		if d.SFX.DurationMS <= 0 {
			return validationErr("sfx duration must be positive when enabled")
		}
		if d.SFX.FallbackFile == "" {
			return validationErr("sfx requires a fallback file when enabled")
		}
	}
	return nil
}

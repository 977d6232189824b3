package analysis

import "math"

// Tempo adjustment kicks in above this BPM gap.
const tempoAdjustThresholdBPM = 2.0

// Compare derives the compatibility between two analyzed tracks. It is a
// pure function: no side effects, and an unparseable or low-confidence key
// produces the unknown defaults rather than an error.
func Compare(a, b Record) Compatibility {
	c := Compatibility{
		BPMDiff:  round1(math.Abs(a.BPM - b.BPM)),
		BPMRatio: 1.0,
	}
	if lo := math.Min(a.BPM, b.BPM); lo > 0 {
		c.BPMRatio = round3(math.Max(a.BPM, b.BPM) / lo)
	}
	c.NeedsTempoAdjust = c.BPMDiff > tempoAdjustThresholdBPM
	c.RecommendedBPM = round1((a.BPM + b.BPM) / 2)

	wa, errA := ParseWheel(a.Wheel)
	wb, errB := ParseWheel(b.Wheel)
	if errA != nil || errB != nil {
		c.WheelDistance = incompatibleDistance
		c.WheelRelation = RelationUnknown
		c.KeyCompatible = KeyUnknown
		c.HarmonicMixingScore = HarmonicScore(c.WheelDistance)
		return c
	}

	c.WheelDistance = WheelDistance(wa, wb)
	c.WheelRelation = RelationForDistance(c.WheelDistance)
	c.HarmonicMixingScore = HarmonicScore(c.WheelDistance)

	switch {
	case !a.KeyUsable() || !b.KeyUsable():
		c.KeyCompatible = KeyUnknown
	case c.WheelDistance <= 1:
		c.KeyCompatible = KeyCompatible
	default:
		c.KeyCompatible = KeyIncompatible
	}
	return c
}

// Key compatibility values carried on the bundle.
const (
	KeyCompatible   = "true"
	KeyIncompatible = "false"
	KeyUnknown      = "unknown"
)

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

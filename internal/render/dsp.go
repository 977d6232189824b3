package render

import (
	"math"

	"segue/internal/decision"
)

// crossfadeGains returns the gain pair for position t in [0,1] across the
// transition. Linear trades amplitude directly, equal-power holds perceived
// loudness constant, exponential is a monotone convex ramp on both sides.
func crossfadeGains(curve string, t float64) (gainA, gainB float64) {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	switch curve {
	case decision.CurveEqualPower:
		return math.Cos(t * math.Pi / 2), math.Sin(t * math.Pi / 2)
	case decision.CurveExponential:
		return (1 - t) * (1 - t), t * t
	default:
		return 1 - t, t
	}
}

// Crossfade overlays the tail of a onto the head of b across the given
// number of frames: the result is a's frames, then the blended window, then
// the rest of b.
func Crossfade(a, b *Buffer, overlapFrames int, curve string) *Buffer {
	if overlapFrames > a.NumFrames() {
		overlapFrames = a.NumFrames()
	}
	if overlapFrames > b.NumFrames() {
		overlapFrames = b.NumFrames()
	}
	if overlapFrames < 0 {
		overlapFrames = 0
	}
	outFrames := a.NumFrames() + b.NumFrames() - overlapFrames
	out := make([]float32, outFrames*numChannels)

	headA := a.NumFrames() - overlapFrames
	copy(out, a.Samples[:headA*numChannels])

	for i := 0; i < overlapFrames; i++ {
		t := 0.0
		if overlapFrames > 1 {
			t = float64(i) / float64(overlapFrames-1)
		}
		gainA, gainB := crossfadeGains(curve, t)
		for ch := 0; ch < numChannels; ch++ {
			va := float64(a.Samples[(headA+i)*numChannels+ch]) * gainA
			vb := float64(b.Samples[i*numChannels+ch]) * gainB
			out[(headA+i)*numChannels+ch] = float32(va + vb)
		}
	}

	copy(out[(headA+overlapFrames)*numChannels:], b.Samples[overlapFrames*numChannels:])
	return &Buffer{Samples: out, SampleRate: a.SampleRate}
}

// silenceFloorDB is reported as the peak level of buffers with no signal.
const silenceFloorDB = -120.0

// Normalize scales the buffer so its peak sits at the given ceiling in
// dBFS and returns the resulting peak level. Silent buffers are left
// untouched and report the silence floor.
func Normalize(buf *Buffer, ceilingDB float64) float64 {
	peak := buf.Peak()
	if peak < 1e-9 {
		return silenceFloorDB
	}
	buf.Gain(dbToGain(ceilingDB) / peak)
	return ceilingDB
}

// silenceWindowMS is the span that must carry signal around the transition
// boundary for the verification pass.
const silenceWindowMS = 250.0

// discontinuityThreshold is the largest acceptable sample-to-sample jump.
const discontinuityThreshold = 0.5

// VerifyBoundary checks the blended region for a full-silence gap and for a
// sample-level discontinuity. boundaryFrame is where the transition window
// starts in the mixed buffer.
func VerifyBoundary(buf *Buffer, boundaryFrame, overlapFrames int) (silent bool, discontinuity bool) {
	windowFrames := int(silenceWindowMS / 1000 * float64(buf.SampleRate))
	start := boundaryFrame
	end := boundaryFrame + overlapFrames
	if end > buf.NumFrames() {
		end = buf.NumFrames()
	}
	if start < 0 {
		start = 0
	}

	// Silence: any stretch of windowFrames consecutive all-zero frames
	// inside the transition region.
	run := 0
	for i := start; i < end; i++ {
		frameSilent := true
		for ch := 0; ch < numChannels; ch++ {
			if math.Abs(float64(buf.Samples[i*numChannels+ch])) > 1e-5 {
				frameSilent = false
				break
			}
		}
		if frameSilent {
			run++
			if run >= windowFrames {
				silent = true
				break
			}
		} else {
			run = 0
		}
	}

	// Discontinuity: a hard amplitude jump between adjacent frames near
	// the boundary edges.
	checkJump := func(frame int) bool {
		if frame <= 0 || frame >= buf.NumFrames() {
			return false
		}
		for ch := 0; ch < numChannels; ch++ {
			prev := float64(buf.Samples[(frame-1)*numChannels+ch])
			cur := float64(buf.Samples[frame*numChannels+ch])
			if math.Abs(cur-prev) > discontinuityThreshold {
				return true
			}
		}
		return false
	}
	if checkJump(start) || checkJump(end) {
		discontinuity = true
	}
	return silent, discontinuity
}

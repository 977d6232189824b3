package render

import (
	"math"

	"segue/internal/decision"
)

// Band center/corner frequencies.
const (
	bassShelfHz  = 200.0
	midsPeakHz   = 1000.0
	highsShelfHz = 8000.0
)

// Coefficient updates happen once per block; within a block the gain is
// treated as constant. 64 frames at 44.1 kHz is ~1.5 ms, far below
// audibility for gain sweeps.
const eqBlockFrames = 64

// biquad is a direct-form-I filter with per-channel state.
type biquad struct {
	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     [numChannels]float64
}

func (f *biquad) process(ch int, in float64) float64 {
	out := f.b0*in + f.b1*f.x1[ch] + f.b2*f.x2[ch] - f.a1*f.y1[ch] - f.a2*f.y2[ch]
	f.x2[ch] = f.x1[ch]
	f.x1[ch] = in
	f.y2[ch] = f.y1[ch]
	f.y1[ch] = out
	return out
}

// setLowShelf configures an RBJ low-shelf at freq with the given gain.
func (f *biquad) setLowShelf(sampleRate, freq, gainDB float64) {
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / sampleRate
	cosW0 := math.Cos(w0)
	sinW0 := math.Sin(w0)
	alpha := sinW0 / 2 * math.Sqrt2
	twoSqrtAAlpha := 2 * math.Sqrt(a) * alpha

	a0 := (a + 1) + (a-1)*cosW0 + twoSqrtAAlpha
	f.b0 = a * ((a + 1) - (a-1)*cosW0 + twoSqrtAAlpha) / a0
	f.b1 = 2 * a * ((a - 1) - (a+1)*cosW0) / a0
	f.b2 = a * ((a + 1) - (a-1)*cosW0 - twoSqrtAAlpha) / a0
	f.a1 = -2 * ((a - 1) + (a+1)*cosW0) / a0
	f.a2 = ((a + 1) + (a-1)*cosW0 - twoSqrtAAlpha) / a0
}

// setHighShelf configures an RBJ high-shelf at freq with the given gain.
func (f *biquad) setHighShelf(sampleRate, freq, gainDB float64) {
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / sampleRate
	cosW0 := math.Cos(w0)
	sinW0 := math.Sin(w0)
	alpha := sinW0 / 2 * math.Sqrt2
	twoSqrtAAlpha := 2 * math.Sqrt(a) * alpha

	a0 := (a + 1) - (a-1)*cosW0 + twoSqrtAAlpha
	f.b0 = a * ((a + 1) + (a-1)*cosW0 + twoSqrtAAlpha) / a0
	f.b1 = -2 * a * ((a - 1) + (a+1)*cosW0) / a0
	f.b2 = a * ((a + 1) + (a-1)*cosW0 - twoSqrtAAlpha) / a0
	f.a1 = 2 * ((a - 1) - (a+1)*cosW0) / a0
	f.a2 = ((a + 1) - (a-1)*cosW0 - twoSqrtAAlpha) / a0
}

// setPeaking configures an RBJ peaking EQ at freq with the given gain and a
// one-octave bandwidth.
func (f *biquad) setPeaking(sampleRate, freq, gainDB float64) {
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / sampleRate
	cosW0 := math.Cos(w0)
	sinW0 := math.Sin(w0)
	const q = 1.0
	alpha := sinW0 / (2 * q)

	a0 := 1 + alpha/a
	f.b0 = (1 + alpha*a) / a0
	f.b1 = -2 * cosW0 / a0
	f.b2 = (1 - alpha*a) / a0
	f.a1 = -2 * cosW0 / a0
	f.a2 = (1 - alpha/a) / a0
}

func (f *biquad) configure(band string, sampleRate, gainDB float64) {
	switch band {
	case decision.BandBass:
		f.setLowShelf(sampleRate, bassShelfHz, gainDB)
	case decision.BandHighs:
		f.setHighShelf(sampleRate, highsShelfHz, gainDB)
	default:
		f.setPeaking(sampleRate, midsPeakHz, gainDB)
	}
}

// sweepGain interpolates between from and to at position t in [0,1].
func sweepGain(curve string, from, to, t float64) float64 {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	if curve == decision.CurveExponential {
		t = t * t
	}
	return from + (to-from)*t
}

// ApplyEQEntry runs one automation entry over the buffer in place. The
// window is expressed in frames of this buffer's timeline; the gain sweeps
// from the entry's start value to its end value across the window and the
// end gain holds for the rest of the buffer.
func ApplyEQEntry(buf *Buffer, entry decision.EQEntry, startFrame, endFrame int) {
	if startFrame < 0 {
		startFrame = 0
	}
	if endFrame > buf.NumFrames() {
		endFrame = buf.NumFrames()
	}
	if endFrame <= startFrame {
		return
	}
	sampleRate := float64(buf.SampleRate)
	span := endFrame - startFrame

	var filter biquad
	filter.configure(entry.Band, sampleRate, entry.FromDB)

	for block := startFrame; block < buf.NumFrames(); block += eqBlockFrames {
		t := 1.0
		if block < endFrame {
			t = float64(block-startFrame) / float64(span)
		}
		gain := sweepGain(entry.Curve, entry.FromDB, entry.ToDB, t)
		filter.configure(entry.Band, sampleRate, gain)

		blockEnd := block + eqBlockFrames
		if blockEnd > buf.NumFrames() {
			blockEnd = buf.NumFrames()
		}
		for i := block; i < blockEnd; i++ {
			for ch := 0; ch < numChannels; ch++ {
				idx := i*numChannels + ch
				buf.Samples[idx] = float32(filter.process(ch, float64(buf.Samples[idx])))
			}
		}
	}
}

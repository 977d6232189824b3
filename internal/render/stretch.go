package render

import "math"

// TimeStretch changes tempo without changing pitch using windowed
// overlap-add. A factor above 1 speeds the track up (output is shorter);
// below 1 slows it down. Factor 1 returns a copy.
func TimeStretch(buf *Buffer, factor float64) *Buffer {
	if factor <= 0 || factor == 1 {
		return buf.Clone()
	}
	const frameSize = 2048
	const synthesisHop = frameSize / 4
	analysisHop := float64(synthesisHop) * factor

	inFrames := buf.NumFrames()
	if inFrames < frameSize {
		return buf.Clone()
	}
	outFrames := int(float64(inFrames) / factor)
	window := hannWindow(frameSize)

	out := make([]float64, (outFrames+frameSize)*numChannels)
	weight := make([]float64, outFrames+frameSize)

	for block := 0; ; block++ {
		inStart := int(float64(block) * analysisHop)
		outStart := block * synthesisHop
		if inStart+frameSize > inFrames || outStart+frameSize > outFrames+frameSize-1 {
			break
		}
		for i := 0; i < frameSize; i++ {
			w := window[i]
			weight[outStart+i] += w
			for ch := 0; ch < numChannels; ch++ {
				out[(outStart+i)*numChannels+ch] += float64(buf.Samples[(inStart+i)*numChannels+ch]) * w
			}
		}
	}

	result := make([]float32, outFrames*numChannels)
	for i := 0; i < outFrames; i++ {
		w := weight[i]
		if w < 1e-6 {
			continue
		}
		for ch := 0; ch < numChannels; ch++ {
			result[i*numChannels+ch] = float32(out[i*numChannels+ch] / w)
		}
	}
	return &Buffer{Samples: result, SampleRate: buf.SampleRate}
}

// Resample converts the buffer to a new playback rate by linear
// interpolation, changing both speed and pitch. ratio above 1 shortens the
// output.
func Resample(buf *Buffer, ratio float64) *Buffer {
	if ratio <= 0 || ratio == 1 {
		return buf.Clone()
	}
	inFrames := buf.NumFrames()
	outFrames := int(float64(inFrames) / ratio)
	if outFrames < 2 {
		return buf.Clone()
	}
	out := make([]float32, outFrames*numChannels)
	for i := 0; i < outFrames; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		next := idx + 1
		if next >= inFrames {
			next = inFrames - 1
		}
		for ch := 0; ch < numChannels; ch++ {
			a := float64(buf.Samples[idx*numChannels+ch])
			b := float64(buf.Samples[next*numChannels+ch])
			out[i*numChannels+ch] = float32(a + (b-a)*frac)
		}
	}
	return &Buffer{Samples: out, SampleRate: buf.SampleRate}
}

// PitchShift moves the pitch by the given semitone count without changing
// duration: resample to shift the pitch, then stretch the tempo back.
func PitchShift(buf *Buffer, semitones int) *Buffer {
	if semitones == 0 {
		return buf.Clone()
	}
	rate := math.Pow(2, float64(semitones)/12)
	shifted := Resample(buf, rate)
	// Resampling divided the duration by rate; stretch it back.
	return TimeStretch(shifted, 1/rate)
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

// Package render executes a finalized mix decision against the two source
// tracks and produces the delivery artifact. The whole pipeline works on
// interleaved stereo float32 sample buffers; ffmpeg is only involved at the
// edges (decoding non-WAV inputs, encoding the final MP3).
package render

import "math"

const numChannels = 2

// Buffer holds interleaved stereo samples at a fixed rate.
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// NumFrames returns the number of sample frames (one per channel pair).
func (b *Buffer) NumFrames() int { return len(b.Samples) / numChannels }

// DurationMS returns the buffer length in milliseconds.
func (b *Buffer) DurationMS() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(b.NumFrames()) / float64(b.SampleRate) * 1000
}

// FrameForMS converts a millisecond offset into a frame index, clamped to
// the buffer.
func (b *Buffer) FrameForMS(ms float64) int {
	frame := int(math.Round(ms / 1000 * float64(b.SampleRate)))
	if frame < 0 {
		return 0
	}
	if frame > b.NumFrames() {
		return b.NumFrames()
	}
	return frame
}

// Segment returns a copy of frames [start, end). End past the buffer is
// clamped.
func (b *Buffer) Segment(start, end int) *Buffer {
	if start < 0 {
		start = 0
	}
	if end > b.NumFrames() {
		end = b.NumFrames()
	}
	if end < start {
		end = start
	}
	out := make([]float32, (end-start)*numChannels)
	copy(out, b.Samples[start*numChannels:end*numChannels])
	return &Buffer{Samples: out, SampleRate: b.SampleRate}
}

// Clone returns a deep copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	out := make([]float32, len(b.Samples))
	copy(out, b.Samples)
	return &Buffer{Samples: out, SampleRate: b.SampleRate}
}

// Peak returns the largest absolute sample value.
func (b *Buffer) Peak() float64 {
	peak := 0.0
	for _, s := range b.Samples {
		v := math.Abs(float64(s))
		if v > peak {
			peak = v
		}
	}
	return peak
}

// Gain scales every sample in place.
func (b *Buffer) Gain(factor float64) {
	for i := range b.Samples {
		b.Samples[i] = float32(float64(b.Samples[i]) * factor)
	}
}

// MixAt adds other into b starting at the given frame offset, scaled by
// gain, growing b as needed.
func (b *Buffer) MixAt(other *Buffer, frameOffset int, gain float64) {
	if frameOffset < 0 {
		frameOffset = 0
	}
	required := (frameOffset + other.NumFrames()) * numChannels
	if len(b.Samples) < required {
		grown := make([]float32, required)
		copy(grown, b.Samples)
		b.Samples = grown
	}
	base := frameOffset * numChannels
	for i, s := range other.Samples {
		b.Samples[base+i] += float32(float64(s) * gain)
	}
}

// dbToGain converts decibels to a linear gain factor.
func dbToGain(db float64) float64 {
	return math.Pow(10, db/20)
}

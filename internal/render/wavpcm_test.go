package render

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"segue/internal/services"
)

func TestWAVRoundTrip(t *testing.T) {
	src := sineBuffer(44100, 500, 440, 0.6)
	path := filepath.Join(t.TempDir(), "roundtrip.wav")
	if err := WriteWAV(path, src); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}

	got, err := ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV failed: %v", err)
	}
	if got.SampleRate != src.SampleRate {
		t.Fatalf("sample rate = %d, want %d", got.SampleRate, src.SampleRate)
	}
	if got.NumFrames() != src.NumFrames() {
		t.Fatalf("frames = %d, want %d", got.NumFrames(), src.NumFrames())
	}
	// 16-bit quantization bounds the per-sample error.
	for i := range src.Samples {
		if diff := math.Abs(float64(got.Samples[i] - src.Samples[i])); diff > 1.0/32767 {
			t.Fatalf("sample %d off by %v", i, diff)
		}
	}
}

func TestWriteWAVClampsOverRange(t *testing.T) {
	src := &Buffer{Samples: []float32{1.5, -1.5, 0.5, -0.5}, SampleRate: 8000}
	path := filepath.Join(t.TempDir(), "clamped.wav")
	if err := WriteWAV(path, src); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}
	got, err := ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV failed: %v", err)
	}
	if got.Samples[0] < 0.99 || got.Samples[1] > -0.99 {
		t.Fatalf("over-range samples not clamped: %v", got.Samples[:2])
	}
}

func TestReadWAVMonoDuplicated(t *testing.T) {
	// Minimal mono PCM16 file: four frames of a rising ramp.
	path := filepath.Join(t.TempDir(), "mono.wav")
	payload := []byte{
		'R', 'I', 'F', 'F', 44, 0, 0, 0, 'W', 'A', 'V', 'E',
		'f', 'm', 't', ' ', 16, 0, 0, 0,
		1, 0, // PCM
		1, 0, // mono
		0x40, 0x1f, 0, 0, // 8000 Hz
		0x80, 0x3e, 0, 0, // byte rate
		2, 0, 16, 0,
		'd', 'a', 't', 'a', 8, 0, 0, 0,
		0, 0, 0, 0x20, 0, 0x40, 0, 0x60,
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	got, err := ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV failed: %v", err)
	}
	if got.NumFrames() != 4 {
		t.Fatalf("frames = %d, want 4", got.NumFrames())
	}
	for i := 0; i < got.NumFrames(); i++ {
		if got.Samples[i*numChannels] != got.Samples[i*numChannels+1] {
			t.Fatalf("frame %d channels differ: %v vs %v",
				i, got.Samples[i*numChannels], got.Samples[i*numChannels+1])
		}
	}
}

func TestReadWAVRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.wav")
	if err := os.WriteFile(path, []byte("definitely not riff data"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	_, err := ReadWAV(path)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

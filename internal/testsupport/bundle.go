package testsupport

import (
	"encoding/json"
	"testing"

	"segue/internal/analysis"
)

// BeatsEvery builds a strictly increasing beat grid covering the duration.
func BeatsEvery(durationMS, intervalMS float64) []float64 {
	var beats []float64
	for ms := 0.0; ms < durationMS; ms += intervalMS {
		beats = append(beats, ms)
	}
	return beats
}

// NewRecord produces a structurally valid analysis record with a regular
// beat grid and one verse phrase.
func NewRecord(filename string, durationMS, bpm float64, wheel string) analysis.Record {
	beatInterval := 60000.0 / bpm
	beats := BeatsEvery(durationMS, beatInterval)
	// Every fourth beat, taken from the same slice so the float values
	// match the grid exactly.
	var downbeats []float64
	for i := 0; i < len(beats); i += 4 {
		downbeats = append(downbeats, beats[i])
	}
	return analysis.Record{
		Filename:      filename,
		DurationMS:    durationMS,
		BPM:           bpm,
		BPMConfidence: 0.9,
		Key:           "A minor",
		KeyConfidence: 0.85,
		Wheel:         wheel,
		BeatsMS:       beats,
		DownbeatsMS:   downbeats,
		Phrases: []analysis.Phrase{
			{StartMS: 0, EndMS: durationMS, Bars: int(durationMS / (beatInterval * 4)), Type: "verse", AvgEnergy: 0.5},
		},
	}
}

// NewBundle pairs two valid records into a submission bundle.
func NewBundle(nameA, nameB string) analysis.Bundle {
	return analysis.Bundle{
		TrackA: NewRecord(nameA, 240000, 124, "8A"),
		TrackB: NewRecord(nameB, 230000, 128, "9A"),
	}
}

// BundleJSON marshals a bundle for store persistence.
func BundleJSON(t testing.TB, bundle analysis.Bundle) string {
	t.Helper()
	encoded, err := json.Marshal(bundle)
	if err != nil {
		t.Fatalf("marshal bundle: %v", err)
	}
	return string(encoded)
}

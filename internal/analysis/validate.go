package analysis

import (
	"fmt"

	"segue/internal/services"
)

// Confidence floors below which a record must carry an advisory warning.
const (
	TempoConfidenceFloor = 0.6
	KeyConfidenceFloor   = 0.5
)

func validationErr(operation, message string) error {
	return services.Wrap(services.ErrValidation, "analysis", operation, message, nil)
}

// ValidateRecord checks the structural invariants of a per-track analysis
// record on receipt. It does not mutate the record.
func ValidateRecord(r Record) error {
	if r.Filename == "" {
		return validationErr("validate_record", "record is missing a filename")
	}
	if r.DurationMS <= 0 {
		return validationErr("validate_record", fmt.Sprintf("%s: duration must be positive, got %.1f ms", r.Filename, r.DurationMS))
	}
	if r.BPM <= 0 {
		return validationErr("validate_record", fmt.Sprintf("%s: bpm must be positive, got %.2f", r.Filename, r.BPM))
	}
	if r.BPMConfidence < 0 || r.BPMConfidence > 1 {
		return validationErr("validate_record", fmt.Sprintf("%s: bpm confidence out of range: %.3f", r.Filename, r.BPMConfidence))
	}
	if r.KeyConfidence < 0 || r.KeyConfidence > 1 {
		return validationErr("validate_record", fmt.Sprintf("%s: key confidence out of range: %.3f", r.Filename, r.KeyConfidence))
	}
	for i := 1; i < len(r.BeatsMS); i++ {
		if r.BeatsMS[i] <= r.BeatsMS[i-1] {
			return validationErr("validate_record", fmt.Sprintf("%s: beat grid not strictly increasing at index %d", r.Filename, i))
		}
	}
	beatSet := make(map[float64]struct{}, len(r.BeatsMS))
	for _, b := range r.BeatsMS {
		beatSet[b] = struct{}{}
	}
	var prevDown float64 = -1
	for i, d := range r.DownbeatsMS {
		if d <= prevDown {
			return validationErr("validate_record", fmt.Sprintf("%s: downbeats not strictly increasing at index %d", r.Filename, i))
		}
		prevDown = d
		if _, ok := beatSet[d]; !ok {
			return validationErr("validate_record", fmt.Sprintf("%s: downbeat %.1f ms is not on the beat grid", r.Filename, d))
		}
	}
	var prevEnd float64
	for i, p := range r.Phrases {
		if p.StartMS < 0 || p.EndMS <= p.StartMS {
			return validationErr("validate_record", fmt.Sprintf("%s: phrase %d has an empty or negative window", r.Filename, i))
		}
		if p.StartMS < prevEnd {
			return validationErr("validate_record", fmt.Sprintf("%s: phrase %d overlaps its predecessor", r.Filename, i))
		}
		if p.EndMS > r.DurationMS {
			return validationErr("validate_record", fmt.Sprintf("%s: phrase %d ends past track duration", r.Filename, i))
		}
		if p.AvgEnergy < 0 || p.AvgEnergy > 1 {
			return validationErr("validate_record", fmt.Sprintf("%s: phrase %d energy out of range: %.3f", r.Filename, i, p.AvgEnergy))
		}
		prevEnd = p.EndMS
	}
	var prevMS float64 = -1
	for i, p := range r.EnergyCurve {
		if p.MS <= prevMS {
			return validationErr("validate_record", fmt.Sprintf("%s: energy curve not increasing at index %d", r.Filename, i))
		}
		prevMS = p.MS
		if p.RMS < 0 || p.RMS > 1 {
			return validationErr("validate_record", fmt.Sprintf("%s: energy point %d out of range: %.3f", r.Filename, i, p.RMS))
		}
	}
	return nil
}

// ApplyConfidencePolicy attaches advisory warnings for low-confidence tempo
// or key estimates. A low-confidence key leaves the record usable but forces
// key compatibility to "unknown" downstream.
func ApplyConfidencePolicy(r *Record) {
	if r.BPMConfidence < TempoConfidenceFloor && r.BPMWarning == "" {
		r.BPMWarning = fmt.Sprintf("tempo confidence %.2f below %.2f, beat grid may be unreliable", r.BPMConfidence, TempoConfidenceFloor)
	}
	if r.KeyConfidence < KeyConfidenceFloor && r.KeyWarning == "" {
		r.KeyWarning = fmt.Sprintf("key confidence %.2f below %.2f, treating harmonic compatibility as unknown", r.KeyConfidence, KeyConfidenceFloor)
	}
}

// KeyUsable reports whether the record's key estimate is trustworthy enough
// to compute harmonic compatibility from.
func (r Record) KeyUsable() bool {
	return r.KeyConfidence >= KeyConfidenceFloor
}

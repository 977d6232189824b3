package analysis

// Phrase is a structurally coherent section spanning a whole number of bars.
type Phrase struct {
	StartMS   float64 `json:"start_ms"`
	EndMS     float64 `json:"end_ms"`
	Bars      int     `json:"bars"`
	Type      string  `json:"type"` // intro, verse, chorus, bridge, outro, breakdown, drop
	AvgEnergy float64 `json:"avg_energy"`
}

// EnergyPoint is one sample of the normalized RMS energy curve.
type EnergyPoint struct {
	MS  float64 `json:"ms"`
	RMS float64 `json:"rms"`
}

// Record is the per-track analysis contract received from the upstream
// producer.
type Record struct {
	Filename      string        `json:"filename"`
	DurationMS    float64       `json:"duration_ms"`
	BPM           float64       `json:"bpm"`
	BPMConfidence float64       `json:"bpm_confidence"`
	Key           string        `json:"key"`
	KeyConfidence float64       `json:"key_confidence"`
	Wheel         string        `json:"wheel"` // e.g. "8A"
	BeatsMS       []float64     `json:"beats_ms"`
	DownbeatsMS   []float64     `json:"downbeats_ms"`
	Phrases       []Phrase      `json:"phrases"`
	EnergyCurve   []EnergyPoint `json:"energy_curve"`
	BPMWarning    string        `json:"bpm_warning,omitempty"`
	KeyWarning    string        `json:"key_warning,omitempty"`
}

// Compatibility is derived, read-only, and recomputed on demand from a pair
// of records; it is never mutated in place.
type Compatibility struct {
	BPMDiff             float64 `json:"bpm_diff"`
	BPMRatio            float64 `json:"bpm_ratio"`
	KeyCompatible       string  `json:"key_compatible"` // "true", "false", or "unknown"
	WheelDistance       int     `json:"wheel_distance"`
	WheelRelation       string  `json:"wheel_relation"` // same, adjacent, relative, incompatible, unknown
	NeedsTempoAdjust    bool    `json:"needs_tempo_adjustment"`
	RecommendedBPM      float64 `json:"recommended_target_bpm"`
	HarmonicMixingScore float64 `json:"harmonic_mixing_score"`
}

// Bundle pairs two analysis records with their derived compatibility. It is
// the payload submitted to the mix strategy dispatcher.
type Bundle struct {
	TrackA        Record        `json:"track_a"`
	TrackB        Record        `json:"track_b"`
	Compatibility Compatibility `json:"compatibility"`
}

// AvgEnergyAround returns the mean RMS in a window centered on ms, or 0.5
// when the curve is empty. Used for prompt context, not for decisions.
func (r Record) AvgEnergyAround(ms, windowMS float64) float64 {
	if len(r.EnergyCurve) == 0 {
		return 0.5
	}
	lo := ms - windowMS/2
	hi := ms + windowMS/2
	sum := 0.0
	count := 0
	for _, p := range r.EnergyCurve {
		if p.MS < lo || p.MS > hi {
			continue
		}
		sum += p.RMS
		count++
	}
	if count == 0 {
		return 0.5
	}
	return sum / float64(count)
}

// PhraseAt returns the type of the phrase covering ms, or "unknown".
func (r Record) PhraseAt(ms float64) string {
	for _, p := range r.Phrases {
		if p.StartMS <= ms && ms <= p.EndMS {
			return p.Type
		}
	}
	return "unknown"
}

// BeatIntervalMS returns the median spacing between consecutive beats, or a
// 120 BPM interval when the grid is too sparse.
func (r Record) BeatIntervalMS() float64 {
	if len(r.BeatsMS) >= 2 {
		// The grid is strictly increasing, so the overall span divided by
		// the interval count is a stable estimate.
		span := r.BeatsMS[len(r.BeatsMS)-1] - r.BeatsMS[0]
		return span / float64(len(r.BeatsMS)-1)
	}
	if r.BPM > 0 {
		return 60000 / r.BPM
	}
	return 500
}

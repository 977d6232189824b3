// Package decision defines the mix decision contract shared by the external
// reasoning path and the deterministic fallback planner, plus its structural
// validation. A decision is immutable once validated; it is the sole input
// to the render engine.
package decision

// Mix strategies.
const (
	StrategyPhraseBlend     = "phrase_blend"
	StrategyDropSwap        = "drop_swap"
	StrategyEchoOut         = "echo_out"
	StrategyBassSwap        = "bass_swap"
	StrategyBreakdownBridge = "breakdown_bridge"
	StrategyIncompatible    = "incompatible"
)

// Strategies lists every valid strategy variant.
var Strategies = []string{
	StrategyPhraseBlend,
	StrategyDropSwap,
	StrategyEchoOut,
	StrategyBassSwap,
	StrategyBreakdownBridge,
	StrategyIncompatible,
}

// Crossfade and automation curves.
const (
	CurveLinear      = "linear"
	CurveEqualPower  = "equal_power"
	CurveExponential = "exponential"
)

// Track identifiers used in EQ automation entries.
const (
	TrackA = "a"
	TrackB = "b"
)

// EQ bands.
const (
	BandBass  = "bass"
	BandMids  = "mids"
	BandHighs = "highs"
)

// EQ actions.
const (
	ActionCut   = "cut"
	ActionBoost = "boost"
)

// TrackCue describes where one track leaves or enters the mix. Offsets are
// in the track's own timeline.
type TrackCue struct {
	OutPointMS          float64 `json:"out_point_ms,omitempty"`
	InPointMS           float64 `json:"in_point_ms,omitempty"`
	OutPhrase           string  `json:"out_phrase,omitempty"`
	InPhrase            string  `json:"in_phrase,omitempty"`
	FadeStartMS         float64 `json:"fade_start_ms,omitempty"`
	FadeEndMS           float64 `json:"fade_end_ms,omitempty"`
	TempoStretchFactor  float64 `json:"tempo_stretch_factor"`
	PitchShiftSemitones int     `json:"pitch_shift_semitones,omitempty"`
}

// EQEntry is one gain-automation window applied to a band of one track.
type EQEntry struct {
	Track   string  `json:"track"` // "a" or "b"
	Band    string  `json:"band"`  // bass, mids, highs
	Action  string  `json:"action"`
	StartMS float64 `json:"start_ms"`
	EndMS   float64 `json:"end_ms"`
	FromDB  float64 `json:"from_db"`
	ToDB    float64 `json:"to_db"`
	Curve   string  `json:"curve"`
}

// Transition describes the crossfade window shared by both tracks.
type Transition struct {
	TotalDurationMS float64   `json:"total_duration_ms"`
	CrossfadeCurve  string    `json:"crossfade_curve"`
	EQAutomation    []EQEntry `json:"eq_automation"`
}

// SFX configures the optional transition sound effect. FallbackFile is
// mandatory whenever the effect is enabled.
type SFX struct {
	Enabled       bool    `json:"enabled"`
	Type          string  `json:"type"`
	TriggerReason string  `json:"trigger_reason,omitempty"`
	PositionMS    float64 `json:"position_ms"`
	DurationMS    float64 `json:"duration_ms"`
	Source        string  `json:"source"` // generated, library
	Prompt        string  `json:"prompt,omitempty"`
	FallbackFile  string  `json:"fallback_file,omitempty"`
}

// MixDecision is the full transition plan for one pair of tracks.
type MixDecision struct {
	Strategy   string     `json:"strategy"`
	Confidence float64    `json:"confidence"`
	Reasoning  string     `json:"reasoning"`
	TrackA     TrackCue   `json:"track_a"`
	TrackB     TrackCue   `json:"track_b"`
	Transition Transition `json:"transition"`
	SFX        SFX        `json:"sfx"`
	Suggestion string     `json:"suggestion,omitempty"`
}

// Incompatible reports whether this is the terminal no-mix variant.
func (d MixDecision) Incompatible() bool { return d.Strategy == StrategyIncompatible }

// Simplified returns a degraded copy of the decision for the single render
// retry: linear crossfade, no EQ automation, no SFX. Cue points and stretch
// factors are preserved.
func (d MixDecision) Simplified() MixDecision {
	out := d
	out.Transition.CrossfadeCurve = CurveLinear
	out.Transition.EQAutomation = nil
	out.SFX = SFX{}
	return out
}

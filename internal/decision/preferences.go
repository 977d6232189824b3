package decision

// Preferences carries optional user hints for the transition plan. Zero
// values mean "no preference".
type Preferences struct {
	// TransitionStartMS is the approximate point in track A where the user
	// wants the transition to begin.
	TransitionStartMS float64 `json:"transition_start_ms,omitempty"`
	// TrackBInPointMS is the approximate entry point for track B.
	TrackBInPointMS float64 `json:"track_b_in_point_ms,omitempty"`
	// Strategy, when set, is the user's preferred strategy variant.
	Strategy string `json:"strategy,omitempty"`
	// MixInKey requests a pitch shift on track B when the keys clash.
	MixInKey bool `json:"mix_in_key,omitempty"`
}

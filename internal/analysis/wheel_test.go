package analysis

import "testing"

func mustWheel(t *testing.T, code string) Wheel {
	t.Helper()
	w, err := ParseWheel(code)
	if err != nil {
		t.Fatalf("ParseWheel(%q): %v", code, err)
	}
	return w
}

func TestParseWheelRejectsBadCodes(t *testing.T) {
	for _, code := range []string{"", "A", "0A", "13A", "8C", "x8A", "8"} {
		if _, err := ParseWheel(code); err == nil {
			t.Errorf("ParseWheel(%q): expected error", code)
		}
	}
}

func TestParseWheelAcceptsLowercaseMode(t *testing.T) {
	w := mustWheel(t, "12b")
	if w.Position != 12 || w.Mode != "B" {
		t.Fatalf("unexpected wheel %+v", w)
	}
}

func TestWheelDistance(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"8A", "8A", 0},
		{"8A", "8B", 0}, // relative major/minor
		{"8A", "9A", 1},
		{"8A", "7A", 1},
		{"1A", "12A", 1}, // wrap-around
		{"12A", "1A", 1},
		{"1A", "7A", 6},
		{"8A", "9B", 6}, // cross-ring, not relative
	}
	for _, tc := range cases {
		got := WheelDistance(mustWheel(t, tc.a), mustWheel(t, tc.b))
		if got != tc.want {
			t.Errorf("WheelDistance(%s, %s) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestRelationForDistance(t *testing.T) {
	cases := map[int]string{
		0: RelationSame,
		1: RelationAdjacent,
		2: RelationRelative,
		3: RelationIncompatible,
		6: RelationIncompatible,
	}
	for dist, want := range cases {
		if got := RelationForDistance(dist); got != want {
			t.Errorf("RelationForDistance(%d) = %q, want %q", dist, got, want)
		}
	}
}

func TestHarmonicScoreBuckets(t *testing.T) {
	if got := HarmonicScore(0); got != 0.9 {
		t.Errorf("distance 0: got %v", got)
	}
	if got := HarmonicScore(1); got != 0.9 {
		t.Errorf("distance 1: got %v", got)
	}
	if got := HarmonicScore(2); got != 0.6 {
		t.Errorf("distance 2: got %v", got)
	}
	if got := HarmonicScore(6); got != 0.2 {
		t.Errorf("distance 6: got %v", got)
	}
}

func TestWheelForKey(t *testing.T) {
	cases := map[string]string{
		"Am":      "8A",
		"C":       "8B",
		"Em":      "9A",
		"G":       "9B",
		"A minor": "8A",
		"C major": "8B",
	}
	for key, want := range cases {
		w, ok := WheelForKey(key)
		if !ok {
			t.Errorf("WheelForKey(%q): not found", key)
			continue
		}
		if w.String() != want {
			t.Errorf("WheelForKey(%q) = %s, want %s", key, w, want)
		}
	}
	if _, ok := WheelForKey("X#dim7"); ok {
		t.Error("WheelForKey accepted an unknown key label")
	}
}

func TestPitchShiftToMatch(t *testing.T) {
	// Compatible pairs need no shift.
	if got := PitchShiftToMatch(mustWheel(t, "8A"), mustWheel(t, "9A")); got != 0 {
		t.Errorf("adjacent pair shifted by %d", got)
	}
	if got := PitchShiftToMatch(mustWheel(t, "8A"), mustWheel(t, "8B")); got != 0 {
		t.Errorf("relative pair shifted by %d", got)
	}
	// 8A (A minor, tonic 9) onto 10A (B minor, tonic 11) is +2 semitones.
	if got := PitchShiftToMatch(mustWheel(t, "8A"), mustWheel(t, "10A")); got != 2 {
		t.Errorf("8A onto 10A: got %d, want 2", got)
	}
	// 8A onto 6A (G minor, tonic 7) is -2 semitones.
	if got := PitchShiftToMatch(mustWheel(t, "8A"), mustWheel(t, "6A")); got != -2 {
		t.Errorf("8A onto 6A: got %d, want -2", got)
	}
	// Result always folds into -6..+6.
	for pa := 1; pa <= 12; pa++ {
		for pb := 1; pb <= 12; pb++ {
			got := PitchShiftToMatch(Wheel{Position: pa, Mode: "A"}, Wheel{Position: pb, Mode: "B"})
			if got < -6 || got > 6 {
				t.Fatalf("shift %d out of range for %dA onto %dB", got, pa, pb)
			}
		}
	}
}

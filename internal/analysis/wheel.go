package analysis

import (
	"fmt"
	"strconv"
	"strings"

	"segue/internal/services"
)

// Wheel positions run 1..12; mode is "A" (minor ring) or "B" (major ring).
type Wheel struct {
	Position int
	Mode     string
}

func (w Wheel) String() string { return fmt.Sprintf("%d%s", w.Position, w.Mode) }

// ParseWheel parses notations like "8A" or "12b".
func ParseWheel(code string) (Wheel, error) {
	code = strings.TrimSpace(code)
	if len(code) < 2 {
		return Wheel{}, services.Wrap(services.ErrValidation, "analysis", "parse_wheel", fmt.Sprintf("invalid wheel code %q", code), nil)
	}
	mode := strings.ToUpper(code[len(code)-1:])
	if mode != "A" && mode != "B" {
		return Wheel{}, services.Wrap(services.ErrValidation, "analysis", "parse_wheel", fmt.Sprintf("invalid wheel mode in %q", code), nil)
	}
	pos, err := strconv.Atoi(code[:len(code)-1])
	if err != nil || pos < 1 || pos > 12 {
		return Wheel{}, services.Wrap(services.ErrValidation, "analysis", "parse_wheel", fmt.Sprintf("invalid wheel position in %q", code), err)
	}
	return Wheel{Position: pos, Mode: mode}, nil
}

// incompatibleDistance is the ceiling assigned to cross-ring pairings that
// are not relative major/minor.
const incompatibleDistance = 6

// WheelDistance is the mixing distance between two wheel codes on a 0..6
// scale. Same-ring codes use circular distance around the twelve positions.
// The same position across rings is the relative major/minor pairing and
// counts as 0; every other cross-ring pairing gets the incompatible ceiling.
func WheelDistance(a, b Wheel) int {
	if a.Mode == b.Mode {
		d := a.Position - b.Position
		if d < 0 {
			d = -d
		}
		if 12-d < d {
			d = 12 - d
		}
		return d
	}
	if a.Position == b.Position {
		return 0
	}
	return incompatibleDistance
}

// Wheel relations, ordered by mixing preference.
const (
	RelationSame         = "same"
	RelationAdjacent     = "adjacent"
	RelationRelative     = "relative"
	RelationIncompatible = "incompatible"
	RelationUnknown      = "unknown"
)

// RelationForDistance labels a wheel distance.
func RelationForDistance(distance int) string {
	switch distance {
	case 0:
		return RelationSame
	case 1:
		return RelationAdjacent
	case 2:
		return RelationRelative
	default:
		return RelationIncompatible
	}
}

// HarmonicScore maps a wheel distance onto a mixability score.
func HarmonicScore(distance int) float64 {
	switch {
	case distance <= 1:
		return 0.9
	case distance <= 2:
		return 0.6
	default:
		return 0.2
	}
}

// keyToWheel maps musical key labels, long and short form, onto wheel codes.
var keyToWheel = map[string]string{
	"C major": "8B", "Db major": "3B", "D major": "10B", "Eb major": "5B",
	"E major": "12B", "F major": "7B", "F# major": "2B", "Gb major": "2B",
	"G major": "9B", "Ab major": "4B", "A major": "11B", "Bb major": "6B",
	"B major": "1B",
	"C minor": "5A", "C# minor": "12A", "Db minor": "12A", "D minor": "7A",
	"Eb minor": "2A", "E minor": "9A", "F minor": "4A", "F# minor": "11A",
	"Gb minor": "11A", "G minor": "6A", "G# minor": "1A", "Ab minor": "1A",
	"A minor": "8A", "Bb minor": "3A", "B minor": "10A",
	"C": "8B", "Cm": "5A", "C#": "3B", "C#m": "12A",
	"Db": "3B", "Dbm": "12A", "D": "10B", "Dm": "7A",
	"D#": "5B", "D#m": "2A", "Eb": "5B", "Ebm": "2A",
	"E": "12B", "Em": "9A", "F": "7B", "Fm": "4A",
	"F#": "2B", "F#m": "11A", "Gb": "2B", "Gbm": "11A",
	"G": "9B", "Gm": "6A", "G#": "4B", "G#m": "1A",
	"Ab": "4B", "Abm": "1A", "A": "11B", "Am": "8A",
	"A#": "6B", "A#m": "3A", "Bb": "6B", "Bbm": "3A",
	"B": "1B", "Bm": "10A",
}

// WheelForKey resolves a key label like "A minor" or "Am" to its wheel code.
func WheelForKey(key string) (Wheel, bool) {
	code, ok := keyToWheel[strings.TrimSpace(key)]
	if !ok {
		return Wheel{}, false
	}
	w, err := ParseWheel(code)
	if err != nil {
		return Wheel{}, false
	}
	return w, true
}

// tonicPitchClass returns the tonic of a wheel code as semitones above C.
// Both rings advance by a fifth per position.
func tonicPitchClass(w Wheel) int {
	base := 8 // 1A is Ab minor
	if w.Mode == "B" {
		base = 11 // 1B is B major
	}
	return (base + 7*(w.Position-1)) % 12
}

// PitchShiftToMatch returns the semitone shift, folded into -6..+6, that
// moves src harmonically onto dst. Already-compatible pairs (distance <= 1)
// need no shift and return 0.
func PitchShiftToMatch(src, dst Wheel) int {
	if WheelDistance(src, dst) <= 1 {
		return 0
	}
	diff := (tonicPitchClass(dst) - tonicPitchClass(src)) % 12
	if diff < 0 {
		diff += 12
	}
	if diff > 6 {
		diff -= 12
	}
	return diff
}

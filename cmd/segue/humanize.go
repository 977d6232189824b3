package main

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var displayCaser = cases.Title(language.English)

// displayName turns snake_case identifiers like "bass_swap" into
// human-readable labels.
func displayName(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	return displayCaser.String(strings.ReplaceAll(trimmed, "_", " "))
}

// formatDurationMS renders a millisecond duration as m:ss.
func formatDurationMS(ms float64) string {
	if ms <= 0 {
		return "-"
	}
	d := time.Duration(ms) * time.Millisecond
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

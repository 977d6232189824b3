package stage

import (
	"encoding/json"
	"strings"

	"segue/internal/analysis"
	"segue/internal/decision"
	"segue/internal/queue"
	"segue/internal/services"
)

// ParseBundle decodes the analysis bundle stored on a session. On failure it
// returns a services.ErrValidation suitable for stage Execute methods.
func ParseBundle(session *queue.Session) (analysis.Bundle, error) {
	var bundle analysis.Bundle
	if session == nil || strings.TrimSpace(session.BundleJSON) == "" {
		return bundle, services.Wrap(services.ErrValidation, "stage", "parse bundle",
			"analysis bundle missing from session", nil)
	}
	if err := json.Unmarshal([]byte(session.BundleJSON), &bundle); err != nil {
		return bundle, services.Wrap(services.ErrValidation, "stage", "parse bundle",
			"analysis bundle is not valid JSON", err)
	}
	return bundle, nil
}

// ParsePreferences decodes optional human overrides stored on a session.
// An empty payload yields zero preferences.
func ParsePreferences(session *queue.Session) (decision.Preferences, error) {
	var prefs decision.Preferences
	if session == nil || strings.TrimSpace(session.PreferencesJSON) == "" {
		return prefs, nil
	}
	if err := json.Unmarshal([]byte(session.PreferencesJSON), &prefs); err != nil {
		return prefs, services.Wrap(services.ErrValidation, "stage", "parse preferences",
			"preferences payload is not valid JSON", err)
	}
	return prefs, nil
}

// ParseDecision decodes the planned mix decision stored on a session. On
// failure it returns a services.ErrValidation; rerun planning to repair.
func ParseDecision(session *queue.Session) (decision.MixDecision, error) {
	var d decision.MixDecision
	if session == nil || strings.TrimSpace(session.DecisionJSON) == "" {
		return d, services.Wrap(services.ErrValidation, "stage", "parse decision",
			"mix decision missing; rerun planning", nil)
	}
	if err := json.Unmarshal([]byte(session.DecisionJSON), &d); err != nil {
		return d, services.Wrap(services.ErrValidation, "stage", "parse decision",
			"mix decision is not valid JSON", err)
	}
	return d, nil
}

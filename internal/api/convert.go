package api

import (
	"encoding/json"
	"time"

	"segue/internal/progress"
	"segue/internal/queue"
	"segue/internal/stage"
)

// FromSession converts a store row into its API representation.
func FromSession(session *queue.Session) Session {
	if session == nil {
		return Session{}
	}
	out := Session{
		ID:             session.ID,
		UUID:           session.UUID,
		TrackAPath:     session.TrackAPath,
		TrackBPath:     session.TrackBPath,
		Status:         string(session.Status),
		Strategy:       session.Strategy,
		DecisionSource: session.DecisionSource,
		Progress: SessionProgress{
			Stage:   session.ProgressStage,
			Percent: session.ProgressPercent,
			Message: session.ProgressMessage,
		},
		ArtifactPath: session.ArtifactPath,
		LosslessPath: session.LosslessPath,
		DurationMS:   session.DurationMS,
		PeakDB:       session.PeakDB,
		Warnings:     session.Warnings(),
		ErrorMessage: session.ErrorMessage,
		Suggestion:   session.Suggestion,
		CreatedAt:    formatTime(session.CreatedAt),
		UpdatedAt:    formatTime(session.UpdatedAt),
	}
	if session.DecisionJSON != "" {
		out.Decision = json.RawMessage(session.DecisionJSON)
	}
	if session.CompletedAt != nil {
		out.CompletedAt = formatTime(*session.CompletedAt)
	}
	return out
}

// FromSessions converts a slice of store rows, preserving order.
func FromSessions(sessions []*queue.Session) []Session {
	if len(sessions) == 0 {
		return nil
	}
	out := make([]Session, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, FromSession(session))
	}
	return out
}

// FromProgressEvent converts a reporter event for transport.
func FromProgressEvent(event progress.Event) ProgressEvent {
	return ProgressEvent{
		Sequence:  event.Sequence,
		Stage:     event.Stage,
		Progress:  event.Progress,
		Message:   event.Message,
		Timestamp: event.Timestamp.UTC().Format(dateTimeFormat),
	}
}

// FromProgressEvents converts a batch of reporter events.
func FromProgressEvents(events []progress.Event) []ProgressEvent {
	if len(events) == 0 {
		return nil
	}
	out := make([]ProgressEvent, 0, len(events))
	for _, event := range events {
		out = append(out, FromProgressEvent(event))
	}
	return out
}

// FromStageHealth converts stage readiness reports.
func FromStageHealth(health []stage.Health) []StageHealth {
	if len(health) == 0 {
		return nil
	}
	out := make([]StageHealth, 0, len(health))
	for _, h := range health {
		out = append(out, StageHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

// MergeSessionStats normalizes store counts into string-keyed counts with
// every known status present.
func MergeSessionStats(stats map[queue.Status]int) map[string]int {
	all := queue.AllStatuses()
	out := make(map[string]int, len(all))
	for _, status := range all {
		out[string(status)] = 0
	}
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

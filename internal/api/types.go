package api

import (
	"encoding/json"

	"segue/internal/analysis"
	"segue/internal/decision"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Session describes a mix session in a transport-friendly format.
type Session struct {
	ID             int64           `json:"id"`
	UUID           string          `json:"uuid"`
	TrackAPath     string          `json:"trackAPath"`
	TrackBPath     string          `json:"trackBPath"`
	Status         string          `json:"status"`
	Strategy       string          `json:"strategy,omitempty"`
	DecisionSource string          `json:"decisionSource,omitempty"`
	Progress       SessionProgress `json:"progress"`
	ArtifactPath   string          `json:"artifactPath,omitempty"`
	LosslessPath   string          `json:"losslessPath,omitempty"`
	DurationMS     float64         `json:"durationMs,omitempty"`
	PeakDB         float64         `json:"peakDb,omitempty"`
	Warnings       []string        `json:"warnings,omitempty"`
	ErrorMessage   string          `json:"errorMessage,omitempty"`
	Suggestion     string          `json:"suggestion,omitempty"`
	Decision       json.RawMessage `json:"decision,omitempty"`
	CreatedAt      string          `json:"createdAt,omitempty"`
	UpdatedAt      string          `json:"updatedAt,omitempty"`
	CompletedAt    string          `json:"completedAt,omitempty"`
}

// SessionProgress captures the latest reported progress for a session.
type SessionProgress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// ProgressEvent is one entry in a session's event stream.
type ProgressEvent struct {
	Sequence  uint64  `json:"sequence"`
	Stage     string  `json:"stage"`
	Progress  float64 `json:"progress"`
	Message   string  `json:"message,omitempty"`
	Timestamp string  `json:"timestamp"`
}

// StageHealth mirrors readiness reporting for pipeline stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running             bool               `json:"running"`
	PID                 int                `json:"pid"`
	SessionDBPath       string             `json:"sessionDbPath"`
	LockFilePath        string             `json:"lockFilePath"`
	ReasoningConfigured bool               `json:"reasoningConfigured"`
	SessionCounts       map[string]int     `json:"sessionCounts"`
	LastError           string             `json:"lastError,omitempty"`
	StageHealth         []StageHealth      `json:"stageHealth"`
	Dependencies        []DependencyStatus `json:"dependencies"`
}

// CreateSessionRequest submits a pair of analyzed tracks for mixing.
type CreateSessionRequest struct {
	TrackAPath  string                `json:"track_a_path"`
	TrackBPath  string                `json:"track_b_path"`
	TrackA      analysis.Record       `json:"track_a"`
	TrackB      analysis.Record       `json:"track_b"`
	Preferences *decision.Preferences `json:"preferences,omitempty"`
}

// SessionListResponse wraps a collection of sessions.
type SessionListResponse struct {
	Sessions []Session `json:"sessions"`
}

// SessionResponse wraps a single session.
type SessionResponse struct {
	Session Session `json:"session"`
}

// EventListResponse wraps a slice of progress events plus the cursor to
// pass as "since" on the next poll.
type EventListResponse struct {
	Events []ProgressEvent `json:"events"`
	Next   uint64          `json:"next"`
}

// CancelResponse reports the outcome of a cancellation request.
type CancelResponse struct {
	Session   Session `json:"session"`
	Cancelled bool    `json:"cancelled"`
}

// ErrorResponse is the uniform error payload for non-2xx replies.
type ErrorResponse struct {
	Error string `json:"error"`
}

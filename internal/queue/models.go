package queue

import (
	"encoding/json"
	"strings"
	"time"
)

// Status represents the lifecycle of a render session.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPlanning  Status = "planning"
	StatusPlanned   Status = "planned"
	StatusRendering Status = "rendering"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

var allStatuses = []Status{
	StatusPending,
	StatusPlanning,
	StatusPlanned,
	StatusRendering,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusPlanning:  {},
	StatusRendering: {},
}

// DaemonStopReason is the error message set on sessions failed because the
// daemon shut down mid-flight.
const DaemonStopReason = "Daemon stopped"

// HealthSummary describes aggregated session counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
	Cancelled  int
}

// Session represents a render session persisted in SQLite.
type Session struct {
	ID              int64
	UUID            string
	TrackAPath      string
	TrackBPath      string
	BundleJSON      string
	PreferencesJSON string
	DecisionJSON    string
	DecisionSource  string
	Strategy        string
	Status          Status
	CancelRequested bool
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	ArtifactPath    string
	LosslessPath    string
	DurationMS      float64
	PeakDB          float64
	WarningsJSON    string
	ErrorMessage    string
	Suggestion      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminalStatus reports whether a status ends the session lifecycle.
func IsTerminalStatus(status Status) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsProcessing returns true when the session is inside a stage.
func (s Session) IsProcessing() bool {
	return IsProcessingStatus(s.Status)
}

// IsTerminal returns true when the session has finished.
func (s Session) IsTerminal() bool {
	return IsTerminalStatus(s.Status)
}

// SetProgress updates the progress triplet atomically.
func (s *Session) SetProgress(stage, message string, percent float64) {
	s.ProgressStage = stage
	s.ProgressMessage = message
	s.ProgressPercent = percent
}

// SetFailed marks the session as failed with the given error message.
func (s *Session) SetFailed(message string) {
	s.Status = StatusFailed
	s.ErrorMessage = message
	s.ProgressStage = "failed"
	s.ProgressMessage = message
}

// SetCancelled marks the session as cancelled.
func (s *Session) SetCancelled() {
	s.Status = StatusCancelled
	s.ProgressStage = "cancelled"
	s.ProgressMessage = "Cancelled before rendering"
}

// Warnings decodes the accumulated warning list. Corrupt or empty payloads
// return nil.
func (s Session) Warnings() []string {
	if strings.TrimSpace(s.WarningsJSON) == "" {
		return nil
	}
	var warnings []string
	if err := json.Unmarshal([]byte(s.WarningsJSON), &warnings); err != nil {
		return nil
	}
	return warnings
}

// AppendWarnings merges new warnings into the stored list.
func (s *Session) AppendWarnings(warnings ...string) {
	if len(warnings) == 0 {
		return
	}
	merged := append(s.Warnings(), warnings...)
	encoded, err := json.Marshal(merged)
	if err != nil {
		return
	}
	s.WarningsJSON = string(encoded)
}

package api

import (
	"testing"
	"time"

	"segue/internal/progress"
	"segue/internal/queue"
	"segue/internal/stage"
)

func TestFromSessionCopiesFields(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	completed := created.Add(90 * time.Second)
	session := &queue.Session{
		ID:              7,
		UUID:            "abc-123",
		TrackAPath:      "/music/a.wav",
		TrackBPath:      "/music/b.wav",
		Status:          queue.StatusCompleted,
		Strategy:        "bass_swap",
		DecisionSource:  "fallback",
		DecisionJSON:    `{"strategy":"bass_swap"}`,
		ProgressStage:   "complete",
		ProgressPercent: 1.0,
		ProgressMessage: "Mix ready",
		ArtifactPath:    "/out/7_mix.mp3",
		DurationMS:      241000,
		PeakDB:          -1.0,
		WarningsJSON:    `["tempo stretch skipped"]`,
		CreatedAt:       created,
		UpdatedAt:       completed,
		CompletedAt:     &completed,
	}

	dto := FromSession(session)
	if dto.ID != 7 || dto.UUID != "abc-123" {
		t.Fatalf("identity fields = %d/%s", dto.ID, dto.UUID)
	}
	if dto.Status != "completed" || dto.Strategy != "bass_swap" {
		t.Fatalf("status/strategy = %s/%s", dto.Status, dto.Strategy)
	}
	if dto.Progress.Percent != 1.0 || dto.Progress.Message != "Mix ready" {
		t.Fatalf("progress = %+v", dto.Progress)
	}
	if len(dto.Warnings) != 1 || dto.Warnings[0] != "tempo stretch skipped" {
		t.Fatalf("warnings = %v", dto.Warnings)
	}
	if string(dto.Decision) != `{"strategy":"bass_swap"}` {
		t.Fatalf("decision = %s", dto.Decision)
	}
	if dto.DurationMS != 241000 || dto.PeakDB != -1.0 {
		t.Fatalf("artifact metadata = %v ms / %v dB", dto.DurationMS, dto.PeakDB)
	}
	if dto.CreatedAt != "2026-03-14T09:30:00.000Z" {
		t.Fatalf("created at = %s", dto.CreatedAt)
	}
	if dto.CompletedAt == "" {
		t.Fatal("completed at missing")
	}
}

func TestFromSessionNil(t *testing.T) {
	dto := FromSession(nil)
	if dto.ID != 0 || dto.UUID != "" {
		t.Fatalf("nil session produced %+v", dto)
	}
}

func TestMergeSessionStatsFillsAllStatuses(t *testing.T) {
	merged := MergeSessionStats(map[queue.Status]int{queue.StatusPending: 2})
	if len(merged) != len(queue.AllStatuses()) {
		t.Fatalf("merged has %d keys, want %d", len(merged), len(queue.AllStatuses()))
	}
	if merged["pending"] != 2 || merged["failed"] != 0 {
		t.Fatalf("merged = %v", merged)
	}
}

func TestFromProgressEvent(t *testing.T) {
	event := progress.Event{
		Sequence:  3,
		SessionID: "abc",
		Timestamp: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Stage:     progress.StageRender,
		Progress:  0.5,
		Message:   "Crossfading",
	}
	dto := FromProgressEvent(event)
	if dto.Sequence != 3 || dto.Stage != progress.StageRender || dto.Progress != 0.5 {
		t.Fatalf("dto = %+v", dto)
	}
	if dto.Timestamp != "2026-03-14T09:30:00.000Z" {
		t.Fatalf("timestamp = %s", dto.Timestamp)
	}
}

func TestFromStageHealth(t *testing.T) {
	converted := FromStageHealth([]stage.Health{
		stage.Healthy("planning"),
		stage.Unhealthy("rendering", "ffmpeg not found"),
	})
	if len(converted) != 2 {
		t.Fatalf("converted %d entries", len(converted))
	}
	if !converted[0].Ready || converted[1].Ready {
		t.Fatalf("readiness = %+v", converted)
	}
	if converted[1].Detail != "ffmpeg not found" {
		t.Fatalf("detail = %q", converted[1].Detail)
	}
}

package logging

import "testing"

func TestProgressSamplerEmitsOnStageChange(t *testing.T) {
	s := NewProgressSampler(0.05)
	if !s.ShouldLog(0.1, "strategy") {
		t.Fatal("first event should log")
	}
	if s.ShouldLog(0.1, "strategy") {
		t.Fatal("repeat within same bucket should not log")
	}
	if !s.ShouldLog(0.1, "render") {
		t.Fatal("stage change should log")
	}
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(0.05)
	if !s.ShouldLog(0.01, "render") {
		t.Fatal("first bucket should log")
	}
	if s.ShouldLog(0.03, "render") {
		t.Fatal("same bucket should not log")
	}
	if !s.ShouldLog(0.07, "render") {
		t.Fatal("next bucket should log")
	}
	if !s.ShouldLog(1.0, "render") {
		t.Fatal("completion should log")
	}
}

func TestProgressSamplerReset(t *testing.T) {
	s := NewProgressSampler(0.05)
	s.ShouldLog(0.5, "render")
	s.Reset()
	if !s.ShouldLog(0.5, "render") {
		t.Fatal("reset should allow re-emission")
	}
}

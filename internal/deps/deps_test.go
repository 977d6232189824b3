package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}

	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
}

func TestCheckBinariesEmptyCommand(t *testing.T) {
	results := CheckBinaries([]Requirement{{Name: "Unset", Command: "  "}})
	if len(results) != 1 || results[0].Available {
		t.Fatalf("expected unset command to be unavailable, got %#v", results)
	}
	if results[0].Detail != "command not configured" {
		t.Fatalf("unexpected detail: %s", results[0].Detail)
	}
}

func TestResolveFFmpeg(t *testing.T) {
	if got := ResolveFFmpeg(""); got != "ffmpeg" {
		t.Fatalf("default = %q", got)
	}
	if got := ResolveFFmpeg("  /opt/ffmpeg/bin/ffmpeg  "); got != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("configured = %q", got)
	}
}

func TestRequirementsUsesConfiguredBinary(t *testing.T) {
	reqs := Requirements("/usr/local/bin/ffmpeg")
	if len(reqs) != 1 {
		t.Fatalf("expected one requirement, got %d", len(reqs))
	}
	if reqs[0].Command != "/usr/local/bin/ffmpeg" {
		t.Fatalf("command = %q", reqs[0].Command)
	}
	if reqs[0].Optional {
		t.Fatal("ffmpeg must be required")
	}
}

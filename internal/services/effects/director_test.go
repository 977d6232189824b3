package effects

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"segue/internal/decision"
	"segue/internal/logging"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("RIFFtest"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func libraryDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		writeFile(t, filepath.Join(dir, name))
	}
	return dir
}

func TestResolveDisabledReturnsNothing(t *testing.T) {
	d := NewDirector(Config{LibraryDir: libraryDir(t, "riser_01.wav")}, logging.NewNop())
	if got := d.Resolve(context.Background(), decision.SFX{Enabled: false}); got != "" {
		t.Fatalf("disabled sfx resolved to %q", got)
	}
	if got := d.Resolve(context.Background(), decision.SFX{Enabled: true, Type: "none"}); got != "" {
		t.Fatalf("type none resolved to %q", got)
	}
}

func TestResolvePrefersNamedFallbackFile(t *testing.T) {
	dir := libraryDir(t, "riser_01.wav", "sweep_02.wav")
	d := NewDirector(Config{LibraryDir: dir}, logging.NewNop())

	got := d.Resolve(context.Background(), decision.SFX{
		Enabled:      true,
		Type:         "riser_sweep",
		Source:       "library",
		FallbackFile: "sweep_02.wav",
	})
	if got != filepath.Join(dir, "sweep_02.wav") {
		t.Fatalf("resolved %q, want the named fallback", got)
	}
}

func TestResolveFallsBackToTypePrefix(t *testing.T) {
	dir := libraryDir(t, "riser_01.wav", "scratch_01.wav")
	d := NewDirector(Config{LibraryDir: dir}, logging.NewNop())

	got := d.Resolve(context.Background(), decision.SFX{
		Enabled:      true,
		Type:         "riser_sweep",
		Source:       "library",
		FallbackFile: "missing.wav",
	})
	if got != filepath.Join(dir, "riser_01.wav") {
		t.Fatalf("resolved %q, want the riser prefix match", got)
	}
}

func TestResolveLastResortAnyWAV(t *testing.T) {
	dir := libraryDir(t, "zzz_misc.wav")
	d := NewDirector(Config{LibraryDir: dir}, logging.NewNop())

	got := d.Resolve(context.Background(), decision.SFX{Enabled: true, Type: "impact", Source: "library"})
	if got != filepath.Join(dir, "zzz_misc.wav") {
		t.Fatalf("resolved %q, want any library file", got)
	}
}

func TestResolveGeneratesAndCaches(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if got := r.Header.Get("xi-api-key"); got != "key" {
			t.Errorf("api key header = %q", got)
		}
		if _, err := w.Write([]byte("RIFFgenerated")); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
	defer server.Close()

	cacheDir := t.TempDir()
	d := NewDirector(Config{
		Enabled:    true,
		APIKey:     "key",
		BaseURL:    server.URL,
		LibraryDir: libraryDir(t, "riser_01.wav"),
		CacheDir:   cacheDir,
	}, logging.NewNop())

	sfx := decision.SFX{
		Enabled:      true,
		Type:         "riser_sweep",
		Source:       "generated",
		Prompt:       "white noise riser, 4 seconds",
		DurationMS:   4000,
		FallbackFile: "riser_01.wav",
	}
	first := d.Resolve(context.Background(), sfx)
	if first == "" || filepath.Dir(first) != cacheDir {
		t.Fatalf("resolved %q, want a cache file", first)
	}
	second := d.Resolve(context.Background(), sfx)
	if second != first {
		t.Fatalf("second resolve %q differs from first %q", second, first)
	}
	if calls != 1 {
		t.Fatalf("API called %d times, want 1", calls)
	}
}

func TestResolveGenerationFailureUsesLibrary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	dir := libraryDir(t, "riser_01.wav")
	d := NewDirector(Config{
		Enabled:    true,
		APIKey:     "key",
		BaseURL:    server.URL,
		LibraryDir: dir,
		CacheDir:   t.TempDir(),
	}, logging.NewNop())

	got := d.Resolve(context.Background(), decision.SFX{
		Enabled:    true,
		Type:       "riser_sweep",
		Source:     "generated",
		Prompt:     "white noise riser",
		DurationMS: 4000,
	})
	if got != filepath.Join(dir, "riser_01.wav") {
		t.Fatalf("resolved %q, want the library fallback", got)
	}
}

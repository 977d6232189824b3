package effects

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"segue/internal/decision"
	"segue/internal/logging"
	"segue/internal/services"
)

const defaultHTTPTimeout = 8 * time.Second

// Config captures the settings for the sound-generation API and the local
// library.
type Config struct {
	Enabled        bool
	APIKey         string
	BaseURL        string
	TimeoutSeconds int
	LibraryDir     string
	CacheDir       string
}

// Director resolves SFX audio files for mix decisions.
type Director struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customizes the director.
type Option func(*Director)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Director) {
		if client != nil {
			d.httpClient = client
		}
	}
}

// NewDirector constructs a director from the supplied configuration.
func NewDirector(cfg Config, logger *slog.Logger, opts ...Option) *Director {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Director{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewComponentLogger(logger, "effects"),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.cfg.BaseURL == "" {
		d.cfg.BaseURL = "https://api.elevenlabs.io/v1/sound-generation"
	}
	return d
}

// Resolve returns the path of the audio file to overlay for the given SFX
// block, or "" when the effect is disabled or nothing could be resolved.
// Generation failures are logged and absorbed; the library fallback is
// always attempted.
func (d *Director) Resolve(ctx context.Context, sfx decision.SFX) string {
	if !sfx.Enabled || sfx.Type == "none" || sfx.Type == "" {
		return ""
	}
	if sfx.Source == "generated" && d.cfg.Enabled && d.cfg.APIKey != "" && sfx.Prompt != "" {
		path, err := d.generate(ctx, sfx)
		if err == nil {
			return path
		}
		d.logger.Warn("sfx generation failed, using library fallback",
			logging.Error(err),
			logging.String("sfx_type", sfx.Type))
	}
	return d.fromLibrary(sfx)
}

// generate calls the sound-generation API and caches the result by prompt
// hash so repeated renders of the same decision skip the network.
func (d *Director) generate(ctx context.Context, sfx decision.SFX) (string, error) {
	sum := md5.Sum([]byte(sfx.Prompt))
	promptHash := hex.EncodeToString(sum[:])[:12]
	cached := filepath.Join(d.cfg.CacheDir, "sfx_"+promptHash+".wav")
	if info, err := os.Stat(cached); err == nil && info.Size() > 0 {
		return cached, nil
	}

	payload := map[string]any{
		"text":             sfx.Prompt,
		"duration_seconds": sfx.DurationMS / 1000,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "effects", "generate", "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "effects", "generate", "new request", err)
	}
	req.Header.Set("xi-api-key", d.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "effects", "generate", "http error", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", services.Wrap(services.ErrExternalTool, "effects", "generate",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "effects", "generate", "read audio", err)
	}
	if len(audio) == 0 {
		return "", services.Wrap(services.ErrExternalTool, "effects", "generate", "empty audio body", nil)
	}
	if err := os.MkdirAll(d.cfg.CacheDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "effects", "generate", "create cache dir", err)
	}
	if err := os.WriteFile(cached, audio, 0o644); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "effects", "generate", "write cache file", err)
	}
	return cached, nil
}

// typePrefixes maps effect types onto library filename prefixes.
var typePrefixes = map[string]string{
	"riser_sweep":   "riser",
	"sweep":         "sweep",
	"vinyl_scratch": "scratch",
	"reverb_tail":   "reverb",
	"impact":        "impact",
	"noise_build":   "noise_build",
}

// fromLibrary resolves the effect from the local library: the named fallback
// file first, then any file matching the type prefix, then any WAV at all.
func (d *Director) fromLibrary(sfx decision.SFX) string {
	if d.cfg.LibraryDir == "" {
		return ""
	}
	if sfx.FallbackFile != "" {
		candidate := filepath.Join(d.cfg.LibraryDir, filepath.Base(sfx.FallbackFile))
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	prefix, ok := typePrefixes[sfx.Type]
	if !ok {
		prefix = sfx.Type
	}
	if matches, err := filepath.Glob(filepath.Join(d.cfg.LibraryDir, prefix+"*.wav")); err == nil && len(matches) > 0 {
		return matches[0]
	}
	if matches, err := filepath.Glob(filepath.Join(d.cfg.LibraryDir, "*.wav")); err == nil && len(matches) > 0 {
		return matches[0]
	}
	d.logger.Warn("no sfx files found in library", logging.String("library_dir", d.cfg.LibraryDir))
	return ""
}

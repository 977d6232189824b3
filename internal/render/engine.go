package render

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"segue/internal/decision"
	"segue/internal/logging"
	"segue/internal/services"
	"segue/internal/services/effects"
	"segue/internal/services/ffmpeg"
)

// stretchToleranceMS bounds the accepted deviation between the expected and
// actual duration of a time-stretched track.
const stretchToleranceMS = 50.0

// sfxGainDB attenuates the overlay relative to the programme material.
const sfxGainDB = -6.0

// Options configures the render engine.
type Options struct {
	SampleRate    int
	MP3Bitrate    string
	PeakCeilingDB float64
	KeepLossless  bool
	FFmpegBinary  string
	StagingDir    string
	OutputDir     string
}

// Result describes a finished render.
type Result struct {
	MP3Path    string
	WAVPath    string
	DurationMS float64
	PeakDB     float64
	Warnings   []string
	// Simplified is set when the first attempt failed and the retry with
	// degraded settings produced the artifact.
	Simplified bool
}

// Engine renders mix decisions into delivery artifacts.
type Engine struct {
	opts    Options
	effects *effects.Director
	logger  *slog.Logger
}

// NewEngine constructs an engine. The effects director may be nil, in which
// case SFX overlays are skipped.
func NewEngine(opts Options, director *effects.Director, logger *slog.Logger) *Engine {
	if opts.SampleRate <= 0 {
		opts.SampleRate = 44100
	}
	if opts.MP3Bitrate == "" {
		opts.MP3Bitrate = "320k"
	}
	if opts.PeakCeilingDB == 0 {
		opts.PeakCeilingDB = -1.0
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		opts:    opts,
		effects: director,
		logger:  logging.NewComponentLogger(logger, "render"),
	}
}

// Render executes the decision against the two source tracks. A failed
// attempt is retried exactly once with simplified settings (linear curve,
// no EQ, no SFX); a second failure is final. Validation errors on the
// inputs are fatal immediately and skip the retry.
func (e *Engine) Render(ctx context.Context, sessionID string, d decision.MixDecision, pathA, pathB string, onProgress func(float64, string)) (Result, error) {
	if onProgress == nil {
		onProgress = func(float64, string) {}
	}
	result, err := e.attempt(ctx, sessionID, d, pathA, pathB, onProgress)
	if err == nil {
		return result, nil
	}
	if services.IsFatal(err) || ctx.Err() != nil {
		return Result{}, err
	}

	e.logger.Warn("render failed, retrying with simplified settings",
		logging.String("session_id", sessionID),
		logging.Error(err))
	onProgress(0.5, "retrying with simplified settings")

	result, retryErr := e.attempt(ctx, sessionID, d.Simplified(), pathA, pathB, onProgress)
	if retryErr != nil {
		return Result{}, services.Wrap(services.ErrTransient, "render", "render",
			fmt.Sprintf("simplified retry failed after: %v", err), retryErr)
	}
	result.Simplified = true
	result.Warnings = append(result.Warnings, fmt.Sprintf("first render attempt failed (%v); delivered simplified mix", err))
	return result, nil
}

func (e *Engine) attempt(ctx context.Context, sessionID string, d decision.MixDecision, pathA, pathB string, onProgress func(float64, string)) (Result, error) {
	var result Result

	onProgress(0.05, "loading source audio")
	bufA, err := e.loadTrack(ctx, pathA)
	if err != nil {
		return result, err
	}
	bufB, err := e.loadTrack(ctx, pathB)
	if err != nil {
		return result, err
	}

	onProgress(0.2, "adjusting tempo")
	bufA, factorA, warnA := e.stretchVerified(bufA, d.TrackA.TempoStretchFactor, "track A")
	bufB, factorB, warnB := e.stretchVerified(bufB, d.TrackB.TempoStretchFactor, "track B")
	if warnA != "" {
		result.Warnings = append(result.Warnings, warnA)
	}
	if warnB != "" {
		result.Warnings = append(result.Warnings, warnB)
	}

	if d.TrackA.PitchShiftSemitones != 0 {
		bufA = PitchShift(bufA, d.TrackA.PitchShiftSemitones)
	}
	if d.TrackB.PitchShiftSemitones != 0 {
		bufB = PitchShift(bufB, d.TrackB.PitchShiftSemitones)
	}

	// Cue positions live in each track's original timeline; stretching by
	// factor f moves a position to position/f.
	fadeStartMS := d.TrackA.FadeStartMS
	if fadeStartMS <= 0 {
		fadeStartMS = d.TrackA.OutPointMS
	}
	transitionMS := d.Transition.TotalDurationMS
	segEndA := bufA.FrameForMS(fadeStartMS/factorA + transitionMS)
	segA := bufA.Segment(0, segEndA)

	inPointMS := d.TrackB.InPointMS / factorB
	segB := bufB.Segment(bufB.FrameForMS(inPointMS), bufB.NumFrames())

	onProgress(0.4, "applying eq automation")
	for _, entry := range d.Transition.EQAutomation {
		switch entry.Track {
		case decision.TrackA:
			ApplyEQEntry(segA, entry, segA.FrameForMS(entry.StartMS/factorA), segA.FrameForMS(entry.EndMS/factorA))
		case decision.TrackB:
			ApplyEQEntry(segB, entry, segB.FrameForMS(entry.StartMS/factorB-inPointMS), segB.FrameForMS(entry.EndMS/factorB-inPointMS))
		}
	}

	onProgress(0.6, "blending transition")
	overlapFrames := int(math.Round(transitionMS / 1000 * float64(segA.SampleRate)))
	mixed := Crossfade(segA, segB, overlapFrames, d.Transition.CrossfadeCurve)
	boundaryFrame := segA.NumFrames() - overlapFrames
	if boundaryFrame < 0 {
		boundaryFrame = 0
	}

	if d.SFX.Enabled && e.effects != nil {
		onProgress(0.7, "overlaying sound effect")
		if sfxPath := e.effects.Resolve(ctx, d.SFX); sfxPath != "" {
			sfxBuf, sfxErr := ReadWAV(sfxPath)
			if sfxErr != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("sfx file %s unreadable, overlay skipped", filepath.Base(sfxPath)))
			} else {
				// The SFX position addresses the mixed-output timeline, not
				// either source track.
				mixed.MixAt(sfxBuf, mixed.FrameForMS(d.SFX.PositionMS), dbToGain(sfxGainDB))
			}
		}
	}

	onProgress(0.85, "finalizing")
	result.PeakDB = Normalize(mixed, e.opts.PeakCeilingDB)
	silent, discontinuity := VerifyBoundary(mixed, boundaryFrame, overlapFrames)
	if silent {
		return result, services.Wrap(services.ErrTransient, "render", "verify", "full-silence gap inside the transition window", nil)
	}
	if discontinuity {
		return result, services.Wrap(services.ErrTransient, "render", "verify", "sample discontinuity at the transition boundary", nil)
	}

	wavPath := filepath.Join(e.opts.OutputDir, sessionID+"_mix.wav")
	mp3Path := filepath.Join(e.opts.OutputDir, sessionID+"_mix.mp3")
	if err := os.MkdirAll(e.opts.OutputDir, 0o755); err != nil {
		return result, services.Wrap(services.ErrConfiguration, "render", "finalize", "create output dir", err)
	}
	if err := WriteWAV(wavPath, mixed); err != nil {
		return result, err
	}
	if err := ffmpeg.EncodeMP3(ctx, e.opts.FFmpegBinary, wavPath, mp3Path, e.opts.MP3Bitrate); err != nil {
		return result, err
	}
	if !e.opts.KeepLossless {
		if rmErr := os.Remove(wavPath); rmErr == nil {
			wavPath = ""
		}
	}

	result.MP3Path = mp3Path
	result.WAVPath = wavPath
	result.DurationMS = mixed.DurationMS()
	return result, nil
}

// stretchVerified applies the tempo stretch and verifies the output length.
// A verification miss keeps the original audio and reports a warning; the
// effective factor returned is then 1 so cue mapping stays consistent.
func (e *Engine) stretchVerified(buf *Buffer, factor float64, label string) (*Buffer, float64, string) {
	if factor <= 0 || factor == 1 {
		return buf, 1, ""
	}
	stretched := TimeStretch(buf, factor)
	expectedMS := buf.DurationMS() / factor
	deltaMS := math.Abs(stretched.DurationMS() - expectedMS)
	if deltaMS > stretchToleranceMS {
		warning := fmt.Sprintf("%s stretch verification missed by %.0f ms, stretch skipped", label, deltaMS)
		e.logger.Warn("tempo stretch verification failed",
			logging.String("track", label),
			logging.Float64("delta_ms", deltaMS))
		return buf, 1, warning
	}
	return stretched, factor, ""
}

// loadTrack decodes a source file into a buffer at the engine sample rate.
// WAV files are read directly; anything else goes through ffmpeg.
func (e *Engine) loadTrack(ctx context.Context, path string) (*Buffer, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		buf, err := ReadWAV(path)
		if err != nil {
			return nil, err
		}
		if buf.SampleRate != e.opts.SampleRate && buf.SampleRate > 0 {
			ratio := float64(buf.SampleRate) / float64(e.opts.SampleRate)
			buf = Resample(buf, ratio)
			buf.SampleRate = e.opts.SampleRate
		}
		return buf, nil
	}
	if err := os.MkdirAll(e.opts.StagingDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "render", "load_track", "create staging dir", err)
	}
	decoded := filepath.Join(e.opts.StagingDir, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))+"_decoded.wav")
	if err := ffmpeg.DecodeToWAV(ctx, e.opts.FFmpegBinary, path, decoded, e.opts.SampleRate); err != nil {
		return nil, err
	}
	defer os.Remove(decoded)
	return ReadWAV(decoded)
}

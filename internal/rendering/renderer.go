package rendering

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"log/slog"

	"segue/internal/config"
	"segue/internal/logging"
	"segue/internal/progress"
	"segue/internal/queue"
	"segue/internal/render"
	"segue/internal/services"
	"segue/internal/services/effects"
	"segue/internal/stage"
)

// Renderer executes planned mix decisions.
type Renderer struct {
	cfg      *config.Config
	logger   *slog.Logger
	engine   *render.Engine
	reporter *progress.Hub
}

// NewRenderer constructs the render stage handler from configuration.
func NewRenderer(cfg *config.Config, logger *slog.Logger, reporter *progress.Hub) *Renderer {
	director := effects.NewDirector(effects.Config{
		Enabled:        cfg.Effects.Enabled,
		APIKey:         cfg.Effects.APIKey,
		BaseURL:        cfg.Effects.BaseURL,
		TimeoutSeconds: cfg.Effects.TimeoutSeconds,
		LibraryDir:     cfg.Paths.SFXLibraryDir,
		CacheDir:       cfg.Paths.SFXCacheDir,
	}, logger)
	engine := render.NewEngine(render.Options{
		SampleRate:    cfg.Render.SampleRate,
		MP3Bitrate:    cfg.Render.MP3Bitrate,
		PeakCeilingDB: cfg.Render.PeakCeiling,
		KeepLossless:  cfg.Render.KeepLossless,
		FFmpegBinary:  cfg.FFmpegBinary(),
		StagingDir:    cfg.Paths.StagingDir,
		OutputDir:     cfg.Paths.OutputDir,
	}, director, logger)
	return NewRendererWithEngine(cfg, logger, reporter, engine)
}

// NewRendererWithEngine allows injecting the engine (used in tests).
func NewRendererWithEngine(cfg *config.Config, logger *slog.Logger, reporter *progress.Hub, engine *render.Engine) *Renderer {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = logging.NewComponentLogger(stageLogger, "rendering")
	}
	return &Renderer{cfg: cfg, logger: stageLogger, engine: engine, reporter: reporter}
}

// Prepare verifies the inputs the render needs are present.
func (r *Renderer) Prepare(ctx context.Context, session *queue.Session) error {
	d, err := stage.ParseDecision(session)
	if err != nil {
		return err
	}
	if d.Incompatible() {
		return nil
	}
	for _, path := range []string{session.TrackAPath, session.TrackBPath} {
		if _, statErr := os.Stat(path); statErr != nil {
			return services.Wrap(services.ErrValidation, "rendering", "check source",
				fmt.Sprintf("source track %s unavailable", path), statErr)
		}
	}
	session.SetProgress(progress.StageRender, "Render queued", 0.3)
	r.publish(session, progress.StageRender, 0.3, "Render queued")
	return nil
}

// Execute renders the mix. An incompatible verdict completes the session
// without an artifact; the suggestion travels on the session row. Once this
// method is running a cancel request is ignored, the render finishes and
// the artifact is retained.
func (r *Renderer) Execute(ctx context.Context, session *queue.Session) error {
	logger := logging.WithContext(ctx, r.logger)

	d, err := stage.ParseDecision(session)
	if err != nil {
		return err
	}
	if d.Incompatible() {
		session.Status = queue.StatusCompleted
		session.Suggestion = d.Suggestion
		now := time.Now().UTC()
		session.CompletedAt = &now
		session.SetProgress(progress.StageComplete, "Tracks are incompatible, no mix rendered", 1.0)
		r.publish(session, progress.StageComplete, 1.0, "Tracks are incompatible, no mix rendered")
		logger.Info("incompatible verdict, skipping render",
			logging.String("suggestion", d.Suggestion))
		return nil
	}

	sampler := logging.NewProgressSampler(0.1)
	onProgress := func(fraction float64, message string) {
		overall := 0.3 + 0.65*fraction
		session.SetProgress(progress.StageRender, message, overall)
		r.publish(session, progress.StageRender, overall, message)
		if sampler.ShouldLog(overall, progress.StageRender) {
			logger.Info("render progress",
				logging.Float64("progress", overall),
				logging.String("message", message))
		}
	}

	result, err := r.engine.Render(ctx, session.UUID, d, session.TrackAPath, session.TrackBPath, onProgress)
	if err != nil {
		return err
	}

	session.ArtifactPath = result.MP3Path
	session.LosslessPath = result.WAVPath
	session.DurationMS = result.DurationMS
	session.PeakDB = result.PeakDB
	session.AppendWarnings(result.Warnings...)
	session.SetProgress(progress.StageRender, "Render finished", 0.95)
	r.publish(session, progress.StageRender, 0.95, "Render finished")

	logger.Info("render finished",
		logging.String("artifact", result.MP3Path),
		logging.Float64("duration_ms", result.DurationMS),
		logging.Float64("peak_db", result.PeakDB),
		logging.Bool("simplified", result.Simplified))
	return nil
}

// HealthCheck verifies the encode dependency is available.
func (r *Renderer) HealthCheck(ctx context.Context) stage.Health {
	binary := "ffmpeg"
	if r.cfg != nil {
		binary = r.cfg.FFmpegBinary()
	}
	if _, err := exec.LookPath(binary); err != nil {
		return stage.Unhealthy("rendering", fmt.Sprintf("ffmpeg not found at %q", binary))
	}
	return stage.Healthy("rendering")
}

func (r *Renderer) publish(session *queue.Session, stageName string, fraction float64, message string) {
	if r.reporter == nil || session == nil {
		return
	}
	r.reporter.Publish(session.UUID, stageName, fraction, message)
}

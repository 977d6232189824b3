package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeReasoning()
	c.normalizeEffects()
	c.normalizeRender()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SFXLibraryDir) == "" {
		c.Paths.SFXLibraryDir = defaultSFXLibraryDir
	}
	if c.Paths.SFXLibraryDir, err = expandPath(c.Paths.SFXLibraryDir); err != nil {
		return fmt.Errorf("paths.sfx_library_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SFXCacheDir) == "" {
		c.Paths.SFXCacheDir = defaultSFXCacheDir
	}
	if c.Paths.SFXCacheDir, err = expandPath(c.Paths.SFXCacheDir); err != nil {
		return fmt.Errorf("paths.sfx_cache_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeReasoning() {
	if c.Reasoning.APIKey == "" {
		if value, ok := os.LookupEnv("SEGUE_REASONING_API_KEY"); ok {
			c.Reasoning.APIKey = value
		}
	}
	c.Reasoning.APIKey = strings.TrimSpace(c.Reasoning.APIKey)
	c.Reasoning.BaseURL = strings.TrimSpace(c.Reasoning.BaseURL)
	if c.Reasoning.BaseURL == "" {
		c.Reasoning.BaseURL = defaultReasoningBaseURL
	}
	c.Reasoning.Model = strings.TrimSpace(c.Reasoning.Model)
	if c.Reasoning.Model == "" {
		c.Reasoning.Model = defaultReasoningModel
	}
	if c.Reasoning.TimeoutSeconds <= 0 {
		c.Reasoning.TimeoutSeconds = defaultReasoningTimeoutSeconds
	}
}

func (c *Config) normalizeEffects() {
	if c.Effects.APIKey == "" {
		if value, ok := os.LookupEnv("SEGUE_EFFECTS_API_KEY"); ok {
			c.Effects.APIKey = strings.TrimSpace(value)
		}
	}
	c.Effects.APIKey = strings.TrimSpace(c.Effects.APIKey)
	c.Effects.BaseURL = strings.TrimSpace(c.Effects.BaseURL)
	if c.Effects.TimeoutSeconds <= 0 {
		c.Effects.TimeoutSeconds = defaultEffectsTimeoutSeconds
	}
}

func (c *Config) normalizeRender() {
	if c.Render.SampleRate <= 0 {
		c.Render.SampleRate = defaultSampleRate
	}
	c.Render.MP3Bitrate = strings.TrimSpace(c.Render.MP3Bitrate)
	if c.Render.MP3Bitrate == "" {
		c.Render.MP3Bitrate = defaultMP3Bitrate
	}
	if c.Render.PeakCeiling == 0 {
		c.Render.PeakCeiling = defaultPeakCeilingDB
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.WorkerCount <= 0 {
		c.Workflow.WorkerCount = defaultWorkerCount
	}
	if c.Workflow.WorkerCount > runtime.GOMAXPROCS(0) {
		c.Workflow.WorkerCount = runtime.GOMAXPROCS(0)
	}
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.RetentionHours <= 0 {
		c.Workflow.RetentionHours = defaultRetentionHours
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

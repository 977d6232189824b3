package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.StagingDir == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	return nil
}

func (c *Config) validateRender() error {
	switch c.Render.SampleRate {
	case 22050, 44100, 48000:
	default:
		return fmt.Errorf("render.sample_rate %d is unsupported (use 22050, 44100, or 48000)", c.Render.SampleRate)
	}
	if c.Render.PeakCeiling > 0 {
		return errors.New("render.peak_ceiling_db must be zero or negative dBFS")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.WorkerCount < 1 {
		return errors.New("workflow.worker_count must be at least 1")
	}
	if c.Workflow.RetentionHours < 1 {
		return errors.New("workflow.retention_hours must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q is unsupported (use console or json)", c.Logging.Format)
	}
	return nil
}

// ReasoningConfig contains the connection settings handed to the reasoning
// service client.
type ReasoningConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// GetReasoning returns the reasoning service connection settings.
func (c *Config) GetReasoning() ReasoningConfig {
	return ReasoningConfig{
		APIKey:         c.Reasoning.APIKey,
		BaseURL:        c.Reasoning.BaseURL,
		Model:          c.Reasoning.Model,
		TimeoutSeconds: c.Reasoning.TimeoutSeconds,
	}
}

package config

const (
	defaultStagingDir       = "~/.local/share/segue/staging"
	defaultOutputDir        = "~/.local/share/segue/output"
	defaultLogDir           = "~/.local/share/segue/logs"
	defaultSFXLibraryDir    = "~/.local/share/segue/sfx_library"
	defaultSFXCacheDir      = "~/.cache/segue/sfx"
	defaultAPIBind          = "127.0.0.1:7512"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultReasoningBaseURL = "https://openrouter.ai/api/v1/chat/completions"
	defaultReasoningModel   = "google/gemini-3-flash-preview"

	// Hard deadline for the external reasoning call; on expiry the
	// dispatcher abandons the request and plans deterministically.
	defaultReasoningTimeoutSeconds = 12
	// Hard deadline for sound-effect generation before the library
	// fallback file is used instead.
	defaultEffectsTimeoutSeconds = 8

	defaultSampleRate         = 44100
	defaultMP3Bitrate         = "320k"
	defaultPeakCeilingDB      = -1.0
	defaultWorkerCount        = 2
	defaultQueuePollInterval  = 2
	defaultErrorRetryInterval = 5
	defaultRetentionHours     = 24
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir:    defaultStagingDir,
			OutputDir:     defaultOutputDir,
			LogDir:        defaultLogDir,
			SFXLibraryDir: defaultSFXLibraryDir,
			SFXCacheDir:   defaultSFXCacheDir,
			APIBind:       defaultAPIBind,
		},
		Reasoning: Reasoning{
			BaseURL:        defaultReasoningBaseURL,
			Model:          defaultReasoningModel,
			TimeoutSeconds: defaultReasoningTimeoutSeconds,
		},
		Effects: Effects{
			Enabled:        true,
			TimeoutSeconds: defaultEffectsTimeoutSeconds,
		},
		Render: Render{
			SampleRate:   defaultSampleRate,
			MP3Bitrate:   defaultMP3Bitrate,
			PeakCeiling:  defaultPeakCeilingDB,
			KeepLossless: true,
		},
		Workflow: Workflow{
			WorkerCount:        defaultWorkerCount,
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			RetentionHours:     defaultRetentionHours,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

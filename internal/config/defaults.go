package config

const (
	defaultConfigPath                 = "~/.config/platewatch/config.toml"
	defaultDataDir                    = "~/.local/share/platewatch"
	defaultLogDir                     = "~/.local/share/platewatch/logs"
	defaultCollageDir                 = "~/.local/share/platewatch/collages"
	defaultResultsDir                 = "~/.local/share/platewatch/results"
	defaultSensitivity                = "HIGH"
	defaultCollageSize                = 9
	defaultCollageRows                = 3
	defaultCollageCols                = 3
	defaultTileSize                   = 400
	defaultIdleTimeoutSeconds         = 1.5
	defaultGoldenSharpnessFloor       = 50.0
	defaultTrustConfidence            = 0.85
	defaultTrustSharpness             = 100.0
	defaultSignatureInterval          = 15
	defaultRebatchInterval            = 100
	defaultTuneIntervalFrames         = 500
	defaultActiveWindowSeconds        = 2.0
	defaultFrameStride                = 1
	defaultJPEGQuality                = 90
	defaultThresholdFloor             = 0.10
	defaultThresholdCeiling           = 0.60
	defaultThresholdStep              = 0.05
	defaultThresholdLowDensity        = 0.05
	defaultThresholdHighDensity       = 0.5
	defaultVisionBaseURL              = "https://openrouter.ai/api/v1/chat/completions"
	defaultVisionModel                = "google/gemini-2.5-flash"
	defaultVisionReferer              = "https://github.com/platewatch/platewatch"
	defaultVisionTitle                = "platewatch forensic batch"
	defaultVisionTimeoutSeconds       = 60
	defaultVisionMinIntervalMS        = 1000
	defaultVisionMaxCallsPerVideo     = 50
	defaultVisionRetryMaxAttempts     = 3
	defaultVisionCostPerBatch         = 0.5
	defaultChunkDurationMinutes       = 15
	defaultChunkOverlapSeconds        = 5
	defaultWorkflowPollInterval       = 5
	defaultWorkflowErrorRetryInterval = 10
	defaultWorkflowHeartbeatInterval  = 15
	defaultWorkflowHeartbeatTimeout   = 120
	defaultLogFormat                  = "console"
	defaultLogLevel                   = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			CollageDir: defaultCollageDir,
			ResultsDir: defaultResultsDir,
		},
		Pipeline: Pipeline{
			Sensitivity:          defaultSensitivity,
			CollageSize:          defaultCollageSize,
			CollageRows:          defaultCollageRows,
			CollageCols:          defaultCollageCols,
			TileSize:             defaultTileSize,
			IdleTimeoutSeconds:   defaultIdleTimeoutSeconds,
			GoldenSharpnessFloor: defaultGoldenSharpnessFloor,
			TrustConfidence:      defaultTrustConfidence,
			TrustSharpness:       defaultTrustSharpness,
			SignatureInterval:    defaultSignatureInterval,
			RebatchInterval:      defaultRebatchInterval,
			TuneIntervalFrames:   defaultTuneIntervalFrames,
			ActiveWindowSeconds:  defaultActiveWindowSeconds,
			FrameStride:          defaultFrameStride,
			JPEGQuality:          defaultJPEGQuality,
		},
		Threshold: Threshold{
			Floor:       defaultThresholdFloor,
			Ceiling:     defaultThresholdCeiling,
			Step:        defaultThresholdStep,
			LowDensity:  defaultThresholdLowDensity,
			HighDensity: defaultThresholdHighDensity,
		},
		Vision: Vision{
			Enabled:          true,
			BaseURL:          defaultVisionBaseURL,
			Model:            defaultVisionModel,
			Referer:          defaultVisionReferer,
			Title:            defaultVisionTitle,
			TimeoutSeconds:   defaultVisionTimeoutSeconds,
			MinIntervalMS:    defaultVisionMinIntervalMS,
			MaxCallsPerVideo: defaultVisionMaxCallsPerVideo,
			RetryMaxAttempts: defaultVisionRetryMaxAttempts,
			CostPerBatch:     defaultVisionCostPerBatch,
		},
		Chunking: Chunking{
			Enabled:         true,
			DurationMinutes: defaultChunkDurationMinutes,
			OverlapSeconds:  defaultChunkOverlapSeconds,
			Parallel:        true,
		},
		Workflow: Workflow{
			PollInterval:       defaultWorkflowPollInterval,
			ErrorRetryInterval: defaultWorkflowErrorRetryInterval,
			HeartbeatInterval:  defaultWorkflowHeartbeatInterval,
			HeartbeatTimeout:   defaultWorkflowHeartbeatTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

package classifier

import (
	"time"

	"platewatch/internal/config"
	"platewatch/internal/services/vision"
)

// VisionSettings is the resolved classifier configuration.
type VisionSettings struct {
	Enabled          bool
	Client           vision.Config
	RetryMaxAttempts int
	MinInterval      time.Duration
	Rows             int
	Cols             int
}

// SettingsFromConfig extracts VisionSettings from cfg.
func SettingsFromConfig(cfg *config.Config) VisionSettings {
	vc := cfg.VisionClient()
	return VisionSettings{
		Enabled: cfg.Vision.Enabled,
		Client: vision.Config{
			APIKey:         vc.APIKey,
			BaseURL:        vc.BaseURL,
			Model:          vc.Model,
			Referer:        vc.Referer,
			Title:          vc.Title,
			TimeoutSeconds: vc.TimeoutSeconds,
		},
		RetryMaxAttempts: vc.RetryMaxAttempts,
		MinInterval:      time.Duration(cfg.Vision.MinIntervalMS) * time.Millisecond,
		Rows:             cfg.Pipeline.CollageRows,
		Cols:             cfg.Pipeline.CollageCols,
	}
}

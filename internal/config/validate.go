package config

import (
	"errors"
	"fmt"
)

var validSensitivities = map[string]struct{}{
	"HIGH":     {},
	"BALANCED": {},
	"LOW":      {},
}

var validLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateThreshold(); err != nil {
		return err
	}
	if err := c.validateVision(); err != nil {
		return err
	}
	if err := c.validateChunking(); err != nil {
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

func (c *Config) validatePipeline() error {
	p := c.Pipeline
	if _, ok := validSensitivities[p.Sensitivity]; !ok {
		return fmt.Errorf("pipeline.sensitivity must be HIGH, BALANCED, or LOW (got %q)", p.Sensitivity)
	}
	if p.CollageSize > p.CollageRows*p.CollageCols {
		return fmt.Errorf("pipeline.collage_size %d exceeds the %dx%d grid", p.CollageSize, p.CollageRows, p.CollageCols)
	}
	if p.IdleTimeoutSeconds <= 0 {
		return errors.New("pipeline.idle_timeout_seconds must be positive")
	}
	if p.GoldenSharpnessFloor < 0 {
		return errors.New("pipeline.golden_sharpness_floor must be non-negative")
	}
	if p.TrustConfidence < 0 || p.TrustConfidence > 1 {
		return errors.New("pipeline.trust_confidence must be between 0 and 1")
	}
	if p.TrustSharpness < 0 {
		return errors.New("pipeline.trust_sharpness must be non-negative")
	}
	if p.SignatureInterval <= 0 {
		return errors.New("pipeline.signature_interval must be positive")
	}
	if p.RebatchInterval <= 0 {
		return errors.New("pipeline.rebatch_interval must be positive")
	}
	if p.TuneIntervalFrames <= 0 {
		return errors.New("pipeline.tune_interval_frames must be positive")
	}
	if p.ActiveWindowSeconds <= 0 {
		return errors.New("pipeline.active_window_seconds must be positive")
	}
	if p.MinDisplacement < 0 {
		return errors.New("pipeline.min_displacement must be non-negative")
	}
	if p.JPEGQuality > 100 {
		return errors.New("pipeline.jpeg_quality must be between 1 and 100")
	}
	return nil
}

func (c *Config) validateThreshold() error {
	t := c.Threshold
	if t.Floor < 0 || t.Ceiling > 1 || t.Floor >= t.Ceiling {
		return fmt.Errorf("threshold bounds invalid: floor %.2f ceiling %.2f", t.Floor, t.Ceiling)
	}
	if t.Step <= 0 {
		return errors.New("threshold.step must be positive")
	}
	if t.LowDensity < 0 || t.HighDensity <= t.LowDensity {
		return errors.New("threshold.high_density must exceed threshold.low_density")
	}
	return nil
}

func (c *Config) validateVision() error {
	v := c.Vision
	if v.MinIntervalMS < 0 {
		return errors.New("vision.min_interval_ms must be non-negative")
	}
	if v.MaxCallsPerVideo < 0 {
		return errors.New("vision.max_calls_per_video must be non-negative")
	}
	if v.CostPerBatch < 0 {
		return errors.New("vision.cost_per_batch must be non-negative")
	}
	return nil
}

func (c *Config) validateChunking() error {
	ch := c.Chunking
	if !ch.Enabled {
		return nil
	}
	if ch.DurationMinutes <= 0 {
		return errors.New("chunking.duration_minutes must be positive")
	}
	if ch.OverlapSeconds < 0 {
		return errors.New("chunking.overlap_seconds must be non-negative")
	}
	if ch.OverlapSeconds >= ch.DurationMinutes*60 {
		return errors.New("chunking.overlap_seconds must be shorter than the chunk duration")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	w := c.Workflow
	if w.PollInterval <= 0 {
		return errors.New("workflow.poll_interval must be positive")
	}
	if w.ErrorRetryInterval <= 0 {
		return errors.New("workflow.error_retry_interval must be positive")
	}
	if w.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if w.HeartbeatTimeout <= w.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must exceed workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	if _, ok := validLogLevels[c.Logging.Level]; !ok {
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	for component, level := range c.Logging.ComponentOverrides {
		if _, ok := validLogLevels[level]; !ok {
			return fmt.Errorf("logging.component_overrides.%s: level %q is not recognized", component, level)
		}
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var visionKeyEnv = []string{"PLATEWATCH_VISION_API_KEY", "OPENROUTER_API_KEY", "GEMINI_API_KEY"}

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePipeline()
	c.normalizeVision()
	c.normalizeChunking()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CollageDir) == "" {
		c.Paths.CollageDir = filepath.Join(c.Paths.DataDir, "collages")
	}
	if c.Paths.CollageDir, err = expandPath(c.Paths.CollageDir); err != nil {
		return fmt.Errorf("paths.collage_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ResultsDir) == "" {
		c.Paths.ResultsDir = filepath.Join(c.Paths.DataDir, "results")
	}
	if c.Paths.ResultsDir, err = expandPath(c.Paths.ResultsDir); err != nil {
		return fmt.Errorf("paths.results_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePipeline() {
	c.Pipeline.Sensitivity = strings.ToUpper(strings.TrimSpace(c.Pipeline.Sensitivity))
	if c.Pipeline.Sensitivity == "" {
		c.Pipeline.Sensitivity = defaultSensitivity
	}
	if c.Pipeline.CollageRows <= 0 {
		c.Pipeline.CollageRows = defaultCollageRows
	}
	if c.Pipeline.CollageCols <= 0 {
		c.Pipeline.CollageCols = defaultCollageCols
	}
	if c.Pipeline.CollageSize <= 0 {
		c.Pipeline.CollageSize = c.Pipeline.CollageRows * c.Pipeline.CollageCols
	}
	if c.Pipeline.TileSize <= 0 {
		c.Pipeline.TileSize = defaultTileSize
	}
	if c.Pipeline.FrameStride <= 0 {
		c.Pipeline.FrameStride = defaultFrameStride
	}
	if c.Pipeline.JPEGQuality <= 0 {
		c.Pipeline.JPEGQuality = defaultJPEGQuality
	}
}

func (c *Config) normalizeVision() {
	c.Vision.APIKey = strings.TrimSpace(c.Vision.APIKey)
	if c.Vision.APIKey == "" {
		for _, name := range visionKeyEnv {
			if value, ok := os.LookupEnv(name); ok && strings.TrimSpace(value) != "" {
				c.Vision.APIKey = strings.TrimSpace(value)
				break
			}
		}
	}
	c.Vision.BaseURL = strings.TrimSpace(c.Vision.BaseURL)
	if c.Vision.BaseURL == "" {
		c.Vision.BaseURL = defaultVisionBaseURL
	}
	c.Vision.Model = strings.TrimSpace(c.Vision.Model)
	if c.Vision.Model == "" {
		c.Vision.Model = defaultVisionModel
	}
	c.Vision.Referer = strings.TrimSpace(c.Vision.Referer)
	c.Vision.Title = strings.TrimSpace(c.Vision.Title)
	if c.Vision.TimeoutSeconds <= 0 {
		c.Vision.TimeoutSeconds = defaultVisionTimeoutSeconds
	}
	if c.Vision.RetryMaxAttempts <= 0 {
		c.Vision.RetryMaxAttempts = 1
	}
}

func (c *Config) normalizeChunking() {
	if c.Chunking.MaxWorkers < 0 {
		c.Chunking.MaxWorkers = 0
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
	if len(c.Logging.ComponentOverrides) > 0 {
		normalized := make(map[string]string, len(c.Logging.ComponentOverrides))
		for component, level := range c.Logging.ComponentOverrides {
			key := strings.ToLower(strings.TrimSpace(component))
			if key == "" {
				continue
			}
			normalized[key] = strings.ToLower(strings.TrimSpace(level))
		}
		c.Logging.ComponentOverrides = normalized
	}
}

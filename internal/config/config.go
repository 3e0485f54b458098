package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	CollageDir string `toml:"collage_dir"`
	ResultsDir string `toml:"results_dir"`
}

// Pipeline contains per-run tracking, admission, and batching settings.
type Pipeline struct {
	Sensitivity          string  `toml:"sensitivity"`
	CollageSize          int     `toml:"collage_size"`
	CollageRows          int     `toml:"collage_rows"`
	CollageCols          int     `toml:"collage_cols"`
	TileSize             int     `toml:"tile_size"`
	IdleTimeoutSeconds   float64 `toml:"idle_timeout_seconds"`
	GoldenSharpnessFloor float64 `toml:"golden_sharpness_floor"`
	TrustConfidence      float64 `toml:"trust_confidence"`
	TrustSharpness       float64 `toml:"trust_sharpness"`
	SignatureInterval    int     `toml:"signature_interval"`
	RebatchInterval      int     `toml:"rebatch_interval"`
	TuneIntervalFrames   int     `toml:"tune_interval_frames"`
	ActiveWindowSeconds  float64 `toml:"active_window_seconds"`
	MinDisplacement      float64 `toml:"min_displacement"`
	FrameStride          int     `toml:"frame_stride"`
	JPEGQuality          int     `toml:"jpeg_quality"`
}

// Threshold contains the bounds for adaptive detector-threshold tuning.
type Threshold struct {
	Floor       float64 `toml:"floor"`
	Ceiling     float64 `toml:"ceiling"`
	Step        float64 `toml:"step"`
	LowDensity  float64 `toml:"low_density"`
	HighDensity float64 `toml:"high_density"`
}

// Vision contains the external batch classifier connection and quota settings.
type Vision struct {
	Enabled          bool    `toml:"enabled"`
	APIKey           string  `toml:"api_key"`
	BaseURL          string  `toml:"base_url"`
	Model            string  `toml:"model"`
	Referer          string  `toml:"referer"`
	Title            string  `toml:"title"`
	TimeoutSeconds   int     `toml:"timeout_seconds"`
	MinIntervalMS    int     `toml:"min_interval_ms"`
	MaxCallsPerVideo int     `toml:"max_calls_per_video"`
	RetryMaxAttempts int     `toml:"retry_max_attempts"`
	CostPerBatch     float64 `toml:"cost_per_batch"`
}

// Chunking controls how long videos are split into overlapping segments.
type Chunking struct {
	Enabled         bool `toml:"enabled"`
	DurationMinutes int  `toml:"duration_minutes"`
	OverlapSeconds  int  `toml:"overlap_seconds"`
	Parallel        bool `toml:"parallel"`
	MaxWorkers      int  `toml:"max_workers"`
}

// Workflow contains configuration for daemon timing and intervals.
type Workflow struct {
	PollInterval       int `toml:"poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format             string            `toml:"format"`
	Level              string            `toml:"level"`
	ComponentOverrides map[string]string `toml:"component_overrides"`
}

// Config encapsulates all configuration values for platewatch.
//
// Configuration sections by subsystem:
//   - Paths: data, log, collage, and results directories
//   - Pipeline: tracking, admission, and batching knobs
//   - Threshold: adaptive detector-threshold bounds
//   - Vision: external batch classifier endpoint, rate limit, and quota
//   - Chunking: long-video segmentation and fan-out
//   - Workflow: daemon polling intervals and heartbeats
//   - Logging: log format, level, and per-component overrides
type Config struct {
	Paths     Paths     `toml:"paths"`
	Pipeline  Pipeline  `toml:"pipeline"`
	Threshold Threshold `toml:"threshold"`
	Vision    Vision    `toml:"vision"`
	Chunking  Chunking  `toml:"chunking"`
	Workflow  Workflow  `toml:"workflow"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	loadEnvFiles(filepath.Dir(resolvedPath))

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadEnvFiles populates unset environment variables from .env files next to
// the config and in the working directory. Existing variables win.
func loadEnvFiles(configDir string) {
	candidates := []string{".env"}
	if configDir != "" {
		candidates = append([]string{filepath.Join(configDir, ".env")}, candidates...)
	}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		_ = godotenv.Load(candidate)
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("platewatch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon and CLI operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.CollageDir, c.Paths.ResultsDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "platewatch.db")
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// VisionConfig contains the resolved classifier connection settings.
type VisionConfig struct {
	APIKey           string
	BaseURL          string
	Model            string
	Referer          string
	Title            string
	TimeoutSeconds   int
	RetryMaxAttempts int
}

// VisionClient returns the trimmed classifier connection settings.
func (c *Config) VisionClient() VisionConfig {
	return VisionConfig{
		APIKey:           strings.TrimSpace(c.Vision.APIKey),
		BaseURL:          strings.TrimSpace(c.Vision.BaseURL),
		Model:            strings.TrimSpace(c.Vision.Model),
		Referer:          strings.TrimSpace(c.Vision.Referer),
		Title:            strings.TrimSpace(c.Vision.Title),
		TimeoutSeconds:   c.Vision.TimeoutSeconds,
		RetryMaxAttempts: c.Vision.RetryMaxAttempts,
	}
}

// ChunkBudgetSeconds returns the duration above which a video is chunked.
func (c *Config) ChunkBudgetSeconds() float64 {
	return float64(c.Chunking.DurationMinutes) * 60
}

package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"platewatch/internal/config"
)

func clearVisionEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"PLATEWATCH_VISION_API_KEY", "OPENROUTER_API_KEY", "GEMINI_API_KEY"} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearVisionEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "platewatch")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "platewatch.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Pipeline.Sensitivity != "HIGH" {
		t.Fatalf("expected HIGH sensitivity by default, got %q", cfg.Pipeline.Sensitivity)
	}
	if cfg.Pipeline.CollageSize != 9 {
		t.Fatalf("expected collage size 9, got %d", cfg.Pipeline.CollageSize)
	}
	if cfg.Vision.MaxCallsPerVideo != 50 {
		t.Fatalf("expected 50 calls per video, got %d", cfg.Vision.MaxCallsPerVideo)
	}
	if cfg.ChunkBudgetSeconds() != 900 {
		t.Fatalf("expected 900s chunk budget, got %v", cfg.ChunkBudgetSeconds())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Paths.CollageDir, cfg.Paths.ResultsDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
	}
}

func TestLoadCustomConfigOverrides(t *testing.T) {
	clearVisionEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(tempHome, "config.toml")
	payload := map[string]any{
		"paths": map[string]any{
			"data_dir": "~/pw",
		},
		"pipeline": map[string]any{
			"sensitivity": "balanced",
		},
		"vision": map[string]any{
			"api_key":             "  secret  ",
			"max_calls_per_video": 3,
		},
		"chunking": map[string]any{
			"parallel":    false,
			"max_workers": 2,
		},
		"logging": map[string]any{
			"format": "JSON",
			"level":  "Debug",
			"component_overrides": map[string]any{
				" Classifier ": "WARN",
			},
		},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config to be loaded from %q, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "pw") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.Paths.LogDir == "" || !strings.HasPrefix(cfg.Paths.LogDir, tempHome) {
		t.Fatalf("expected log dir under home, got %q", cfg.Paths.LogDir)
	}
	if cfg.Pipeline.Sensitivity != "BALANCED" {
		t.Fatalf("expected sensitivity to be upper-cased, got %q", cfg.Pipeline.Sensitivity)
	}
	if cfg.Vision.APIKey != "secret" {
		t.Fatalf("expected trimmed api key, got %q", cfg.Vision.APIKey)
	}
	if cfg.Vision.MaxCallsPerVideo != 3 {
		t.Fatalf("expected max calls 3, got %d", cfg.Vision.MaxCallsPerVideo)
	}
	if cfg.Chunking.Parallel || cfg.Chunking.MaxWorkers != 2 {
		t.Fatalf("unexpected chunking config: %+v", cfg.Chunking)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
	if got := cfg.Logging.ComponentOverrides["classifier"]; got != "warn" {
		t.Fatalf("expected normalized component override, got %q", got)
	}
}

func TestLoadReadsVisionKeyFromEnvFile(t *testing.T) {
	clearVisionEnv(t)
	if err := os.Unsetenv("PLATEWATCH_VISION_API_KEY"); err != nil {
		t.Fatalf("unsetenv: %v", err)
	}
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configDir := filepath.Join(tempHome, "cfg")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	configPath := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(configPath, []byte("[vision]\nenabled = true\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, ".env"), []byte("PLATEWATCH_VISION_API_KEY=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("PLATEWATCH_VISION_API_KEY") })

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Vision.APIKey != "from-dotenv" {
		t.Fatalf("expected key from .env, got %q", cfg.Vision.APIKey)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "unknown sensitivity",
			mutate: func(c *config.Config) { c.Pipeline.Sensitivity = "EXTREME" },
			want:   "pipeline.sensitivity",
		},
		{
			name:   "collage larger than grid",
			mutate: func(c *config.Config) { c.Pipeline.CollageSize = 10 },
			want:   "pipeline.collage_size",
		},
		{
			name:   "trust confidence above one",
			mutate: func(c *config.Config) { c.Pipeline.TrustConfidence = 1.5 },
			want:   "pipeline.trust_confidence",
		},
		{
			name:   "negative trust sharpness",
			mutate: func(c *config.Config) { c.Pipeline.TrustSharpness = -1 },
			want:   "pipeline.trust_sharpness",
		},
		{
			name:   "inverted threshold bounds",
			mutate: func(c *config.Config) { c.Threshold.Floor = 0.7 },
			want:   "threshold bounds",
		},
		{
			name:   "negative quota",
			mutate: func(c *config.Config) { c.Vision.MaxCallsPerVideo = -1 },
			want:   "vision.max_calls_per_video",
		},
		{
			name:   "overlap longer than chunk",
			mutate: func(c *config.Config) { c.Chunking.OverlapSeconds = 900 },
			want:   "chunking.overlap_seconds",
		},
		{
			name:   "heartbeat timeout too short",
			mutate: func(c *config.Config) { c.Workflow.HeartbeatTimeout = 1 },
			want:   "workflow.heartbeat_timeout",
		},
		{
			name:   "bad log format",
			mutate: func(c *config.Config) { c.Logging.Format = "xml" },
			want:   "logging.format",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error to mention %q, got %v", tt.want, err)
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	clearVisionEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(tempHome, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Pipeline.TileSize != 400 {
		t.Fatalf("expected tile size 400, got %d", cfg.Pipeline.TileSize)
	}
}

package testsupport

import (
	"path/filepath"
	"testing"

	"platewatch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The external classifier is disabled unless WithVision is applied.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.CollageDir = filepath.Join(base, "collages")
	cfgVal.Paths.ResultsDir = filepath.Join(base, "results")
	cfgVal.Vision.Enabled = false
	cfgVal.Vision.APIKey = ""
	cfgVal.Vision.MinIntervalMS = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithSensitivity overrides the pipeline sensitivity tier.
func WithSensitivity(tier string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.Sensitivity = tier
	}
}

// WithVision enables the external classifier against baseURL.
func WithVision(baseURL, apiKey string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Vision.Enabled = true
		b.cfg.Vision.BaseURL = baseURL
		b.cfg.Vision.APIKey = apiKey
		b.cfg.Vision.RetryMaxAttempts = 1
	}
}

// WithChunking overrides the chunk duration and overlap.
func WithChunking(minutes, overlapSeconds int, parallel bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Chunking.Enabled = true
		b.cfg.Chunking.DurationMinutes = minutes
		b.cfg.Chunking.OverlapSeconds = overlapSeconds
		b.cfg.Chunking.Parallel = parallel
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

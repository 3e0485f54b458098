package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"platewatch/internal/config"
	"platewatch/internal/testsupport"
	"platewatch/internal/trace"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	for _, name := range []string{"PLATEWATCH_VISION_API_KEY", "OPENROUTER_API_KEY", "GEMINI_API_KEY"} {
		t.Setenv(name, "")
	}

	cfg := testsupport.NewConfig(t)
	cfg.Pipeline.TileSize = 64
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func decodeJSON(t *testing.T, raw string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		t.Fatalf("decode %q: %v", raw, err)
	}
}

// writePlateTrace writes a 30-frame trace with one car carrying plate.
func writePlateTrace(t *testing.T, plate string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "crops"), 0o755); err != nil {
		t.Fatalf("mkdir crops: %v", err)
	}
	testsupport.WriteJPEG(t, filepath.Join(dir, "crops", "car.jpg"), testsupport.CheckerImage(96, 48, 4))

	track := 1
	frames := make([]trace.FrameRecord, 30)
	for i := range frames {
		frames[i] = trace.FrameRecord{Index: i, Timestamp: float64(i) * 0.1, Detections: []trace.DetectionRecord{}}
		if i < 6 {
			frames[i].Detections = append(frames[i].Detections, trace.DetectionRecord{
				BBox:       []float64{10, 10, 106, 58},
				TrackID:    &track,
				Class:      "car",
				Confidence: 0.9,
				Crop:       "crops/car.jpg",
				OCR:        &trace.OCR{Text: plate, Confidence: 0.7},
			})
		}
	}
	return testsupport.WriteTrace(t, dir, frames)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireNotContains(t *testing.T, output, substr string) {
	t.Helper()
	if strings.Contains(output, substr) {
		t.Fatalf("expected %q not to contain %q", output, substr)
	}
}

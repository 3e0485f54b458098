package logging_test

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"platewatch/internal/config"
	"platewatch/internal/logging"
	"platewatch/internal/services"
)

func readJSONLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log file: %v", err)
	}
	defer file.Close()

	var out []map[string]any
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan log file: %v", err)
	}
	return out
}

func findEntry(entries []map[string]any, msg string) map[string]any {
	for _, entry := range entries {
		if entry["msg"] == msg {
			return entry
		}
	}
	return nil
}

func TestNewFromConfigWritesJSONLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("pipeline ready", logging.String("sensitivity", "HIGH"))
	logger.Debug("suppressed at info level")

	entries := readJSONLines(t, filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	entry := findEntry(entries, "pipeline ready")
	if entry == nil {
		t.Fatalf("expected info entry in log file, got %v", entries)
	}
	if entry["level"] != "info" {
		t.Fatalf("expected lower-case level, got %v", entry["level"])
	}
	if entry["sensitivity"] != "HIGH" {
		t.Fatalf("expected sensitivity attr, got %v", entry["sensitivity"])
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatal("expected ts key in JSON entry")
	}
	if findEntry(entries, "suppressed at info level") != nil {
		t.Fatal("debug entry should not be written at info level")
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller", logging.String(logging.FieldComponent, "batching"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	if strings.Contains(text, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", text)
	}
	if !strings.Contains(text, "INFO [batching]") {
		t.Fatalf("expected component prefix, got %q", text)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "debug",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Debug("message with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "logger_test.go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleLoggerRendersVideoSubject(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-subject.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithChunkIndex(services.WithVideoID(context.Background(), 7), 2)
	logging.WithContext(ctx, logger).Info("chunk finished", logging.Int("records", 3))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	if !strings.Contains(text, "Video #7 chunk 2") {
		t.Fatalf("expected video subject in header, got %q", text)
	}
	if !strings.Contains(text, "- records: 3") {
		t.Fatalf("expected records field, got %q", text)
	}
}

func TestWithContextAddsFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithVideoID(context.Background(), 42)
	ctx = services.WithStage(ctx, "pipeline")
	ctx = services.WithRequestID(ctx, "req-1")
	logging.WithContext(ctx, logger).Info("context message")

	entry := findEntry(readJSONLines(t, logPath), "context message")
	if entry == nil {
		t.Fatal("expected context message entry")
	}
	if entry[logging.FieldVideoID] != float64(42) {
		t.Fatalf("expected video_id 42, got %v", entry[logging.FieldVideoID])
	}
	if entry[logging.FieldStage] != "pipeline" {
		t.Fatalf("expected stage, got %v", entry[logging.FieldStage])
	}
	if entry[logging.FieldCorrelationID] != "req-1" {
		t.Fatalf("expected correlation id, got %v", entry[logging.FieldCorrelationID])
	}
}

func TestForComponentAppliesOverride(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Level = "info"
	cfg.Logging.ComponentOverrides = map[string]string{"classifier": "debug"}

	root, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	classifier := logging.ForComponent(root, "classifier", cfg.Logging.ComponentOverrides)
	batching := logging.ForComponent(root, "batching", cfg.Logging.ComponentOverrides)

	classifier.Debug("classifier detail")
	batching.Debug("batching detail")
	root.Debug("root detail")

	entries := readJSONLines(t, filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	entry := findEntry(entries, "classifier detail")
	if entry == nil {
		t.Fatal("expected classifier debug entry to pass the override")
	}
	if entry[logging.FieldComponent] != "classifier" {
		t.Fatalf("expected component attr, got %v", entry[logging.FieldComponent])
	}
	if findEntry(entries, "batching detail") != nil {
		t.Fatal("batching debug should be filtered at the global level")
	}
	if findEntry(entries, "root detail") != nil {
		t.Fatal("root debug should be filtered at the global level")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.WarnWithContext(logger, "quota exhausted", "quota_exhausted", logging.String(logging.FieldImpact, "remaining batches skip the classifier"))

	entry := findEntry(readJSONLines(t, logPath), "quota exhausted")
	if entry == nil {
		t.Fatal("expected warn entry")
	}
	if entry[logging.FieldEventType] != "quota_exhausted" {
		t.Fatalf("expected event type, got %v", entry[logging.FieldEventType])
	}
	if entry[logging.FieldErrorHint] != "check the video events for details" {
		t.Fatalf("expected default hint, got %v", entry[logging.FieldErrorHint])
	}
	if entry[logging.FieldImpact] != "remaining batches skip the classifier" {
		t.Fatalf("expected caller impact preserved, got %v", entry[logging.FieldImpact])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

package main

import (
	"os"
	"path/filepath"
	"testing"

	"platewatch/internal/analytics"
	"platewatch/internal/daemon"
	"platewatch/internal/store"
)

func TestVideoLifecycle(t *testing.T) {
	env := setupCLITestEnv(t)
	tracePath := writePlateTrace(t, "KA05MN4321")

	out, _, err := runCLI(t, []string{"video", "add", tracePath, "--name", "gate cam"}, env.configPath)
	if err != nil {
		t.Fatalf("video add: %v", err)
	}
	requireContains(t, out, "Queued video 1 (gate cam)")

	out, _, err = runCLI(t, []string{"video", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("video list: %v", err)
	}
	requireContains(t, out, "gate cam")
	requireContains(t, out, "PENDING")

	out, _, err = runCLI(t, []string{"process", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	requireContains(t, out, "COMPLETED")
	requireContains(t, out, env.cfg.Paths.ResultsDir)

	out, _, err = runCLI(t, []string{"records", "--plate", "ka05"}, env.configPath)
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	requireContains(t, out, "KA05MN4321")

	out, _, err = runCLI(t, []string{"--json", "records", "--video", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("records --json: %v", err)
	}
	var detections []store.Detection
	decodeJSON(t, out, &detections)
	if len(detections) != 1 || detections[0].TrackKey != "t1" {
		t.Fatalf("unexpected detections: %+v", detections)
	}

	out, _, err = runCLI(t, []string{"events", "1", "--tag", "system"}, env.configPath)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	requireContains(t, out, "Analysis Complete. Found 1 unique vehicles.")

	out, _, err = runCLI(t, []string{"report", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	requireContains(t, out, "Unique vehicles:")
	requireContains(t, out, "MOTORCYCLE")
	requireContains(t, out, "KA05MN4321")

	out, _, err = runCLI(t, []string{"--json", "report", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("report --json: %v", err)
	}
	var stats analytics.Analytics
	decodeJSON(t, out, &stats)
	if stats.TotalVehicles != 1 {
		t.Fatalf("expected 1 vehicle, got %d", stats.TotalVehicles)
	}

	out, _, err = runCLI(t, []string{"--json", "stats"}, env.configPath)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	var summary store.Stats
	decodeJSON(t, out, &summary)
	if summary.TotalVideos != 1 || summary.TotalDetections != 1 || summary.Videos[store.StatusCompleted] != 1 {
		t.Fatalf("unexpected stats: %+v", summary)
	}

	out, _, err = runCLI(t, []string{"video", "remove", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("video remove: %v", err)
	}
	requireContains(t, out, "Removed video 1")

	if _, _, err := runCLI(t, []string{"video", "show", "1"}, env.configPath); err == nil {
		t.Fatal("expected show of removed video to fail")
	}
}

func TestVideoAddRejectsMissingTrace(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"video", "add", filepath.Join(env.baseDir, "missing.jsonl")}, env.configPath)
	if err == nil {
		t.Fatal("expected missing trace to be rejected")
	}
	out, _, err := runCLI(t, []string{"video", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("video list: %v", err)
	}
	requireContains(t, out, "No videos found")
}

func TestVideoRetryRequeuesFailedVideo(t *testing.T) {
	env := setupCLITestEnv(t)
	bad := filepath.Join(env.baseDir, "broken.jsonl")
	if err := os.WriteFile(bad, []byte("{not json\n"), 0o644); err != nil {
		t.Fatalf("write trace: %v", err)
	}
	if _, _, err := runCLI(t, []string{"video", "add", bad}, env.configPath); err != nil {
		t.Fatalf("video add: %v", err)
	}
	if _, _, err := runCLI(t, []string{"process", "1"}, env.configPath); err == nil {
		t.Fatal("expected process to fail on a broken trace")
	}

	out, _, err := runCLI(t, []string{"video", "list", "--status", "failed"}, env.configPath)
	if err != nil {
		t.Fatalf("video list: %v", err)
	}
	requireContains(t, out, "broken")

	out, _, err = runCLI(t, []string{"events", "1", "--errors"}, env.configPath)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	requireContains(t, out, "Processing failed")

	out, _, err = runCLI(t, []string{"video", "retry"}, env.configPath)
	if err != nil {
		t.Fatalf("video retry: %v", err)
	}
	requireContains(t, out, "Requeued 1 video(s)")

	out, _, err = runCLI(t, []string{"video", "list", "--status", "pending"}, env.configPath)
	if err != nil {
		t.Fatalf("video list: %v", err)
	}
	requireContains(t, out, "broken")
}

func TestVideoListRejectsUnknownStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"video", "list", "--status", "archived"}, env.configPath)
	if err == nil {
		t.Fatal("expected unknown status error")
	}
	requireContains(t, err.Error(), "archived")
}

func TestProcessRefusesWhileDaemonHoldsLock(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := env.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	unlock, err := daemon.TryLock(env.cfg)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	t.Cleanup(func() { _ = unlock() })

	_, _, err = runCLI(t, []string{"process", "1"}, env.configPath)
	if err == nil {
		t.Fatal("expected process to refuse while the daemon lock is held")
	}
	requireContains(t, err.Error(), "platewatchd is running")

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Daemon:")
	requireContains(t, out, "[OK] running")
}

func TestRecordsRejectsOutOfRangeConfidence(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"records", "--min-confidence", "1.5"}, env.configPath)
	if err == nil {
		t.Fatal("expected confidence range error")
	}
	requireContains(t, err.Error(), "--min-confidence")
}

func TestLogsShowsTrailingLines(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir logs: %v", err)
	}
	path := filepath.Join(env.cfg.Paths.LogDir, "platewatch.log")
	if err := os.WriteFile(path, []byte("first\nsecond\nthird\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "-n", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireNotContains(t, out, "first")
	requireContains(t, out, "second\nthird\n")
}

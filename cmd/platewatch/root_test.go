package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"platewatch/internal/daemon"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		want       int
		wantStderr string
	}{
		{name: "success", err: nil, want: exitOK},
		{name: "interrupted", err: fmt.Errorf("process video 3: %w", context.Canceled), want: exitInterrupted},
		{name: "daemon busy", err: fmt.Errorf("platewatchd is running: %w", daemon.ErrLocked), want: exitLocked, wantStderr: "platewatchd is running"},
		{name: "failure", err: errors.New("video 9 not found"), want: exitFailure, wantStderr: "video 9 not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			if got := exitCode(tt.err, &stderr); got != tt.want {
				t.Fatalf("exitCode = %d, want %d", got, tt.want)
			}
			if tt.wantStderr == "" && stderr.Len() != 0 {
				t.Fatalf("expected quiet exit, got %q", stderr.String())
			}
			requireContains(t, stderr.String(), tt.wantStderr)
		})
	}
}

func TestExecuteReportsMissingVideo(t *testing.T) {
	env := setupCLITestEnv(t)
	var stderr bytes.Buffer
	code := execute([]string{"--config", env.configPath, "video", "show", "404"}, &stderr)
	if code != exitFailure {
		t.Fatalf("exit code = %d, want %d", code, exitFailure)
	}
	requireContains(t, stderr.String(), "video 404 not found")
}

func TestExecuteProcessWhileDaemonRuns(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := env.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	unlock, err := daemon.TryLock(env.cfg)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	t.Cleanup(func() { _ = unlock() })

	var stderr bytes.Buffer
	if code := execute([]string{"--config", env.configPath, "process", "1"}, &stderr); code != exitLocked {
		t.Fatalf("exit code = %d, want %d (%s)", code, exitLocked, stderr.String())
	}
	requireContains(t, stderr.String(), "queue the video")
}

func TestWriteJSONKeepsPlateText(t *testing.T) {
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)
	if err := writeJSON(cmd, map[string]string{"vehicle": "Tata <Nexon> & trailer"}); err != nil {
		t.Fatalf("writeJSON: %v", err)
	}
	requireContains(t, out.String(), "Tata <Nexon> & trailer")
	if !strings.HasPrefix(out.String(), "{\n  ") {
		t.Fatalf("expected indented output, got %q", out.String())
	}
}

package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"platewatch/internal/config"
	"platewatch/internal/services/vision"
)

// CheckVision verifies that the classifier API is reachable and the key is
// valid. It uses a 30-second timeout and a single attempt. The result is
// optional: without the classifier, batches fall back to local reads.
func CheckVision(ctx context.Context, cfg config.VisionConfig) Result {
	const name = "Vision classifier"
	if cfg.APIKey == "" {
		return Result{Name: name, Optional: true, Detail: "API key missing; batches will fall back to local reads"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := vision.NewClient(vision.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		Referer:        cfg.Referer,
		Title:          cfg.Title,
		TimeoutSeconds: cfg.TimeoutSeconds,
	}, vision.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Optional: true, Detail: summarizeVisionError(err)}
	}
	return Result{Name: name, Passed: true, Optional: true, Detail: "API reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckBinary reports whether command resolves on PATH.
func CheckBinary(name, command, purpose string, optional bool) Result {
	command = strings.TrimSpace(command)
	if command == "" {
		return Result{Name: name, Optional: optional, Detail: "not configured"}
	}
	resolved, err := exec.LookPath(command)
	if err != nil {
		return Result{Name: name, Optional: optional, Detail: fmt.Sprintf("%s not found (%s)", command, purpose)}
	}
	return Result{Name: name, Passed: true, Optional: optional, Detail: resolved}
}

// summarizeVisionError produces a human-readable summary for health check failures.
func summarizeVisionError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (vision API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (vision API unreachable)"
	}
	return err.Error()
}

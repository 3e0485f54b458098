package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"platewatch/internal/config"
	"platewatch/internal/daemon"
	"platewatch/internal/logging"
	"platewatch/internal/store"
	"platewatch/internal/workflow"
)

// PIDFileName is written under the log directory while the daemon runs.
const PIDFileName = "platewatchd.pid"

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the platewatch daemon and blocks until ctx is cancelled or the
// process receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = strings.ToLower(level)
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	pidPath := filepath.Join(cfg.Paths.LogDir, PIDFileName)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return err
	}

	processor := workflow.NewProcessor(cfg, st, logger)
	manager := workflow.NewManager(cfg, st, logger, processor)
	d, err := daemon.New(cfg, st, logger, manager)
	if err != nil {
		st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check configuration, directories, and database access"),
			logging.String(logging.FieldImpact, "no videos will be processed"),
		)
		return err
	}

	<-signalCtx.Done()
	status := d.Status(context.WithoutCancel(signalCtx))
	logger.Info("platewatch daemon shutting down",
		logging.Int("pending", status.Workflow.Stats.Videos[store.StatusPending]),
		logging.Int("completed", status.Workflow.Stats.Videos[store.StatusCompleted]),
		logging.Int("failed", status.Workflow.Stats.Videos[store.StatusFailed]),
		logging.String("last_error", status.Workflow.LastError),
		logging.String(logging.FieldEventType, "daemon_shutdown"),
	)
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// ReadPID returns the pid recorded by a running daemon, or 0 when none is.
func ReadPID(cfg *config.Config) int {
	data, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, PIDFileName))
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	ffprobe := cfg.FFprobeBinary()
	vision := cfg.VisionClient()
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("vision_enabled", cfg.Vision.Enabled),
		logging.Bool("vision_key_present", vision.APIKey != ""),
		logging.String("vision_model", vision.Model),
		logging.Bool("ffprobe_available", binaryAvailable(ffprobe)),
		logging.String("ffprobe_binary", ffprobe),
		logging.String("sensitivity", cfg.Pipeline.Sensitivity),
		logging.Bool("chunking_enabled", cfg.Chunking.Enabled),
	)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}

package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"platewatch/internal/config"
	"platewatch/internal/logging"
	"platewatch/internal/preflight"
	"platewatch/internal/store"
	"platewatch/internal/workflow"
)

// LockFileName is the single-instance lock under the log directory.
const LockFileName = "platewatchd.lock"

// ErrLocked reports that another daemon or foreground run holds the lock.
var ErrLocked = errors.New("another platewatch daemon instance is already running")

// Daemon coordinates the background processing services and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	workflow *workflow.Manager

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Workflow     workflow.StatusSummary
	DatabasePath string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, wf *workflow.Manager) (*Daemon, error) {
	if cfg == nil || st == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}

	lockPath := LockPath(cfg)
	return &Daemon{
		cfg:      cfg,
		logger:   logger.With(logging.String(logging.FieldComponent, "daemon")),
		store:    st,
		workflow: wf,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// LockPath returns the daemon lock file for cfg.
func LockPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, LockFileName)
}

// TryLock takes the daemon lock for a foreground run. The returned func
// releases it. ErrLocked is returned while a daemon is running.
func TryLock(cfg *config.Config) (func() error, error) {
	lock := flock.New(LockPath(cfg))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return lock.Unlock, nil
}

// Start acquires the daemon lock, runs preflight checks, requeues videos a
// previous process left in flight, and launches the workflow manager.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrLocked
	}

	if err := d.preflight(ctx); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	reset, err := d.store.ResetProcessing(ctx)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("requeue interrupted videos: %w", err)
	}
	if reset > 0 {
		d.logger.Info("requeued interrupted videos",
			logging.Int64("count", reset),
			logging.String(logging.FieldEventType, "videos_requeued"),
		)
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.workflow.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start workflow: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("platewatch daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

func (d *Daemon) preflight(ctx context.Context) error {
	results := preflight.RunAll(ctx, d.cfg)
	for _, r := range results {
		attrs := []logging.Attr{
			logging.String("check", r.Name),
			logging.Bool("passed", r.Passed),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldEventType, "preflight_check"),
		}
		if r.Passed {
			d.logger.Debug("preflight check passed", logging.Args(attrs...)...)
			continue
		}
		d.logger.Warn("preflight check failed", logging.Args(attrs...)...)
	}
	if failed := preflight.Failed(results); len(failed) > 0 {
		return fmt.Errorf("preflight: %s: %s", failed[0].Name, failed[0].Detail)
	}
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("platewatch daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		Workflow:     d.workflow.Status(ctx),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
	}
}

package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"platewatch/internal/config"
	"platewatch/internal/logging"
	"platewatch/internal/stage"
	"platewatch/internal/store"
)

const processStage = "process"

// Manager claims pending videos and runs them through a stage handler.
type Manager struct {
	cfg          *config.Config
	store        *store.Store
	logger       *slog.Logger
	handler      stage.Handler
	pollInterval time.Duration
	retryDelay   time.Duration

	heartbeat *HeartbeatMonitor

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastErr   error
	lastVideo *store.Video
}

// NewManager constructs a workflow manager that processes videos with handler.
func NewManager(cfg *config.Config, st *store.Store, logger *slog.Logger, handler stage.Handler) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.ForComponent(logger, "workflow", cfg.Logging.ComponentOverrides)
	return &Manager{
		cfg:          cfg,
		store:        st,
		logger:       logger,
		handler:      handler,
		pollInterval: time.Duration(cfg.Workflow.PollInterval) * time.Second,
		retryDelay:   time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			st,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
	}
}

package workflow

import (
	"context"

	"platewatch/internal/logging"
	"platewatch/internal/stage"
	"platewatch/internal/store"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	LastError   string
	LastVideo   *store.Video
	Stats       store.Stats
	StageHealth stage.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastVideo := m.lastVideo
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read video stats", logging.Error(err))
	}

	summary := StatusSummary{Running: running, Stats: stats}
	if m.handler != nil {
		summary.StageHealth = m.handler.HealthCheck(ctx)
	}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastVideo != nil {
		copy := *lastVideo
		summary.LastVideo = &copy
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastVideo(video *store.Video) {
	m.mu.Lock()
	if video != nil {
		copy := *video
		m.lastVideo = &copy
	} else {
		m.lastVideo = nil
	}
	m.mu.Unlock()
}

package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"platewatch/internal/logging"
	"platewatch/internal/services"
	"platewatch/internal/store"
)

// ProcessOne claims video id and runs it in the foreground, outside the
// polling loop. Videos already owned by a live run are refused.
func (m *Manager) ProcessOne(ctx context.Context, id int64) (*store.Video, error) {
	if m.handler == nil {
		return nil, errors.New("workflow handler not configured")
	}
	video, err := m.store.GetVideo(ctx, id)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, services.Wrap(services.ErrNotFound, "workflow", "process", fmt.Sprintf("video %d", id), nil)
	}
	if video.IsProcessing() {
		return nil, services.Wrap(services.ErrValidation, "workflow", "process",
			fmt.Sprintf("video %d is already being processed", id), nil)
	}
	if err := m.store.SetVideoStatus(ctx, id, store.StatusProcessing, ""); err != nil {
		return nil, err
	}
	video.Status = store.StatusProcessing
	video.ErrorMessage = ""

	runErr := m.process(ctx, video)
	final, err := m.store.GetVideo(context.WithoutCancel(ctx), id)
	if err != nil {
		return nil, errors.Join(runErr, err)
	}
	return final, runErr
}

func (m *Manager) process(ctx context.Context, video *store.Video) error {
	requestID := uuid.NewString()
	stageCtx := withVideoContext(ctx, video, requestID)
	logger := logging.WithContext(stageCtx, m.logger)
	m.setLastVideo(video)

	stageStart := time.Now()
	logger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("video_name", strings.TrimSpace(video.Name)),
		logging.String("source_file", strings.TrimSpace(video.SourcePath)),
	)

	if err := m.handler.Prepare(stageCtx, video); err != nil {
		return m.finish(stageCtx, logger, video, err, stageStart)
	}
	execErr := m.executeWithHeartbeat(stageCtx, video)
	return m.finish(stageCtx, logger, video, execErr, stageStart)
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, video *store.Video) error {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, video.ID)

	execErr := m.handler.Execute(ctx, video)
	hbCancel()
	hbWG.Wait()
	return execErr
}

func (m *Manager) finish(ctx context.Context, logger *slog.Logger, video *store.Video, runErr error, started time.Time) error {
	persistCtx := context.WithoutCancel(ctx)
	switch services.FailureStatus(runErr) {
	case store.StatusPending:
		logger.Info("stage interrupted by shutdown",
			logging.String(logging.FieldEventType, "stage_interrupted"),
			logging.Duration("stage_duration", time.Since(started)),
		)
		if err := m.store.SetVideoStatus(persistCtx, video.ID, store.StatusPending, store.DaemonStopReason); err != nil {
			logger.Error("failed to requeue interrupted video", logging.Error(err))
		}
		return runErr
	case store.StatusFailed:
		m.handleStageFailure(persistCtx, logger, video, runErr)
		m.setLastError(runErr)
		return runErr
	}

	video.Status = store.StatusCompleted
	video.ErrorMessage = ""
	video.LastHeartbeat = nil
	if err := m.store.UpdateVideo(persistCtx, video); err != nil {
		wrapped := fmt.Errorf("persist stage result: %w", err)
		logger.Error("failed to persist stage result", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}
	logger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(video.Status)),
		logging.String("report_path", video.ReportPath),
		logging.Duration("stage_duration", time.Since(started)),
	)
	m.setLastVideo(video)
	return nil
}

func withVideoContext(ctx context.Context, video *store.Video, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if video != nil {
		ctx = services.WithVideoID(ctx, video.ID)
	}
	ctx = services.WithStage(ctx, processStage)
	if requestID != "" {
		ctx = services.WithRequestID(ctx, requestID)
	}
	return ctx
}

package workflow

import (
	"context"
	"log/slog"
	"strings"

	"platewatch/internal/audit"
	"platewatch/internal/logging"
	"platewatch/internal/store"
)

func (m *Manager) handleStageFailure(ctx context.Context, logger *slog.Logger, video *store.Video, stageErr error) {
	message := failureMessage(stageErr)
	video.Status = store.StatusFailed
	video.ErrorMessage = message
	video.LastHeartbeat = nil

	logger.Error("stage failed", logging.Args(
		logging.String("resolved_status", string(store.StatusFailed)),
		logging.String("error_message", message),
		logging.Alert("stage_failure"),
		logging.String(logging.FieldErrorHint, "inspect the video events and retry once the input is fixed"),
		logging.Error(stageErr),
		logging.String(logging.FieldEventType, "stage_failure"),
	)...)

	audit.NewStoreRecorder(m.store, logger).Record(ctx, audit.Event{
		Tag:     audit.TagError,
		Message: "Processing failed: " + message,
		IsError: true,
	})

	if err := m.store.UpdateVideo(ctx, video); err != nil {
		logger.Error("failed to persist stage failure", logging.Error(err))
	}
	m.setLastVideo(video)
}

func failureMessage(err error) string {
	if err == nil {
		return processStage + " failed without error detail"
	}
	if message := strings.TrimSpace(err.Error()); message != "" {
		return message
	}
	return processStage + " failed"
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const videoColumns = "id, name, source_path, media_path, status, error_message, duration_seconds, analytics_json, report_path, created_at, updated_at, last_heartbeat"

func scanVideo(scanner rowScanner) (*Video, error) {
	var (
		video        Video
		mediaPath    sql.NullString
		statusStr    string
		errorMessage sql.NullString
		analytics    sql.NullString
		reportPath   sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
		heartbeatRaw sql.NullString
	)
	if err := scanner.Scan(
		&video.ID,
		&video.Name,
		&video.SourcePath,
		&mediaPath,
		&statusStr,
		&errorMessage,
		&video.DurationSeconds,
		&analytics,
		&reportPath,
		&createdRaw,
		&updatedRaw,
		&heartbeatRaw,
	); err != nil {
		return nil, err
	}
	video.MediaPath = mediaPath.String
	video.Status = Status(statusStr)
	video.ErrorMessage = errorMessage.String
	video.AnalyticsJSON = analytics.String
	video.ReportPath = reportPath.String
	video.CreatedAt = parseNullTime(createdRaw)
	video.UpdatedAt = parseNullTime(updatedRaw)
	if heartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(heartbeatRaw.String); err == nil {
			video.LastHeartbeat = &heartbeat
		}
	}
	return &video, nil
}

// NewVideo registers a trace for processing. The name defaults to the trace
// file name without its extension.
func (s *Store) NewVideo(ctx context.Context, name, sourcePath, mediaPath string) (*Video, error) {
	sourcePath = strings.TrimSpace(sourcePath)
	if sourcePath == "" {
		return nil, errors.New("new video: source path required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = inferNameFromPath(sourcePath)
	}
	timestamp := nowString()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO videos (name, source_path, media_path, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		name,
		sourcePath,
		nullableString(strings.TrimSpace(mediaPath)),
		StatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert video: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetVideo(ctx, id)
}

// GetVideo fetches a video by identifier.
func (s *Store) GetVideo(ctx context.Context, id int64) (*Video, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	return video, nil
}

// ListVideos returns videos filtered by status set (or all videos when no status is provided).
func (s *Store) ListVideos(ctx context.Context, statuses ...Status) ([]*Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}
	return videos, rows.Err()
}

// NextPending atomically claims the oldest pending video, moving it to
// PROCESSING with a fresh heartbeat. It returns nil when nothing is pending.
func (s *Store) NextPending(ctx context.Context) (*Video, error) {
	ctx = ensureContext(ctx)
	timestamp := nowString()
	var video *Video
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(
			ctx,
			`UPDATE videos
             SET status = ?, error_message = NULL, last_heartbeat = ?, updated_at = ?
             WHERE id = (SELECT id FROM videos WHERE status = ? ORDER BY created_at, id LIMIT 1)
             RETURNING `+videoColumns,
			StatusProcessing,
			timestamp,
			timestamp,
			StatusPending,
		)
		var scanErr error
		video, scanErr = scanVideo(row)
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim next video: %w", err)
	}
	return video, nil
}

// UpdateVideo persists changes to an existing video.
func (s *Store) UpdateVideo(ctx context.Context, video *Video) error {
	if video == nil {
		return errors.New("video is nil")
	}
	video.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE videos
         SET name = ?, source_path = ?, media_path = ?, status = ?, error_message = ?,
             duration_seconds = ?, analytics_json = ?, report_path = ?, updated_at = ?, last_heartbeat = ?
         WHERE id = ?`,
		video.Name,
		video.SourcePath,
		nullableString(video.MediaPath),
		video.Status,
		nullableString(video.ErrorMessage),
		video.DurationSeconds,
		nullableString(video.AnalyticsJSON),
		nullableString(video.ReportPath),
		formatTime(video.UpdatedAt),
		nullableTime(video.LastHeartbeat),
		video.ID,
	); err != nil {
		return fmt.Errorf("update video: %w", err)
	}
	return nil
}

// SetVideoStatus records a terminal or requeued status. Leaving PROCESSING
// clears the heartbeat.
func (s *Store) SetVideoStatus(ctx context.Context, id int64, status Status, message string) error {
	if _, ok := statusSet[status]; !ok {
		return fmt.Errorf("set video status: unknown status %q", status)
	}
	var heartbeat any
	if status == StatusProcessing {
		heartbeat = nowString()
	}
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE videos SET status = ?, error_message = ?, last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		status,
		nullableString(strings.TrimSpace(message)),
		heartbeat,
		nowString(),
		id,
	); err != nil {
		return fmt.Errorf("set video status: %w", err)
	}
	return nil
}

// RemoveVideo deletes a video together with its chunks, detections, batches, and events.
func (s *Store) RemoveVideo(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM videos WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete video: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func inferNameFromPath(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(name))
	if name == "" {
		return "Video"
	}
	return name
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight video.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := nowString()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE videos SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
		now,
		now,
		id,
		StatusProcessing,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStale returns PROCESSING videos whose heartbeat is older than cutoff
// to PENDING so another run can claim them.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE videos
         SET status = ?, last_heartbeat = NULL, updated_at = ?
         WHERE status = ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		StatusPending,
		nowString(),
		StatusProcessing,
		formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale videos: %w", err)
	}
	return res.RowsAffected()
}

// ResetProcessing returns every PROCESSING video to PENDING. The daemon calls
// it on start because no run can survive a restart.
func (s *Store) ResetProcessing(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE videos SET status = ?, last_heartbeat = NULL, updated_at = ? WHERE status = ?`,
		StatusPending,
		nowString(),
		StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset processing videos: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed videos back to pending for reprocessing. With no
// ids every failed video is retried. Existing detections are kept so a rerun
// upserts over them.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	query := `UPDATE videos SET status = ?, error_message = NULL, updated_at = ? WHERE status = ?`
	args := []any{StatusPending, nowString(), StatusFailed}
	if len(ids) > 0 {
		query += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed videos: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns video counts by status plus detection and batch totals.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	stats := Stats{Videos: make(map[Status]int)}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM videos GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("video stats: %w", err)
	}
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return stats, err
		}
		stats.Videos[status] = count
		stats.TotalVideos += count
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return stats, err
	}
	rows.Close()

	row := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1),
                COALESCE(SUM(CASE WHEN plate_number = 'NO PLATE' OR recheck_status = 'failed' THEN 1 ELSE 0 END), 0)
         FROM detections`,
	)
	if err := row.Scan(&stats.TotalDetections, &stats.FailedDetections); err != nil {
		return stats, fmt.Errorf("detection stats: %w", err)
	}

	row = s.db.QueryRowContext(ctx, `SELECT COUNT(1), COALESCE(SUM(cost_estimate), 0) FROM batches`)
	if err := row.Scan(&stats.TotalBatches, &stats.CostEstimate); err != nil {
		return stats, fmt.Errorf("batch stats: %w", err)
	}
	return stats, nil
}

var expectedTables = []string{"videos", "chunks", "detections", "batches", "events"}

// CheckHealth returns diagnostic information about the database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}
	if s.path == "" {
		return health, errors.New("database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping database: %w", err)
	}
	health.DatabaseReadable = true

	if version, dirty, err := s.SchemaVersion(); err == nil {
		health.SchemaVersion = version
		health.SchemaDirty = dirty
	}

	for _, table := range expectedTables {
		var name string
		row := s.db.QueryRowContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table)
		if err := row.Scan(&name); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				health.MissingTables = append(health.MissingTables, table)
				continue
			}
			health.Error = err.Error()
			return health, fmt.Errorf("query table info: %w", err)
		}
	}

	var integrityResult string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")
	return health, nil
}

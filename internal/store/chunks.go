package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SaveChunk inserts or replaces the chunk row for (video, index).
func (s *Store) SaveChunk(ctx context.Context, chunk *Chunk) error {
	if chunk == nil {
		return errors.New("chunk is nil")
	}
	if chunk.Status == "" {
		chunk.Status = StatusPending
	}
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO chunks (video_id, chunk_index, start_seconds, end_seconds, overlap_seconds, status, record_count, error_message, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(video_id, chunk_index) DO UPDATE SET
             start_seconds = excluded.start_seconds,
             end_seconds = excluded.end_seconds,
             overlap_seconds = excluded.overlap_seconds,
             status = excluded.status,
             record_count = excluded.record_count,
             error_message = excluded.error_message,
             updated_at = excluded.updated_at`,
		chunk.VideoID,
		chunk.Index,
		chunk.StartSeconds,
		chunk.EndSeconds,
		chunk.OverlapSeconds,
		chunk.Status,
		chunk.RecordCount,
		nullableString(chunk.ErrorMessage),
		nowString(),
	); err != nil {
		return fmt.Errorf("save chunk %d: %w", chunk.Index, err)
	}
	return nil
}

// ListChunks returns the chunks of a video in index order.
func (s *Store) ListChunks(ctx context.Context, videoID int64) ([]*Chunk, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT id, video_id, chunk_index, start_seconds, end_seconds, overlap_seconds, status, record_count, error_message, updated_at
         FROM chunks WHERE video_id = ? ORDER BY chunk_index`,
		videoID,
	)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*Chunk
	for rows.Next() {
		var (
			chunk      Chunk
			statusStr  string
			errMessage sql.NullString
			updatedRaw sql.NullString
		)
		if err := rows.Scan(
			&chunk.ID,
			&chunk.VideoID,
			&chunk.Index,
			&chunk.StartSeconds,
			&chunk.EndSeconds,
			&chunk.OverlapSeconds,
			&statusStr,
			&chunk.RecordCount,
			&errMessage,
			&updatedRaw,
		); err != nil {
			return nil, err
		}
		chunk.Status = Status(statusStr)
		chunk.ErrorMessage = errMessage.String
		chunk.UpdatedAt = parseNullTime(updatedRaw)
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

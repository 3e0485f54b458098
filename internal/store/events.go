package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// AppendEvent stores one audit event and returns its id.
func (s *Store) AppendEvent(ctx context.Context, event *Event) (int64, error) {
	if event == nil {
		return 0, errors.New("event is nil")
	}
	if strings.TrimSpace(event.Tag) == "" {
		return 0, errors.New("append event: tag required")
	}
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO events (video_id, chunk_index, tag, message, frame_index, timestamp_seconds, is_error, payload, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.VideoID,
		nullableInt(event.ChunkIndex),
		event.Tag,
		event.Message,
		nullableInt(event.FrameIndex),
		nullableFloat(event.Timestamp),
		boolToInt(event.IsError),
		nullableString(event.Payload),
		nowString(),
	)
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}
	return res.LastInsertId()
}

// ListEvents returns the events of a video in insertion order. A limit of
// zero returns everything.
func (s *Store) ListEvents(ctx context.Context, videoID int64, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT id, video_id, chunk_index, tag, message, frame_index, timestamp_seconds, is_error, payload, created_at
         FROM events WHERE video_id = ? ORDER BY id LIMIT ?`,
		videoID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var (
			event      Event
			chunkIndex sql.NullInt64
			frameIndex sql.NullInt64
			timestamp  sql.NullFloat64
			isError    int
			payload    sql.NullString
			createdRaw sql.NullString
		)
		if err := rows.Scan(
			&event.ID,
			&event.VideoID,
			&chunkIndex,
			&event.Tag,
			&event.Message,
			&frameIndex,
			&timestamp,
			&isError,
			&payload,
			&createdRaw,
		); err != nil {
			return nil, err
		}
		if chunkIndex.Valid {
			v := int(chunkIndex.Int64)
			event.ChunkIndex = &v
		}
		if frameIndex.Valid {
			v := int(frameIndex.Int64)
			event.FrameIndex = &v
		}
		if timestamp.Valid {
			v := timestamp.Float64
			event.Timestamp = &v
		}
		event.IsError = isError != 0
		event.Payload = payload.String
		event.CreatedAt = parseNullTime(createdRaw)
		events = append(events, &event)
	}
	return events, rows.Err()
}

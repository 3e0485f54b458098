package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SaveBatch persists a completed classifier submission.
func (s *Store) SaveBatch(ctx context.Context, batch *Batch) error {
	if batch == nil {
		return errors.New("batch is nil")
	}
	if strings.TrimSpace(batch.ID) == "" {
		return errors.New("save batch: id required")
	}
	trackIDs, err := json.Marshal(batch.TrackIDs)
	if err != nil {
		return fmt.Errorf("encode batch track ids: %w", err)
	}
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO batches (id, video_id, chunk_index, track_ids, collage_path, outcome, raw_response, error_message, cost_estimate, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		batch.ID,
		batch.VideoID,
		batch.ChunkIndex,
		string(trackIDs),
		nullableString(batch.CollagePath),
		batch.Outcome,
		nullableString(batch.RawResponse),
		nullableString(batch.ErrorMessage),
		batch.CostEstimate,
		nowString(),
	); err != nil {
		return fmt.Errorf("save batch %s: %w", batch.ID, err)
	}
	return nil
}

// ListBatches returns the batches of a video in submission order.
func (s *Store) ListBatches(ctx context.Context, videoID int64) ([]*Batch, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT id, video_id, chunk_index, track_ids, collage_path, outcome, raw_response, error_message, cost_estimate, created_at
         FROM batches WHERE video_id = ? ORDER BY created_at, rowid`,
		videoID,
	)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var batches []*Batch
	for rows.Next() {
		var (
			batch       Batch
			trackIDs    string
			collagePath sql.NullString
			rawResponse sql.NullString
			errMessage  sql.NullString
			createdRaw  sql.NullString
		)
		if err := rows.Scan(
			&batch.ID,
			&batch.VideoID,
			&batch.ChunkIndex,
			&trackIDs,
			&collagePath,
			&batch.Outcome,
			&rawResponse,
			&errMessage,
			&batch.CostEstimate,
			&createdRaw,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(trackIDs), &batch.TrackIDs); err != nil {
			return nil, fmt.Errorf("decode batch %s track ids: %w", batch.ID, err)
		}
		batch.CollagePath = collagePath.String
		batch.RawResponse = rawResponse.String
		batch.ErrorMessage = errMessage.String
		batch.CreatedAt = parseNullTime(createdRaw)
		batches = append(batches, &batch)
	}
	return batches, rows.Err()
}

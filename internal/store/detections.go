package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const detectionColumns = "id, video_id, track_key, track_id, chunk_index, plate_number, confidence, provenance, vehicle_type, make_model, color, vehicle_info, helmet_status, passengers, recheck_status, timestamp_seconds, frame_index, blur_score, signature, raw_response, batch_id, created_at, updated_at"

func scanDetection(scanner rowScanner) (*Detection, error) {
	var (
		det          Detection
		vehicleType  sql.NullString
		makeModel    sql.NullString
		color        sql.NullString
		vehicleInfo  sql.NullString
		helmetStatus sql.NullString
		signature    sql.NullString
		rawResponse  sql.NullString
		batchID      sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)
	if err := scanner.Scan(
		&det.ID,
		&det.VideoID,
		&det.TrackKey,
		&det.TrackID,
		&det.ChunkIndex,
		&det.PlateNumber,
		&det.Confidence,
		&det.Provenance,
		&vehicleType,
		&makeModel,
		&color,
		&vehicleInfo,
		&helmetStatus,
		&det.Passengers,
		&det.RecheckStatus,
		&det.Timestamp,
		&det.FrameIndex,
		&det.BlurScore,
		&signature,
		&rawResponse,
		&batchID,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	det.VehicleType = vehicleType.String
	det.MakeModel = makeModel.String
	det.Color = color.String
	det.VehicleInfo = vehicleInfo.String
	det.HelmetStatus = helmetStatus.String
	det.Signature = signature.String
	det.RawResponse = rawResponse.String
	det.BatchID = batchID.String
	det.CreatedAt = parseNullTime(createdRaw)
	det.UpdatedAt = parseNullTime(updatedRaw)
	return &det, nil
}

// GetDetection returns the live record for (video, track key), or nil.
func (s *Store) GetDetection(ctx context.Context, videoID int64, trackKey string) (*Detection, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+detectionColumns+` FROM detections WHERE video_id = ? AND track_key = ?`,
		videoID,
		trackKey,
	)
	det, err := scanDetection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get detection: %w", err)
	}
	return det, nil
}

// PutDetection writes det as the live record for its (video, track key),
// overwriting every field of an existing row.
func (s *Store) PutDetection(ctx context.Context, det *Detection) error {
	if det == nil {
		return errors.New("detection is nil")
	}
	if strings.TrimSpace(det.TrackKey) == "" {
		return errors.New("put detection: track key required")
	}
	if det.RecheckStatus == "" {
		det.RecheckStatus = "none"
	}
	timestamp := nowString()
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO detections (
             video_id, track_key, track_id, chunk_index, plate_number, confidence, provenance,
             vehicle_type, make_model, color, vehicle_info, helmet_status, passengers, recheck_status,
             timestamp_seconds, frame_index, blur_score, signature, raw_response, batch_id, created_at, updated_at
         ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(video_id, track_key) DO UPDATE SET
             track_id = excluded.track_id,
             chunk_index = excluded.chunk_index,
             plate_number = excluded.plate_number,
             confidence = excluded.confidence,
             provenance = excluded.provenance,
             vehicle_type = excluded.vehicle_type,
             make_model = excluded.make_model,
             color = excluded.color,
             vehicle_info = excluded.vehicle_info,
             helmet_status = excluded.helmet_status,
             passengers = excluded.passengers,
             recheck_status = excluded.recheck_status,
             timestamp_seconds = excluded.timestamp_seconds,
             frame_index = excluded.frame_index,
             blur_score = excluded.blur_score,
             signature = excluded.signature,
             raw_response = excluded.raw_response,
             batch_id = excluded.batch_id,
             updated_at = excluded.updated_at`,
		det.VideoID,
		det.TrackKey,
		det.TrackID,
		det.ChunkIndex,
		det.PlateNumber,
		det.Confidence,
		det.Provenance,
		nullableString(det.VehicleType),
		nullableString(det.MakeModel),
		nullableString(det.Color),
		nullableString(det.VehicleInfo),
		nullableString(det.HelmetStatus),
		det.Passengers,
		det.RecheckStatus,
		det.Timestamp,
		det.FrameIndex,
		det.BlurScore,
		nullableString(det.Signature),
		nullableString(det.RawResponse),
		nullableString(det.BatchID),
		timestamp,
		timestamp,
	); err != nil {
		return fmt.Errorf("put detection %s: %w", det.TrackKey, err)
	}
	return nil
}

// SearchDetections returns records matching filter ordered by video then
// timestamp. Plate and vehicle queries are case-insensitive substring matches.
func (s *Store) SearchDetections(ctx context.Context, filter DetectionFilter) ([]*Detection, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.VideoID > 0 {
		clauses = append(clauses, "video_id = ?")
		args = append(args, filter.VideoID)
	}
	if plate := strings.TrimSpace(filter.Plate); plate != "" {
		clauses = append(clauses, "UPPER(plate_number) LIKE ?")
		args = append(args, "%"+strings.ToUpper(plate)+"%")
	}
	if filter.MinConfidence > 0 {
		clauses = append(clauses, "confidence >= ?")
		args = append(args, filter.MinConfidence)
	}
	if recheck := strings.TrimSpace(filter.RecheckStatus); recheck != "" {
		clauses = append(clauses, "recheck_status = ?")
		args = append(args, strings.ToLower(recheck))
	}
	if vehicle := strings.TrimSpace(filter.VehicleQuery); vehicle != "" {
		clauses = append(clauses, "(UPPER(COALESCE(vehicle_info, '')) LIKE ? OR UPPER(COALESCE(make_model, '')) LIKE ? OR UPPER(COALESCE(vehicle_type, '')) LIKE ?)")
		pattern := "%" + strings.ToUpper(vehicle) + "%"
		args = append(args, pattern, pattern, pattern)
	}

	query := `SELECT ` + detectionColumns + ` FROM detections`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY video_id, timestamp_seconds, id`
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, max(filter.Offset, 0))

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("search detections: %w", err)
	}
	defer rows.Close()

	var out []*Detection
	for rows.Next() {
		det, err := scanDetection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, det)
	}
	return out, rows.Err()
}

// DeleteDetections removes every record of a video. Used before persisting a
// fresh merged result set for a rerun.
func (s *Store) DeleteDetections(ctx context.Context, videoID int64) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM detections WHERE video_id = ?`, videoID)
	if err != nil {
		return 0, fmt.Errorf("delete detections: %w", err)
	}
	return res.RowsAffected()
}

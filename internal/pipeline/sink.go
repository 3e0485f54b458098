package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"platewatch/internal/arbitration"
	"platewatch/internal/audit"
	"platewatch/internal/batching"
	"platewatch/internal/classifier"
	"platewatch/internal/logging"
	"platewatch/internal/records"
	"platewatch/internal/store"
	"platewatch/internal/tracking"
)

// recordSink turns a classified batch into Detection Records.
type recordSink struct {
	run *run
}

// localOnly stands in for the batch of a track settled without an external
// call. Its records carry recheck status skipped.
var localOnly = &batching.Batch{Outcome: classifier.Outcome{Status: classifier.StatusDisabled}}

// Deliver arbitrates every track of batch, upserts its record, and persists
// the batch. Persistence failures are logged and audited; only cancellation
// is returned.
func (s *recordSink) Deliver(ctx context.Context, batch *batching.Batch) error {
	r := s.run
	logger := r.logger.With(logging.Batch(batch.ID))

	s.recordOutcome(ctx, batch)
	for _, track := range batch.Tracks {
		if err := s.write(ctx, logger, batch, track); err != nil {
			return err
		}
	}
	s.persist(ctx, batch)
	return nil
}

// write arbitrates and upserts the record for one track. Only cancellation
// is returned.
func (s *recordSink) write(ctx context.Context, logger *slog.Logger, batch *batching.Batch, track *tracking.Track) error {
	r := s.run
	result, matched := batch.Result(track.ID)
	record := s.build(ctx, batch, track, result, matched)
	applied, err := records.Upsert(ctx, r.p.opts.Records, record)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logging.ErrorWithContext(logger, "record upsert failed", "record_upsert_failed",
			logging.Track(track.ID),
			logging.Error(err),
		)
		r.recorder.Record(ctx, audit.Event{
			Tag:     audit.TagError,
			Message: fmt.Sprintf("Record for Track %d not saved: %v", track.ID, err),
			IsError: true,
		})
		return nil
	}
	if applied {
		r.summary.RecordsApplied++
	}
	r.recorder.Record(ctx, r.anchor(audit.Event{
		Tag:     audit.TagAuditor,
		Message: fmt.Sprintf("Jury: %s for Track #%d", record.Provenance, track.ID),
		Payload: map[string]any{"plate": record.PlateNumber, "applied": applied},
	}, track))
	return nil
}

func (s *recordSink) build(ctx context.Context, batch *batching.Batch, track *tracking.Track, result classifier.Result, matched bool) records.Record {
	r := s.run
	var local, external *string
	if track.Local != nil {
		text := track.Local.Text
		local = &text
	}
	if matched {
		plate := result.Plate
		external = &plate
	}

	class := strings.ToUpper(strings.TrimSpace(track.Class))
	if matched && result.Type != "" && result.Type != "UNKNOWN" {
		class = result.Type
	}
	if class == "" {
		class = "UNKNOWN"
	}

	plate, provenance := r.p.engine.Arbitrate(local, external, class)
	if plate != arbitration.NoPlate && arbitration.SemanticMismatch(class, plate) {
		provenance = arbitration.Flag(provenance)
		r.recorder.Record(ctx, r.anchor(audit.Event{
			Tag:     audit.TagSemantic,
			Message: fmt.Sprintf("Track %d: %s plate %q is too short", track.ID, class, plate),
		}, track))
	}

	record := records.Record{
		VideoID:       r.p.opts.VideoID,
		TrackKey:      track.Key(),
		TrackID:       track.ID,
		ChunkIndex:    r.p.opts.ChunkIndex,
		PlateNumber:   plate,
		Confidence:    confidence(track, result, matched),
		Provenance:    provenance,
		VehicleType:   class,
		HelmetStatus:  "N/A",
		RecheckStatus: recheckStatus(batch.Outcome.Status, matched),
		Signature:     track.Signature,
		RawResponse:   batch.Outcome.Raw,
		BatchID:       batch.ID,
	}
	if matched {
		record.MakeModel = result.Make
		record.Color = result.Color
		record.VehicleInfo = result.VehicleInfo()
		record.HelmetStatus = result.HelmetStatus
		record.Passengers = result.Passengers
	}
	if track.HasGolden() {
		record.Timestamp = track.Golden.Timestamp
		record.FrameIndex = track.Golden.FrameIndex
		record.BlurScore = track.Golden.Sharpness
	} else {
		record.Timestamp = track.FirstSeen
	}
	return record
}

func confidence(track *tracking.Track, result classifier.Result, matched bool) float64 {
	switch {
	case matched:
		return result.Confidence
	case track.Local != nil:
		return track.Local.Confidence
	default:
		return 0
	}
}

func recheckStatus(status classifier.Status, matched bool) string {
	switch status {
	case classifier.StatusSuccess:
		if matched {
			return records.RecheckSuccess
		}
		return records.RecheckFailed
	case classifier.StatusQuotaExceeded, classifier.StatusDisabled, classifier.StatusCancelled:
		return records.RecheckSkipped
	default:
		return records.RecheckFailed
	}
}

func (s *recordSink) recordOutcome(ctx context.Context, batch *batching.Batch) {
	r := s.run
	outcome := batch.Outcome
	short := batch.ID
	if len(short) > 8 {
		short = short[:8]
	}
	payload := map[string]any{
		"batch_id": batch.ID,
		"tracks":   batch.TrackIDs,
		"status":   string(outcome.Status),
		"cost":     batch.Cost,
	}
	switch outcome.Status {
	case classifier.StatusSuccess:
		r.recorder.Record(ctx, audit.Event{
			Tag:     audit.TagCloud,
			Message: fmt.Sprintf("Batch %s classified: %d/%d tracks matched", short, len(batch.Results), len(batch.TrackIDs)),
			Payload: payload,
		})
	case classifier.StatusDisabled, classifier.StatusQuotaExceeded, classifier.StatusCancelled:
		r.recorder.Record(ctx, audit.Event{
			Tag:     audit.TagCloud,
			Message: fmt.Sprintf("Batch %s skipped (%s): using local reads", short, outcome.Status),
			Payload: payload,
		})
	default:
		if outcome.Err != nil {
			payload["error"] = outcome.Err.Error()
		}
		r.recorder.Record(ctx, audit.Event{
			Tag:     audit.TagError,
			Message: fmt.Sprintf("Batch %s %s: using local reads", short, outcome.Status),
			IsError: true,
			Payload: payload,
		})
	}
}

func (s *recordSink) persist(ctx context.Context, batch *batching.Batch) {
	r := s.run
	if r.p.opts.Batches == nil {
		return
	}
	row := &store.Batch{
		ID:           batch.ID,
		VideoID:      r.p.opts.VideoID,
		ChunkIndex:   r.p.opts.ChunkIndex,
		TrackIDs:     batch.TrackIDs,
		CollagePath:  batch.CollagePath,
		Outcome:      string(batch.Outcome.Status),
		RawResponse:  batch.Outcome.Raw,
		CostEstimate: batch.Cost,
	}
	if batch.Outcome.Err != nil {
		row.ErrorMessage = batch.Outcome.Err.Error()
	}
	if err := r.p.opts.Batches.SaveBatch(context.WithoutCancel(ctx), row); err != nil {
		logging.WarnWithContext(r.logger, "batch not persisted", "batch_persist_failed",
			logging.Batch(batch.ID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "batch missing from the audit trail"),
		)
	}
}

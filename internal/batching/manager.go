package batching

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"platewatch/internal/admission"
	"platewatch/internal/classifier"
	"platewatch/internal/logging"
	"platewatch/internal/services"
	"platewatch/internal/tracking"
)

// Batch is one dispatched classification unit. It is immutable once handed
// to the sink.
type Batch struct {
	ID          string
	TrackIDs    []int
	Tracks      []*tracking.Track
	CollagePath string
	Outcome     classifier.Outcome
	Results     map[int]classifier.Result
	Cost        float64
}

// Result returns the classifier answer for a track, if one was matched.
func (b *Batch) Result(trackID int) (classifier.Result, bool) {
	res, ok := b.Results[trackID]
	return res, ok
}

// Sink receives dispatched batches. The pipeline implements it with
// arbitration and record upsert.
type Sink interface {
	Deliver(ctx context.Context, batch *Batch) error
}

// DropFunc observes READY tracks that were rejected at dispatch.
type DropFunc func(ctx context.Context, decision admission.Decision)

// Options configures a Manager.
type Options struct {
	Composer     Composer
	CollageDir   string
	VideoID      int64
	CostPerBatch float64
	Classifier   classifier.BatchClassifier
	Sink         Sink
	OnDrop       DropFunc
	Logger       *slog.Logger
}

// Manager queues READY tracks and dispatches them in collage-sized batches.
// It is owned by a single pipeline run.
type Manager struct {
	composer     Composer
	collageDir   string
	videoID      int64
	costPerBatch float64
	classifier   classifier.BatchClassifier
	sink         Sink
	onDrop       DropFunc
	logger       *slog.Logger

	ledger *tracking.Ledger
	queue  []int
	stats  Stats
}

// Stats counts dispatch outcomes.
type Stats struct {
	Dispatched      int
	Succeeded       int
	Failed          int
	ComposeFailures int
	TracksBatched   int
	TracksRejected  int
	ExternalCalls   int
	Cost            float64
}

// NewManager constructs a manager over ledger.
func NewManager(ledger *tracking.Ledger, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.Classifier == nil {
		opts.Classifier = classifier.Disabled{}
	}
	return &Manager{
		composer:     opts.Composer,
		collageDir:   opts.CollageDir,
		videoID:      opts.VideoID,
		costPerBatch: opts.CostPerBatch,
		classifier:   opts.Classifier,
		sink:         opts.Sink,
		onDrop:       opts.OnDrop,
		logger:       logger,
		ledger:       ledger,
	}
}

// Enqueue appends a READY track to the FIFO.
func (m *Manager) Enqueue(id int) {
	m.queue = append(m.queue, id)
}

// Pending returns the queue length.
func (m *Manager) Pending() int {
	return len(m.queue)
}

// Stats returns dispatch counters.
func (m *Manager) Stats() Stats {
	return m.stats
}

// Drain dispatches full batches while at least one collage worth of tracks
// is queued. It never dispatches an under-full batch.
func (m *Manager) Drain(ctx context.Context) error {
	capacity := m.composer.Capacity()
	for len(m.queue) >= capacity {
		if err := ctx.Err(); err != nil {
			return err
		}
		ids := m.take(capacity)
		if err := m.dispatch(ctx, ids); err != nil {
			return err
		}
	}
	return nil
}

// Flush drains full batches and then dispatches whatever remains, which may
// be under-full. Call only at end of stream.
func (m *Manager) Flush(ctx context.Context) error {
	if err := m.Drain(ctx); err != nil {
		return err
	}
	if len(m.queue) == 0 {
		return nil
	}
	return m.dispatch(ctx, m.take(len(m.queue)))
}

func (m *Manager) take(n int) []int {
	ids := make([]int, n)
	copy(ids, m.queue[:n])
	m.queue = append(m.queue[:0], m.queue[n:]...)
	return ids
}

func (m *Manager) dispatch(ctx context.Context, ids []int) error {
	tracks := make([]*tracking.Track, 0, len(ids))
	tiles := make([]Tile, 0, len(ids))
	for _, id := range ids {
		track := m.ledger.Get(id)
		if track == nil {
			continue
		}
		if !track.HasGolden() {
			if decision, ok := admission.Reject(track, admission.ReasonNoGolden); ok {
				m.stats.TracksRejected++
				if m.onDrop != nil {
					m.onDrop(ctx, decision)
				}
			}
			continue
		}
		tracks = append(tracks, track)
		tiles = append(tiles, Tile{TrackID: track.ID, Crop: track.Golden.Crop})
	}
	if len(tracks) == 0 {
		return nil
	}

	// Tracks are committed before the call so a failure never re-queues them.
	batch := &Batch{ID: uuid.NewString(), Tracks: tracks}
	for _, track := range tracks {
		track.Processed = true
		track.State = tracking.StateBatched
		batch.TrackIDs = append(batch.TrackIDs, track.ID)
	}
	m.stats.Dispatched++
	m.stats.TracksBatched += len(tracks)

	logger := logging.WithContext(ctx, m.logger).With(logging.Batch(batch.ID))

	collage, err := m.composer.Compose(tiles)
	var encoded []byte
	if err == nil {
		encoded, err = m.composer.Encode(collage)
	}
	if err != nil {
		m.stats.ComposeFailures++
		m.stats.Failed++
		logging.ErrorWithContext(logger, "collage composition failed", "collage_failed",
			logging.Error(err),
			logging.Any("track_ids", batch.TrackIDs),
		)
		batch.Outcome = classifier.Outcome{Status: classifier.StatusFailed, Err: services.Wrap(services.ErrValidation, "batching", "compose", "collage composition failed", err)}
		return m.deliver(ctx, batch)
	}

	if path, saveErr := m.save(batch.ID, encoded); saveErr != nil {
		logging.WarnWithContext(logger, "collage not saved", "collage_save_failed",
			logging.Error(saveErr),
			logging.String(logging.FieldImpact, "batch proceeds without an audit image"),
			logging.String(logging.FieldErrorHint, "check paths.collage_dir permissions"),
		)
	} else {
		batch.CollagePath = path
	}

	batch.Outcome = m.classifier.ClassifyBatch(ctx, encoded)
	batch.Results = batch.Outcome.ByTrack()
	if batch.Outcome.Status.Attempted() {
		batch.Cost = m.costPerBatch
		m.stats.ExternalCalls++
		m.stats.Cost += m.costPerBatch
	}
	if batch.Outcome.Status == classifier.StatusSuccess {
		m.stats.Succeeded++
	} else {
		m.stats.Failed++
	}
	logger.Info("batch classified",
		logging.String(logging.FieldEventType, "batch_classified"),
		logging.String("outcome", string(batch.Outcome.Status)),
		logging.Int("tracks", len(batch.TrackIDs)),
		logging.Int("matched", len(batch.Results)),
	)
	return m.deliver(ctx, batch)
}

func (m *Manager) deliver(ctx context.Context, batch *Batch) error {
	if m.sink == nil {
		return nil
	}
	if err := m.sink.Deliver(ctx, batch); err != nil {
		return fmt.Errorf("deliver batch %s: %w", batch.ID, err)
	}
	return nil
}

// save writes the encoded collage as collage_<video>_<uuid8>.jpg.
func (m *Manager) save(batchID string, encoded []byte) (string, error) {
	if strings.TrimSpace(m.collageDir) == "" {
		return "", nil
	}
	if err := os.MkdirAll(m.collageDir, 0o755); err != nil {
		return "", fmt.Errorf("create collage dir: %w", err)
	}
	short := strings.ReplaceAll(batchID, "-", "")
	if len(short) > 8 {
		short = short[:8]
	}
	path := filepath.Join(m.collageDir, fmt.Sprintf("collage_%d_%s.jpg", m.videoID, short))
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return "", fmt.Errorf("write collage: %w", err)
	}
	return path, nil
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"platewatch/internal/admission"
	"platewatch/internal/arbitration"
	"platewatch/internal/audit"
	"platewatch/internal/batching"
	"platewatch/internal/classifier"
	"platewatch/internal/logging"
	"platewatch/internal/quality"
	"platewatch/internal/services"
	"platewatch/internal/threshold"
	"platewatch/internal/tracking"
)

// Summary describes one completed run.
type Summary struct {
	Frames           int
	PeakVehicles     int
	TracksCreated    int
	TracksBatched    int
	TracksTrusted    int
	TracksDropped    int
	Batches          int
	BatchesSucceeded int
	BatchesFailed    int
	ExternalCalls    int
	Cost             float64
	RecordsApplied   int
	LastTimestamp    float64
	Threshold        float64
}

// Pipeline processes one frame source into records.
type Pipeline struct {
	opts   Options
	engine arbitration.Engine
	logger *slog.Logger
}

// New validates opts and returns a Pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Detector == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "new", "detector is required", nil)
	}
	if opts.Records == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "new", "record repository is required", nil)
	}
	if opts.Classifier == nil {
		opts.Classifier = classifier.Disabled{}
	}
	if opts.Recorder == nil {
		opts.Recorder = audit.Nop{}
	}
	if opts.Filter.MaxLength == 0 {
		opts.Filter = arbitration.DefaultLocalPlateFilter()
	}
	if opts.Settings.TuneIntervalFrames <= 0 {
		opts.Settings.TuneIntervalFrames = 500
	}
	if opts.Settings.ActiveWindowSeconds <= 0 {
		opts.Settings.ActiveWindowSeconds = 2.0
	}
	if opts.Settings.FrameStride <= 0 {
		opts.Settings.FrameStride = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		opts:   opts,
		engine: arbitration.NewEngine(opts.Validator),
		logger: logger,
	}, nil
}

// run holds the state of one Run call.
type run struct {
	p        *Pipeline
	ledger   *tracking.Ledger
	policy   *admission.Policy
	batches  *batching.Manager
	monitor  *threshold.Monitor
	recorder audit.Recorder
	logger   *slog.Logger
	summary  Summary
	read     int
}

// Run consumes source until io.EOF, then flushes admission and batching.
// Only a frame-source failure is returned as an error (wrapping
// services.ErrInput); cancellation returns the context error.
func (p *Pipeline) Run(ctx context.Context, source FrameSource) (Summary, error) {
	if p.opts.VideoID != 0 {
		if _, ok := services.VideoIDFromContext(ctx); !ok {
			ctx = services.WithVideoID(ctx, p.opts.VideoID)
		}
	}
	if p.opts.ChunkIndex >= 0 {
		ctx = services.WithChunkIndex(ctx, p.opts.ChunkIndex)
	}
	r := p.newRun(ctx)
	r.logger.Info("pipeline run started",
		logging.String(logging.FieldEventType, "pipeline_start"),
		logging.String("tier", string(p.opts.Tier)),
		logging.Float64("threshold", r.monitor.Current()),
	)

	for {
		if err := ctx.Err(); err != nil {
			return r.finish(), err
		}
		frame, err := source.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return r.finish(), ctxErr
			}
			return r.finish(), services.Wrap(services.ErrInput, "pipeline", "read frame", "frame source failed", err)
		}
		r.read++
		if (r.read-1)%p.opts.Settings.FrameStride != 0 {
			continue
		}
		if err := r.processFrame(ctx, frame); err != nil {
			return r.finish(), err
		}
	}

	r.apply(ctx, r.policy.Flush(r.ledger.Tracks()))
	if err := r.batches.Flush(ctx); err != nil {
		return r.finish(), err
	}
	summary := r.finish()
	r.logger.Info("pipeline run complete",
		logging.String(logging.FieldEventType, "pipeline_complete"),
		logging.Int("frames", summary.Frames),
		logging.Int("tracks", summary.TracksCreated),
		logging.Int("records", summary.RecordsApplied),
		logging.Int("trusted", summary.TracksTrusted),
		logging.Int("batches", summary.Batches),
	)
	return summary, nil
}

func (p *Pipeline) newRun(ctx context.Context) *run {
	logger := logging.WithContext(ctx, p.logger)
	ledger := tracking.NewLedger(tracking.Options{
		Scorer:            p.opts.Scorer,
		SharpnessFloor:    p.opts.Settings.GoldenSharpnessFloor,
		SignatureInterval: p.opts.Settings.SignatureInterval,
		Logger:            logger,
	})
	monitor := threshold.New(p.opts.Threshold, p.opts.Tier)
	if setter, ok := p.opts.Detector.(threshold.Setter); ok {
		monitor.Attach(setter)
	}
	r := &run{
		p:      p,
		ledger: ledger,
		policy: admission.New(admission.Options{
			Tier:               p.opts.Tier,
			IdleTimeoutSeconds: p.opts.Settings.IdleTimeoutSeconds,
			RebatchInterval:    p.opts.Settings.RebatchInterval,
			MinDisplacement:    p.opts.Settings.MinDisplacement,
		}),
		monitor:  monitor,
		recorder: audit.Shift(p.opts.Recorder, p.opts.TimeOffset),
		logger:   logger,
	}
	r.batches = batching.NewManager(ledger, batching.Options{
		Composer:     p.composer(),
		CollageDir:   p.opts.CollageDir,
		VideoID:      p.opts.VideoID,
		CostPerBatch: p.opts.Cost,
		Classifier:   p.opts.Classifier,
		Sink:         &recordSink{run: r},
		OnDrop:       r.dropped,
		Logger:       logger,
	})
	return r
}

func (p *Pipeline) composer() batching.Composer {
	s := p.opts.Settings
	c := batching.Composer{Rows: s.CollageRows, Cols: s.CollageCols, TileSize: s.TileSize, Quality: s.JPEGQuality, Size: s.CollageSize}
	if c.Rows <= 0 {
		c.Rows = 3
	}
	if c.Cols <= 0 {
		c.Cols = 3
	}
	if c.TileSize <= 0 {
		c.TileSize = 400
	}
	return c
}

func (r *run) processFrame(ctx context.Context, frame Frame) error {
	r.summary.Frames++
	r.summary.LastTimestamp = frame.Timestamp

	detections, err := r.p.opts.Detector.Detect(ctx, frame)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logging.WarnWithContext(r.logger, "detector failed on frame", "detect_failed",
			logging.Int("frame_index", frame.Index),
			logging.Error(err),
			logging.String(logging.FieldImpact, "frame skipped"),
		)
		r.recorder.Record(ctx, audit.Event{
			Tag:     audit.TagError,
			Message: fmt.Sprintf("Detector failed on frame %d: %v", frame.Index, err),
			IsError: true,
		}.At(frame.Index, frame.Timestamp))
		detections = nil
	}

	vehicles := 0
	for _, det := range detections {
		if !det.Tracked {
			continue
		}
		vehicles++
		track := r.ledger.Observe(tracking.Observation{
			TrackID:    det.TrackID,
			BBox:       det.BBox,
			Crop:       det.Crop,
			Timestamp:  frame.Timestamp,
			FrameIndex: frame.Index,
			Class:      det.Class,
		})
		if track.Frames == 1 {
			r.summary.TracksCreated++
		}
		r.recognize(ctx, frame, det)
	}
	if vehicles > r.summary.PeakVehicles {
		r.summary.PeakVehicles = vehicles
	}

	r.apply(ctx, r.policy.Evaluate(frame.Timestamp, r.ledger.Tracks()))
	r.tune(ctx, frame)
	return r.batches.Drain(ctx)
}

func (r *run) recognize(ctx context.Context, frame Frame, det Detection) {
	recognizer := r.p.opts.Recognizer
	if recognizer == nil || det.Crop == nil {
		return
	}
	track := r.ledger.Get(det.TrackID)
	if track == nil || track.State.Terminal() {
		return
	}
	read, err := recognizer.RecognizeLocal(ctx, frame, det)
	if err != nil {
		r.logger.Debug("local recognition failed",
			logging.Track(det.TrackID),
			logging.Error(err),
		)
		return
	}
	text, ok := r.p.opts.Filter.Accept(read.Text)
	if !ok {
		return
	}
	r.ledger.OfferLocal(det.TrackID, tracking.LocalCandidate{Text: text, Confidence: read.Confidence})
}

func (r *run) apply(ctx context.Context, decisions []admission.Decision) {
	for _, d := range decisions {
		switch d.To {
		case tracking.StateReady:
			msg := fmt.Sprintf("Track %d validated (%d frames)", d.Track.ID, d.Track.Frames)
			if d.Periodic {
				msg = fmt.Sprintf("Track %d validated (%d frames, periodic)", d.Track.ID, d.Track.Frames)
			}
			r.recorder.Record(ctx, r.anchor(audit.Event{Tag: audit.TagCapturer, Message: msg}, d.Track))
			if r.trusted(d.Track) {
				r.settleLocal(ctx, d.Track)
				continue
			}
			r.batches.Enqueue(d.Track.ID)
		case tracking.StateDropped:
			r.dropped(ctx, d)
		}
	}
}

// trusted reports whether track's local read may stand without the external
// classifier: a well-formed plate read confidently off a sharp golden crop.
func (r *run) trusted(track *tracking.Track) bool {
	s := r.p.opts.Settings
	if s.TrustConfidence <= 0 || track.Local == nil || !track.HasGolden() {
		return false
	}
	if track.Local.Confidence < s.TrustConfidence {
		return false
	}
	if !quality.Trustworthy(track.Golden.Sharpness, s.TrustSharpness) {
		return false
	}
	return r.p.engine.WellFormed(track.Local.Text)
}

// settleLocal records a trusted track straight from its local read.
func (r *run) settleLocal(ctx context.Context, track *tracking.Track) {
	track.Processed = true
	track.State = tracking.StateBatched
	r.summary.TracksTrusted++
	r.logger.Debug("local read trusted",
		logging.String(logging.FieldEventType, "local_trusted"),
		logging.Track(track.ID),
		logging.Float64("confidence", track.Local.Confidence),
		logging.Float64("sharpness", track.Golden.Sharpness),
	)
	// write audits upsert failures itself.
	_ = (&recordSink{run: r}).write(ctx, r.logger, localOnly, track)
}

func (r *run) dropped(ctx context.Context, d admission.Decision) {
	r.summary.TracksDropped++
	var msg string
	switch d.Reason {
	case admission.ReasonInsufficientFrames:
		msg = fmt.Sprintf("Dropped Track %d (Insufficient frames: %d)", d.Track.ID, d.Track.Frames)
	case admission.ReasonGhost:
		msg = fmt.Sprintf("Dropped Track %d (Ghost: moved %.1fpx)", d.Track.ID, d.Track.Displacement)
	default:
		msg = fmt.Sprintf("Dropped Track %d (No golden frame)", d.Track.ID)
	}
	lastSeen := d.Track.LastSeen
	r.recorder.Record(ctx, audit.Event{
		Tag:       audit.TagFilter,
		Message:   msg,
		Timestamp: &lastSeen,
		Payload:   map[string]any{"reason": string(d.Reason), "frames": d.Track.Frames},
	})
}

func (r *run) anchor(event audit.Event, track *tracking.Track) audit.Event {
	if track.HasGolden() {
		return event.At(track.Golden.FrameIndex, track.Golden.Timestamp)
	}
	ts := track.LastSeen
	event.Timestamp = &ts
	return event
}

func (r *run) tune(ctx context.Context, frame Frame) {
	interval := r.p.opts.Settings.TuneIntervalFrames
	if r.summary.Frames%interval != 0 {
		return
	}
	active := r.ledger.ActiveCount(frame.Timestamp, r.p.opts.Settings.ActiveWindowSeconds)
	density := float64(active) / float64(interval)
	value, changed := r.monitor.Tune(density)
	if !changed {
		return
	}
	r.logger.Info("detector threshold tuned",
		logging.String(logging.FieldEventType, "threshold_tuned"),
		logging.Float64("density", density),
		logging.Float64("threshold", value),
	)
	r.recorder.Record(ctx, audit.Event{
		Tag:     audit.TagMonitor,
		Message: fmt.Sprintf("Threshold set to %.2f (density %.3f)", value, density),
		Payload: map[string]any{"active": active, "threshold": value},
	}.At(frame.Index, frame.Timestamp))
}

func (r *run) finish() Summary {
	stats := r.batches.Stats()
	s := r.summary
	s.TracksBatched = stats.TracksBatched
	s.Batches = stats.Dispatched
	s.BatchesSucceeded = stats.Succeeded
	s.BatchesFailed = stats.Failed
	s.ExternalCalls = stats.ExternalCalls
	s.Cost = stats.Cost
	s.Threshold = r.monitor.Current()
	return s
}

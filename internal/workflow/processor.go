package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"platewatch/internal/analytics"
	"platewatch/internal/audit"
	"platewatch/internal/chunking"
	"platewatch/internal/classifier"
	"platewatch/internal/config"
	"platewatch/internal/logging"
	"platewatch/internal/media/ffprobe"
	"platewatch/internal/pipeline"
	"platewatch/internal/records"
	"platewatch/internal/services"
	"platewatch/internal/stage"
	"platewatch/internal/store"
	"platewatch/internal/trace"
)

var inspectMedia = ffprobe.Inspect

// SetInspectForTests swaps the ffprobe implementation and returns a restore func.
func SetInspectForTests(fn func(ctx context.Context, binary, path string) (ffprobe.Result, error)) func() {
	previous := inspectMedia
	inspectMedia = fn
	return func() { inspectMedia = previous }
}

// Processor runs one video end to end. It implements stage.Handler.
type Processor struct {
	cfg    *config.Config
	store  *store.Store
	logger *slog.Logger

	mu       sync.Mutex
	prepared map[int64]*trace.Trace
}

// NewProcessor builds the video stage handler.
func NewProcessor(cfg *config.Config, st *store.Store, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Processor{
		cfg:      cfg,
		store:    st,
		logger:   logging.ForComponent(logger, "processor", cfg.Logging.ComponentOverrides),
		prepared: make(map[int64]*trace.Trace),
	}
}

type runOutcome struct {
	records []records.Record
	summary pipeline.Summary
	failed  []int
}

// Prepare loads the trace and resolves the video duration.
func (p *Processor) Prepare(ctx context.Context, video *store.Video) error {
	path, err := stage.RequireSource(video)
	if err != nil {
		return err
	}
	tr, err := trace.Load(path)
	if err != nil {
		return err
	}
	video.DurationSeconds = p.duration(ctx, video, tr)

	p.mu.Lock()
	p.prepared[video.ID] = tr
	p.mu.Unlock()
	return nil
}

// duration prefers the media container's duration and falls back to the
// trace's own span.
func (p *Processor) duration(ctx context.Context, video *store.Video, tr *trace.Trace) float64 {
	media := strings.TrimSpace(video.MediaPath)
	if media == "" {
		return tr.Duration()
	}
	result, err := inspectMedia(ctx, p.cfg.FFprobeBinary(), media)
	if err == nil {
		if d := result.DurationSeconds(); d > 0 {
			return d
		}
	}
	logging.WarnWithContext(logging.WithContext(ctx, p.logger), "media inspection failed; using trace duration", "media_inspect_failed",
		logging.String("media_path", media),
		logging.Error(err),
		logging.String(logging.FieldImpact, "chunk plan follows trace timestamps"),
	)
	return tr.Duration()
}

func (p *Processor) take(video *store.Video) (*trace.Trace, error) {
	p.mu.Lock()
	tr, ok := p.prepared[video.ID]
	delete(p.prepared, video.ID)
	p.mu.Unlock()
	if ok {
		return tr, nil
	}
	path, err := stage.RequireSource(video)
	if err != nil {
		return nil, err
	}
	return trace.Load(path)
}

// Execute runs the pipeline over the video, chunked when it exceeds the chunk
// budget, then persists records, analytics, and the JSON report onto video.
func (p *Processor) Execute(ctx context.Context, video *store.Video) error {
	if _, ok := services.VideoIDFromContext(ctx); !ok {
		ctx = services.WithVideoID(ctx, video.ID)
	}
	logger := logging.WithContext(ctx, p.logger)
	started := time.Now()

	tr, err := p.take(video)
	if err != nil {
		return err
	}
	if video.DurationSeconds <= 0 {
		video.DurationSeconds = tr.Duration()
	}
	if _, err := p.store.DeleteDetections(ctx, video.ID); err != nil {
		return services.Wrap(services.ErrTransient, "workflow", "reset detections", "", err)
	}

	recorder := audit.Multi{audit.NewStoreRecorder(p.store, p.logger), audit.LogRecorder{Logger: p.logger}}
	base := p.baseOptions(video, recorder)
	segments := p.plan(video.DurationSeconds)

	var out runOutcome
	if len(segments) <= 1 {
		out, err = p.runWhole(ctx, tr, base, video)
	} else {
		logger.Info("splitting video into chunks",
			logging.Int("chunks", len(segments)),
			logging.Float64("duration_seconds", video.DurationSeconds),
			logging.String(logging.FieldEventType, "chunk_plan"),
		)
		out, err = p.runChunked(ctx, tr, base, video, segments)
	}
	if err != nil {
		return err
	}

	stats := analytics.Summarise(out.records, out.summary, time.Since(started))
	stats.Metadata.VideoDurationSec = video.DurationSeconds
	stats.Metadata.Chunks = len(segments)
	if out.failed != nil {
		stats.FailedChunks = out.failed
	}
	raw, err := stats.JSON()
	if err != nil {
		return fmt.Errorf("encode analytics: %w", err)
	}
	video.AnalyticsJSON = raw

	reportPath, err := analytics.WriteReport(p.cfg.Paths.ResultsDir, video.ID, video.Name, out.records)
	if err != nil {
		logging.WarnWithContext(logger, "report write failed", "report_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "analytics and records are still stored"),
		)
	} else {
		video.ReportPath = reportPath
	}

	recorder.Record(ctx, audit.Event{
		Tag:     audit.TagSystem,
		Message: fmt.Sprintf("Analysis Complete. Found %d unique vehicles.", stats.TotalVehicles),
		Payload: map[string]any{"failed_chunks": stats.FailedChunks, "cost": stats.Capture.EstimatedCost},
	})
	return nil
}

// baseOptions returns the options shared by every segment of one video. The
// classifier gate, and with it the call quota, is shared across chunks.
func (p *Processor) baseOptions(video *store.Video, recorder audit.Recorder) pipeline.Options {
	quota := classifier.NewQuota(p.cfg.Vision.MaxCallsPerVideo)
	gate := classifier.NewFromConfig(classifier.SettingsFromConfig(p.cfg), quota, p.logger)

	opts := pipeline.OptionsFromConfig(p.cfg)
	opts.VideoID = video.ID
	opts.Classifier = gate
	opts.Batches = p.store
	opts.Recorder = recorder
	opts.Logger = p.logger
	return opts
}

func (p *Processor) plan(duration float64) []chunking.Segment {
	if !p.cfg.Chunking.Enabled {
		return []chunking.Segment{{Index: 0, Start: 0, End: duration}}
	}
	return chunking.Plan(duration, p.cfg.ChunkBudgetSeconds(), float64(p.cfg.Chunking.OverlapSeconds))
}

func (p *Processor) runWhole(ctx context.Context, tr *trace.Trace, opts pipeline.Options, video *store.Video) (runOutcome, error) {
	repo := records.NewStoreRepository(p.store, video.ID)
	opts.Detector = trace.NewDetector(tr)
	opts.Recognizer = tr.Recognizer()
	opts.Records = repo

	pl, err := pipeline.New(opts)
	if err != nil {
		return runOutcome{}, err
	}
	summary, err := pl.Run(ctx, tr.Source(0, 0, false))
	if err != nil {
		return runOutcome{}, err
	}
	recs, err := repo.List(ctx)
	if err != nil {
		return runOutcome{}, fmt.Errorf("list records: %w", err)
	}
	return runOutcome{records: recs, summary: summary}, nil
}

func (p *Processor) runChunked(ctx context.Context, tr *trace.Trace, base pipeline.Options, video *store.Video, segments []chunking.Segment) (runOutcome, error) {
	for _, seg := range segments {
		if err := p.store.SaveChunk(ctx, chunkRow(video.ID, seg, store.StatusProcessing, 0, nil)); err != nil {
			return runOutcome{}, err
		}
	}

	orchestrator := chunking.Orchestrator{
		Parallel:   p.cfg.Chunking.Parallel,
		MaxWorkers: p.cfg.Chunking.MaxWorkers,
		Recorder:   base.Recorder,
		Logger:     p.logger,
	}
	runner := chunking.PipelineRunner{
		Splitter: tr,
		Options: func(chunking.Segment) pipeline.Options {
			opts := base
			opts.Detector = trace.NewDetector(tr)
			opts.Recognizer = tr.Recognizer()
			return opts
		},
	}
	results := orchestrator.Run(ctx, segments, runner)
	if err := ctx.Err(); err != nil {
		return runOutcome{}, err
	}

	persistCtx := context.WithoutCancel(ctx)
	var chunkErrs []error
	for _, res := range results {
		status := services.FailureStatus(res.Err)
		if res.Err != nil {
			chunkErrs = append(chunkErrs, fmt.Errorf("chunk %d: %w", res.Segment.Index, res.Err))
		}
		if err := p.store.SaveChunk(persistCtx, chunkRow(video.ID, res.Segment, status, len(res.Records), res.Err)); err != nil {
			return runOutcome{}, err
		}
	}

	merged, err := chunking.Merge(results)
	if err != nil {
		return runOutcome{}, err
	}
	if merged.AllFailed() {
		return runOutcome{}, fmt.Errorf("all %d chunks failed: %w", len(segments), errors.Join(chunkErrs...))
	}

	repo := records.NewStoreRepository(p.store, video.ID)
	for _, rec := range merged.Records {
		if _, err := records.Upsert(persistCtx, repo, rec); err != nil {
			return runOutcome{}, fmt.Errorf("persist merged record %s: %w", rec.TrackKey, err)
		}
	}
	failed := merged.Failed
	if failed == nil {
		failed = []int{}
	}
	return runOutcome{records: merged.Records, summary: merged.Summary, failed: failed}, nil
}

func chunkRow(videoID int64, seg chunking.Segment, status store.Status, count int, runErr error) *store.Chunk {
	row := &store.Chunk{
		VideoID:        videoID,
		Index:          seg.Index,
		StartSeconds:   seg.Start,
		EndSeconds:     seg.End,
		OverlapSeconds: seg.Overlap,
		Status:         status,
		RecordCount:    count,
	}
	if runErr != nil {
		row.ErrorMessage = runErr.Error()
	}
	return row
}

// HealthCheck reports whether the database is usable.
func (p *Processor) HealthCheck(ctx context.Context) stage.Health {
	health, err := p.store.CheckHealth(ctx)
	if err != nil {
		return stage.Unhealthy(processStage, err.Error())
	}
	if !health.DatabaseExists {
		return stage.Unhealthy(processStage, "database file missing: "+health.DBPath)
	}
	if len(health.MissingTables) > 0 {
		return stage.Unhealthy(processStage, "missing tables: "+strings.Join(health.MissingTables, ", "))
	}
	if !health.IntegrityCheck {
		return stage.Unhealthy(processStage, "database integrity check failed")
	}
	if !p.cfg.Vision.Enabled || p.cfg.VisionClient().APIKey == "" {
		return stage.Degraded(processStage, "external classifier disabled; local reads only")
	}
	return stage.Healthy(processStage)
}

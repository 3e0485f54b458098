package chunking

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"platewatch/internal/audit"
	"platewatch/internal/logging"
	"platewatch/internal/pipeline"
	"platewatch/internal/records"
	"platewatch/internal/services"
)

// Result is the outcome of one segment run.
type Result struct {
	Segment  Segment
	Records  []records.Record
	Summary  pipeline.Summary
	Err      error
	Duration time.Duration
}

// Runner processes one segment in isolation.
type Runner interface {
	RunChunk(ctx context.Context, seg Segment) ([]records.Record, pipeline.Summary, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, seg Segment) ([]records.Record, pipeline.Summary, error)

// RunChunk implements Runner.
func (f RunnerFunc) RunChunk(ctx context.Context, seg Segment) ([]records.Record, pipeline.Summary, error) {
	return f(ctx, seg)
}

// Splitter yields the frames of one segment, with timestamps relative to the
// segment start.
type Splitter interface {
	Segment(ctx context.Context, seg Segment) (pipeline.FrameSource, error)
}

// PipelineRunner builds a fresh pipeline with an in-memory record set for
// every segment.
type PipelineRunner struct {
	Splitter Splitter
	// Options returns the pipeline options for seg. ChunkIndex, TimeOffset
	// and Records are overwritten.
	Options func(seg Segment) pipeline.Options
}

// RunChunk implements Runner.
func (r PipelineRunner) RunChunk(ctx context.Context, seg Segment) ([]records.Record, pipeline.Summary, error) {
	source, err := r.Splitter.Segment(ctx, seg)
	if err != nil {
		return nil, pipeline.Summary{}, services.Wrap(services.ErrInput, "chunking", "split", fmt.Sprintf("segment %d", seg.Index), err)
	}
	repo := records.NewMemoryRepository()
	opts := r.Options(seg)
	opts.ChunkIndex = seg.Index
	opts.TimeOffset = seg.Start
	opts.Records = repo
	p, err := pipeline.New(opts)
	if err != nil {
		return nil, pipeline.Summary{}, err
	}
	summary, err := p.Run(ctx, source)
	return repo.Records(), summary, err
}

// Orchestrator fans segments out to a Runner and waits for all of them.
type Orchestrator struct {
	Parallel   bool
	MaxWorkers int
	Recorder   audit.Recorder
	Logger     *slog.Logger
}

// Run executes every segment and returns results in segment order. A failing
// segment never cancels its siblings; Run returns only after all finish.
func (o Orchestrator) Run(ctx context.Context, segments []Segment, runner Runner) []Result {
	logger := o.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	recorder := o.Recorder
	if recorder == nil {
		recorder = audit.Nop{}
	}
	results := make([]Result, len(segments))

	runOne := func(i int) {
		seg := segments[i]
		chunkCtx := services.WithChunkIndex(ctx, seg.Index)
		chunkLogger := logging.WithContext(chunkCtx, logger)
		chunkLogger.Info("chunk started",
			logging.String(logging.FieldEventType, "chunk_start"),
			logging.Float64("start", seg.Start),
			logging.Float64("end", seg.End),
		)
		started := time.Now()
		recs, summary, err := runner.RunChunk(chunkCtx, seg)
		results[i] = Result{Segment: seg, Records: recs, Summary: summary, Err: err, Duration: time.Since(started)}
		if err != nil {
			logging.ErrorWithContext(chunkLogger, "chunk failed", "chunk_failed", logging.Error(err))
			recorder.Record(chunkCtx, audit.Event{
				Tag:     audit.TagError,
				Message: fmt.Sprintf("Chunk %d failed: %v", seg.Index, err),
				IsError: true,
				Payload: map[string]any{"start": seg.Start, "end": seg.End},
			})
			return
		}
		chunkLogger.Info("chunk complete",
			logging.String(logging.FieldEventType, "chunk_complete"),
			logging.Int("records", len(recs)),
			logging.Duration("elapsed", results[i].Duration),
		)
	}

	if !o.Parallel || len(segments) < 2 {
		for i := range segments {
			runOne(i)
		}
		return results
	}

	workers := o.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range segments {
		g.Go(func() error {
			runOne(i)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

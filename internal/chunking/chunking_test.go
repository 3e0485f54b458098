package chunking_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"platewatch/internal/audit"
	"platewatch/internal/chunking"
	"platewatch/internal/pipeline"
	"platewatch/internal/records"
	"platewatch/internal/services"
)

func TestPlan(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		want     []chunking.Segment
	}{
		{
			name:     "within budget",
			duration: 900,
			want:     []chunking.Segment{{Index: 0, Start: 0, End: 900}},
		},
		{
			name:     "two segments",
			duration: 1500,
			want: []chunking.Segment{
				{Index: 0, Start: 0, End: 905, Overlap: 5},
				{Index: 1, Start: 900, End: 1500},
			},
		},
		{
			name:     "tail absorbed by overlap",
			duration: 1802,
			want: []chunking.Segment{
				{Index: 0, Start: 0, End: 905, Overlap: 5},
				{Index: 1, Start: 900, End: 1802, Overlap: 2},
			},
		},
		{
			name:     "tail ending inside overlap",
			duration: 1803,
			want: []chunking.Segment{
				{Index: 0, Start: 0, End: 905, Overlap: 5},
				{Index: 1, Start: 900, End: 1803, Overlap: 3},
			},
		},
		{
			name:     "tail exactly at overlap edge",
			duration: 1805,
			want: []chunking.Segment{
				{Index: 0, Start: 0, End: 905, Overlap: 5},
				{Index: 1, Start: 900, End: 1805, Overlap: 5},
			},
		},
		{
			name:     "tail past overlap",
			duration: 1806,
			want: []chunking.Segment{
				{Index: 0, Start: 0, End: 905, Overlap: 5},
				{Index: 1, Start: 900, End: 1805, Overlap: 5},
				{Index: 2, Start: 1800, End: 1806},
			},
		},
		{
			name:     "exact multiple without overlap room",
			duration: 1800,
			want: []chunking.Segment{
				{Index: 0, Start: 0, End: 905, Overlap: 5},
				{Index: 1, Start: 900, End: 1800},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := chunking.Plan(tt.duration, 900, 5)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Plan mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMergeOffsetsAndRekeys(t *testing.T) {
	results := []chunking.Result{
		{
			Segment: chunking.Segment{Index: 0, Start: 0, End: 905, Overlap: 5},
			Records: []records.Record{{TrackKey: "t3", TrackID: 3, Timestamp: 400, PlateNumber: "KA01AB1234"}},
		},
		{
			Segment: chunking.Segment{Index: 1, Start: 900, End: 1500},
			Records: []records.Record{
				{TrackKey: "t3", TrackID: 3, Timestamp: 10, PlateNumber: "MH12AB1234"},
				{TrackKey: "t1", TrackID: 1, Timestamp: 2, PlateNumber: "DL8CAF1234"},
			},
		},
	}
	original := results[1].Records[0]

	merged, err := chunking.Merge(results)
	require.NoError(t, err)
	require.Len(t, merged.Records, 3)

	assert.Equal(t, "c0-t3", merged.Records[0].TrackKey)
	assert.InDelta(t, 400, merged.Records[0].Timestamp, 1e-9)
	assert.Equal(t, "c1-t1", merged.Records[1].TrackKey)
	assert.InDelta(t, 902, merged.Records[1].Timestamp, 1e-9)
	assert.Equal(t, "c1-t3", merged.Records[2].TrackKey)
	assert.InDelta(t, 910, merged.Records[2].Timestamp, 1e-9)
	assert.Equal(t, 1, merged.Records[2].ChunkIndex)

	assert.Equal(t, original, results[1].Records[0], "merge must not mutate chunk records")
	assert.Equal(t, []int{0, 1}, merged.Completed)
	assert.Empty(t, merged.Failed)
	assert.False(t, merged.AllFailed())
}

func TestMergeSeparatesFailedFromEmpty(t *testing.T) {
	results := []chunking.Result{
		{Segment: chunking.Segment{Index: 0, Start: 0}},
		{Segment: chunking.Segment{Index: 1, Start: 900}, Err: errors.New("trace truncated"),
			Records: []records.Record{{TrackKey: "t2", TrackID: 2, Timestamp: 1}},
			Summary: pipeline.Summary{Frames: 30, PeakVehicles: 4}},
		{Segment: chunking.Segment{Index: 2, Start: 1800}, Summary: pipeline.Summary{Frames: 10, PeakVehicles: 2}},
	}
	merged, err := chunking.Merge(results)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, merged.Failed)
	assert.Equal(t, []int{0, 2}, merged.Empty)
	require.Len(t, merged.Records, 1, "partial records of a failed chunk are kept")
	assert.Equal(t, "c1-t2", merged.Records[0].TrackKey)
	assert.Equal(t, 40, merged.Summary.Frames)
	assert.Equal(t, 4, merged.Summary.PeakVehicles)

	allFailed, err := chunking.Merge([]chunking.Result{{Err: errors.New("x")}})
	require.NoError(t, err)
	assert.True(t, allFailed.AllFailed())
}

func TestOrchestratorFailureDoesNotCancelSiblings(t *testing.T) {
	segments := chunking.Plan(2700, 900, 5)
	require.Len(t, segments, 3)
	events := &audit.Memory{}
	var mu sync.Mutex
	seen := map[int]int{}

	runner := chunking.RunnerFunc(func(ctx context.Context, seg chunking.Segment) ([]records.Record, pipeline.Summary, error) {
		idx, ok := services.ChunkIndexFromContext(ctx)
		assert.True(t, ok)
		mu.Lock()
		seen[seg.Index] = idx
		mu.Unlock()
		if seg.Index == 0 {
			return nil, pipeline.Summary{}, errors.New("decoder crashed")
		}
		time.Sleep(10 * time.Millisecond)
		if err := ctx.Err(); err != nil {
			return nil, pipeline.Summary{}, err
		}
		return []records.Record{{TrackKey: "t1", TrackID: 1}}, pipeline.Summary{Frames: 5}, nil
	})

	orch := chunking.Orchestrator{Parallel: true, MaxWorkers: 3, Recorder: events}
	results := orch.Run(context.Background(), segments, runner)
	require.Len(t, results, 3)
	assert.Error(t, results[0].Err)
	assert.NoError(t, results[1].Err)
	assert.NoError(t, results[2].Err)
	assert.Len(t, results[2].Records, 1)
	assert.Equal(t, map[int]int{0: 0, 1: 1, 2: 2}, seen)
	require.Len(t, events.Tagged(audit.TagError), 1)
	assert.Contains(t, events.Events[0].Message, "Chunk 0 failed")
}

func TestOrchestratorRespectsWorkerLimit(t *testing.T) {
	segments := chunking.Plan(900*6, 900, 0)
	var active, peak int32
	runner := chunking.RunnerFunc(func(context.Context, chunking.Segment) ([]records.Record, pipeline.Summary, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return nil, pipeline.Summary{}, nil
	})
	results := chunking.Orchestrator{Parallel: true, MaxWorkers: 2}.Run(context.Background(), segments, runner)
	assert.Len(t, results, 6)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestOrchestratorSequentialRunsInOrder(t *testing.T) {
	segments := chunking.Plan(2000, 900, 5)
	var order []int
	runner := chunking.RunnerFunc(func(_ context.Context, seg chunking.Segment) ([]records.Record, pipeline.Summary, error) {
		order = append(order, seg.Index)
		return nil, pipeline.Summary{}, nil
	})
	chunking.Orchestrator{Parallel: false}.Run(context.Background(), segments, runner)
	assert.Equal(t, []int{0, 1, 2}, order)
}

type staticSplitter struct {
	frames map[int][]pipeline.Frame
}

func (s staticSplitter) Segment(_ context.Context, seg chunking.Segment) (pipeline.FrameSource, error) {
	frames := s.frames[seg.Index]
	next := 0
	return pipeline.FrameSourceFunc(func(context.Context) (pipeline.Frame, error) {
		if next >= len(frames) {
			return pipeline.Frame{}, io.EOF
		}
		f := frames[next]
		next++
		return f, nil
	}), nil
}

func TestPipelineRunnerIsolatesSegments(t *testing.T) {
	splitter := staticSplitter{frames: map[int][]pipeline.Frame{
		0: {{Index: 0}, {Index: 1, Timestamp: 0.1}},
		1: {{Index: 2}},
	}}
	var gotChunks []int
	runner := chunking.PipelineRunner{
		Splitter: splitter,
		Options: func(seg chunking.Segment) pipeline.Options {
			return pipeline.Options{
				VideoID: 7,
				Detector: pipeline.DetectorFunc(func(ctx context.Context, _ pipeline.Frame) ([]pipeline.Detection, error) {
					idx, _ := services.ChunkIndexFromContext(ctx)
					gotChunks = append(gotChunks, idx)
					return nil, nil
				}),
			}
		},
	}
	segments := []chunking.Segment{{Index: 0, End: 900}, {Index: 1, Start: 900, End: 1000}}
	results := chunking.Orchestrator{}.Run(context.Background(), segments, runner)
	require.NoError(t, results[0].Err)
	require.NoError(t, results[1].Err)
	assert.Equal(t, 2, results[0].Summary.Frames)
	assert.Equal(t, 1, results[1].Summary.Frames)
	assert.Equal(t, []int{0, 0, 1}, gotChunks)
}

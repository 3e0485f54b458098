package pipeline_test

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"platewatch/internal/audit"
	"platewatch/internal/classifier"
	"platewatch/internal/pipeline"
	"platewatch/internal/records"
	"platewatch/internal/services"
	"platewatch/internal/store"
	"platewatch/internal/testsupport"
	"platewatch/internal/tracking"
)

// presence describes the frames [from, to) in which a track is visible.
type presence struct {
	id       int
	class    string
	from, to int
}

type scriptDetector struct {
	byFrame    map[int][]pipeline.Detection
	calls      int
	thresholds []float64
	failOn     map[int]bool
}

func (d *scriptDetector) Detect(_ context.Context, frame pipeline.Frame) ([]pipeline.Detection, error) {
	d.calls++
	if d.failOn[frame.Index] {
		return nil, errors.New("inference backend unavailable")
	}
	return d.byFrame[frame.Index], nil
}

func (d *scriptDetector) SetThreshold(v float64) { d.thresholds = append(d.thresholds, v) }

type plateReader map[int]pipeline.LocalRead

func (p plateReader) RecognizeLocal(_ context.Context, _ pipeline.Frame, det pipeline.Detection) (pipeline.LocalRead, error) {
	return p[det.TrackID], nil
}

type classifyFunc func(ctx context.Context, jpeg []byte) classifier.Outcome

func (f classifyFunc) ClassifyBatch(ctx context.Context, jpeg []byte) classifier.Outcome {
	return f(ctx, jpeg)
}

type batchLog struct {
	saved []*store.Batch
}

func (b *batchLog) SaveBatch(_ context.Context, batch *store.Batch) error {
	b.saved = append(b.saved, batch)
	return nil
}

// script builds a 10 fps stream of total frames with the given tracks.
func script(total int, tracks ...presence) ([]pipeline.Frame, *scriptDetector) {
	crop := testsupport.CheckerImage(64, 32, 4)
	det := &scriptDetector{byFrame: make(map[int][]pipeline.Detection)}
	frames := make([]pipeline.Frame, total)
	for i := range frames {
		frames[i] = pipeline.Frame{Index: i, Timestamp: float64(i) / 10}
		for _, tr := range tracks {
			if i < tr.from || i >= tr.to {
				continue
			}
			det.byFrame[i] = append(det.byFrame[i], pipeline.Detection{
				TrackID:    tr.id,
				Tracked:    true,
				BBox:       tracking.BBox{X1: float64(i), Y1: 0, X2: float64(i) + 64, Y2: 32},
				Class:      tr.class,
				Confidence: 0.8,
				Crop:       crop,
			})
		}
	}
	return frames, det
}

func sliceSource(frames []pipeline.Frame) pipeline.FrameSource {
	next := 0
	return pipeline.FrameSourceFunc(func(context.Context) (pipeline.Frame, error) {
		if next >= len(frames) {
			return pipeline.Frame{}, io.EOF
		}
		f := frames[next]
		next++
		return f, nil
	})
}

func baseOptions(t *testing.T) pipeline.Options {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	opts := pipeline.OptionsFromConfig(cfg)
	opts.VideoID = 1
	opts.Settings.TileSize = 64
	return opts
}

func TestRunProducesConsensusRecord(t *testing.T) {
	frames, det := script(40,
		presence{id: 1, class: "car", from: 0, to: 6},
		presence{id: 2, class: "car", from: 0, to: 1},
	)
	repo := records.NewMemoryRepository()
	events := &audit.Memory{}
	batches := &batchLog{}

	opts := baseOptions(t)
	opts.Detector = det
	opts.Recognizer = plateReader{1: {Text: "MH 12 AB 1234", Confidence: 0.7}}
	opts.Records = repo
	opts.Recorder = events
	opts.Batches = batches
	opts.Cost = 0.5
	opts.Classifier = classifyFunc(func(context.Context, []byte) classifier.Outcome {
		return classifier.Outcome{
			Status: classifier.StatusSuccess,
			Raw:    `[{"track_id":1,"plate":"MH12AB1234"}]`,
			Results: []classifier.Result{{
				TrackID: 1, Plate: "MH12AB1234", Color: "white", Make: "maruti",
				Type: "CAR", HelmetStatus: "N/A", Confidence: 0.95,
			}},
		}
	})

	p, err := pipeline.New(opts)
	require.NoError(t, err)
	summary, err := p.Run(context.Background(), sliceSource(frames))
	require.NoError(t, err)

	assert.Equal(t, 40, summary.Frames)
	assert.Equal(t, 2, summary.PeakVehicles)
	assert.Equal(t, 2, summary.TracksCreated)
	assert.Equal(t, 1, summary.TracksDropped)
	assert.Equal(t, 1, summary.TracksBatched)
	assert.Equal(t, 1, summary.Batches)
	assert.Equal(t, 1, summary.BatchesSucceeded)
	assert.Equal(t, 1, summary.ExternalCalls)
	assert.Equal(t, 1, summary.RecordsApplied)
	assert.InDelta(t, 0.5, summary.Cost, 1e-9)

	rec, err := repo.Get(context.Background(), "t1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "MH12AB1234", rec.PlateNumber)
	assert.Equal(t, "CONSENSUS", rec.Provenance)
	assert.InDelta(t, 0.95, rec.Confidence, 1e-9)
	assert.Equal(t, records.RecheckSuccess, rec.RecheckStatus)
	assert.Equal(t, "White Maruti", rec.VehicleInfo)
	assert.Equal(t, "CAR", rec.VehicleType)
	assert.Equal(t, -1, rec.ChunkIndex)
	assert.Equal(t, int64(1), rec.VideoID)
	assert.Equal(t, 0, rec.FrameIndex)
	assert.NotEmpty(t, rec.Signature)
	assert.NotEmpty(t, rec.BatchID)

	missing, err := repo.Get(context.Background(), "t2")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.Len(t, events.Tagged(audit.TagCapturer), 1)
	assert.Equal(t, "Track 1 validated (6 frames)", events.Tagged(audit.TagCapturer)[0].Message)
	require.Len(t, events.Tagged(audit.TagFilter), 1)
	assert.Equal(t, "Dropped Track 2 (Insufficient frames: 1)", events.Tagged(audit.TagFilter)[0].Message)
	require.Len(t, events.Tagged(audit.TagAuditor), 1)
	assert.Equal(t, "Jury: CONSENSUS for Track #1", events.Tagged(audit.TagAuditor)[0].Message)
	assert.Len(t, events.Tagged(audit.TagCloud), 1)

	require.Len(t, batches.saved, 1)
	assert.Equal(t, []int{1}, batches.saved[0].TrackIDs)
	assert.Equal(t, "success", batches.saved[0].Outcome)
	collages, err := filepath.Glob(filepath.Join(opts.CollageDir, "collage_1_*.jpg"))
	require.NoError(t, err)
	assert.Len(t, collages, 1)
}

func TestRunFallsBackToLocalWhenClassifierDisabled(t *testing.T) {
	frames, det := script(30, presence{id: 4, class: "motorcycle", from: 0, to: 5})
	repo := records.NewMemoryRepository()
	events := &audit.Memory{}

	opts := baseOptions(t)
	opts.Detector = det
	opts.Recognizer = plateReader{4: {Text: "KA05MN4321", Confidence: 0.62}}
	opts.Records = repo
	opts.Recorder = events
	opts.Cost = 0.5

	p, err := pipeline.New(opts)
	require.NoError(t, err)
	summary, err := p.Run(context.Background(), sliceSource(frames))
	require.NoError(t, err)

	assert.Equal(t, 0, summary.ExternalCalls)
	assert.Zero(t, summary.Cost)
	assert.Equal(t, 1, summary.BatchesFailed)

	rec, err := repo.Get(context.Background(), "t4")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "KA05MN4321", rec.PlateNumber)
	assert.Equal(t, "LOCAL", rec.Provenance)
	assert.InDelta(t, 0.62, rec.Confidence, 1e-9)
	assert.Equal(t, records.RecheckSkipped, rec.RecheckStatus)
	assert.Equal(t, "MOTORCYCLE", rec.VehicleType)
	assert.Equal(t, "N/A", rec.HelmetStatus)

	cloud := events.Tagged(audit.TagCloud)
	require.Len(t, cloud, 1)
	assert.Contains(t, cloud[0].Message, "skipped (disabled)")
}

func TestRunTrustsSharpConfidentLocalRead(t *testing.T) {
	frames, det := script(30, presence{id: 6, class: "car", from: 0, to: 5})
	repo := records.NewMemoryRepository()
	events := &audit.Memory{}
	batches := &batchLog{}
	calls := 0

	opts := baseOptions(t)
	opts.Detector = det
	opts.Recognizer = plateReader{6: {Text: "DL3CAB1234", Confidence: 0.93}}
	opts.Records = repo
	opts.Recorder = events
	opts.Batches = batches
	opts.Cost = 0.5
	opts.Classifier = classifyFunc(func(context.Context, []byte) classifier.Outcome {
		calls++
		return classifier.Outcome{Status: classifier.StatusSuccess}
	})

	p, err := pipeline.New(opts)
	require.NoError(t, err)
	summary, err := p.Run(context.Background(), sliceSource(frames))
	require.NoError(t, err)

	assert.Zero(t, calls, "trusted read never reaches the classifier")
	assert.Zero(t, summary.ExternalCalls)
	assert.Zero(t, summary.Batches)
	assert.Zero(t, summary.Cost)
	assert.Equal(t, 1, summary.TracksTrusted)
	assert.Equal(t, 1, summary.RecordsApplied)
	assert.Empty(t, batches.saved)

	rec, err := repo.Get(context.Background(), "t6")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "DL3CAB1234", rec.PlateNumber)
	assert.Equal(t, "LOCAL", rec.Provenance)
	assert.Equal(t, records.RecheckSkipped, rec.RecheckStatus)
	assert.InDelta(t, 0.93, rec.Confidence, 1e-9)
	assert.Greater(t, rec.BlurScore, 100.0)
	assert.Empty(t, rec.BatchID)

	require.Len(t, events.Tagged(audit.TagAuditor), 1)
	assert.Equal(t, "Jury: LOCAL for Track #6", events.Tagged(audit.TagAuditor)[0].Message)
	assert.Empty(t, events.Tagged(audit.TagCloud))
}

func TestRunSendsUntrustedLocalReadsToClassifier(t *testing.T) {
	tests := []struct {
		name      string
		read      pipeline.LocalRead
		sharpness float64
	}{
		{name: "low confidence", read: pipeline.LocalRead{Text: "DL3CAB1234", Confidence: 0.7}, sharpness: 100},
		{name: "malformed plate", read: pipeline.LocalRead{Text: "ZZ99", Confidence: 0.95}, sharpness: 100},
		{name: "soft golden crop", read: pipeline.LocalRead{Text: "DL3CAB1234", Confidence: 0.95}, sharpness: 1e12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames, det := script(30, presence{id: 6, class: "car", from: 0, to: 5})
			calls := 0

			opts := baseOptions(t)
			opts.Settings.TrustSharpness = tt.sharpness
			opts.Detector = det
			opts.Recognizer = plateReader{6: tt.read}
			opts.Records = records.NewMemoryRepository()
			opts.Classifier = classifyFunc(func(context.Context, []byte) classifier.Outcome {
				calls++
				return classifier.Outcome{Status: classifier.StatusSuccess, Raw: "[]"}
			})

			p, err := pipeline.New(opts)
			require.NoError(t, err)
			summary, err := p.Run(context.Background(), sliceSource(frames))
			require.NoError(t, err)

			assert.Equal(t, 1, calls)
			assert.Zero(t, summary.TracksTrusted)
			assert.Equal(t, 1, summary.TracksBatched)
		})
	}
}

func TestRunSkipsTrustWhenDisabled(t *testing.T) {
	frames, det := script(30, presence{id: 6, class: "car", from: 0, to: 5})
	calls := 0

	opts := baseOptions(t)
	opts.Settings.TrustConfidence = 0
	opts.Detector = det
	opts.Recognizer = plateReader{6: {Text: "DL3CAB1234", Confidence: 0.99}}
	opts.Records = records.NewMemoryRepository()
	opts.Classifier = classifyFunc(func(context.Context, []byte) classifier.Outcome {
		calls++
		return classifier.Outcome{Status: classifier.StatusSuccess, Raw: "[]"}
	})

	p, err := pipeline.New(opts)
	require.NoError(t, err)
	summary, err := p.Run(context.Background(), sliceSource(frames))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Zero(t, summary.TracksTrusted)
}

func TestRunRejectsSignageFromLocalReader(t *testing.T) {
	frames, det := script(30, presence{id: 9, class: "car", from: 0, to: 5})
	repo := records.NewMemoryRepository()

	opts := baseOptions(t)
	opts.Detector = det
	opts.Recognizer = plateReader{9: {Text: "STOP 4", Confidence: 0.99}}
	opts.Records = repo

	p, err := pipeline.New(opts)
	require.NoError(t, err)
	_, err = p.Run(context.Background(), sliceSource(frames))
	require.NoError(t, err)

	rec, err := repo.Get(context.Background(), "t9")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, records.NoPlate, rec.PlateNumber)
	assert.Zero(t, rec.Confidence)
}

func TestRunDrainsFullBatchesBeforeEndOfStream(t *testing.T) {
	frames, det := script(30,
		presence{id: 1, class: "car", from: 0, to: 4},
		presence{id: 2, class: "car", from: 0, to: 4},
		presence{id: 3, class: "car", from: 0, to: 4},
	)
	batches := &batchLog{}
	var callFrames []int

	opts := baseOptions(t)
	opts.Settings.CollageSize = 2
	opts.Detector = det
	opts.Records = records.NewMemoryRepository()
	opts.Batches = batches
	opts.Classifier = classifyFunc(func(context.Context, []byte) classifier.Outcome {
		callFrames = append(callFrames, det.calls)
		return classifier.Outcome{Status: classifier.StatusSuccess, Raw: "[]"}
	})

	p, err := pipeline.New(opts)
	require.NoError(t, err)
	summary, err := p.Run(context.Background(), sliceSource(frames))
	require.NoError(t, err)

	require.Len(t, batches.saved, 2)
	assert.Equal(t, []int{1, 2}, batches.saved[0].TrackIDs)
	assert.Equal(t, []int{3}, batches.saved[1].TrackIDs)
	require.Len(t, callFrames, 2)
	assert.Less(t, callFrames[0], len(frames), "full batch dispatched inside the loop")
	assert.Equal(t, len(frames), callFrames[1], "remainder dispatched at flush")
	assert.Equal(t, 3, summary.TracksBatched)
	assert.Equal(t, 3, summary.RecordsApplied)
}

func TestRunWrapsSourceFailureAsInputError(t *testing.T) {
	_, det := script(0)
	calls := 0
	source := pipeline.FrameSourceFunc(func(context.Context) (pipeline.Frame, error) {
		calls++
		if calls == 3 {
			return pipeline.Frame{}, errors.New("truncated line")
		}
		return pipeline.Frame{Index: calls - 1, Timestamp: float64(calls-1) / 10}, nil
	})

	opts := baseOptions(t)
	opts.Detector = det
	opts.Records = records.NewMemoryRepository()
	p, err := pipeline.New(opts)
	require.NoError(t, err)

	summary, err := p.Run(context.Background(), source)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrInput)
	assert.Equal(t, 2, summary.Frames)
}

func TestRunTunesThresholdOnCadence(t *testing.T) {
	frames, det := script(10)
	det.failOn = map[int]bool{3: true}
	events := &audit.Memory{}

	opts := baseOptions(t)
	opts.Settings.TuneIntervalFrames = 5
	opts.Detector = det
	opts.Records = records.NewMemoryRepository()
	opts.Recorder = events

	p, err := pipeline.New(opts)
	require.NoError(t, err)
	summary, err := p.Run(context.Background(), sliceSource(frames))
	require.NoError(t, err)

	assert.Equal(t, []float64{0.15, 0.10}, det.thresholds)
	assert.InDelta(t, 0.10, summary.Threshold, 1e-9)
	assert.Len(t, events.Tagged(audit.TagMonitor), 1)
	assert.Len(t, events.Tagged(audit.TagError), 1, "detector failure is audited, not fatal")
	assert.Equal(t, 10, summary.Frames)
}

func TestRunFlagsSemanticMismatch(t *testing.T) {
	frames, det := script(30, presence{id: 5, class: "bus", from: 0, to: 5})
	repo := records.NewMemoryRepository()
	events := &audit.Memory{}

	opts := baseOptions(t)
	opts.Detector = det
	opts.Recognizer = plateReader{5: {Text: "KA01", Confidence: 0.5}}
	opts.Records = repo
	opts.Recorder = events

	p, err := pipeline.New(opts)
	require.NoError(t, err)
	_, err = p.Run(context.Background(), sliceSource(frames))
	require.NoError(t, err)

	rec, err := repo.Get(context.Background(), "t5")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "LOCAL (Semantic Flag)", rec.Provenance)
	assert.Len(t, events.Tagged(audit.TagSemantic), 1)
}

func TestRunShiftsEventTimestampsByOffset(t *testing.T) {
	frames, det := script(30,
		presence{id: 1, class: "car", from: 0, to: 6},
		presence{id: 2, class: "car", from: 3, to: 4},
	)
	repo := records.NewMemoryRepository()
	events := &audit.Memory{}

	opts := baseOptions(t)
	opts.ChunkIndex = 2
	opts.TimeOffset = 1800
	opts.Detector = det
	opts.Recognizer = plateReader{1: {Text: "KA01AB1234", Confidence: 0.6}}
	opts.Records = repo
	opts.Recorder = events

	p, err := pipeline.New(opts)
	require.NoError(t, err)
	_, err = p.Run(context.Background(), sliceSource(frames))
	require.NoError(t, err)

	capturer := events.Tagged(audit.TagCapturer)
	require.Len(t, capturer, 1)
	require.NotNil(t, capturer[0].Timestamp)
	assert.GreaterOrEqual(t, *capturer[0].Timestamp, 1800.0)
	assert.Less(t, *capturer[0].Timestamp, 1801.0)

	dropped := events.Tagged(audit.TagFilter)
	require.Len(t, dropped, 1)
	require.NotNil(t, dropped[0].Timestamp)
	assert.InDelta(t, 1800.3, *dropped[0].Timestamp, 1e-9)

	for _, e := range events.Events {
		if e.Timestamp != nil {
			assert.GreaterOrEqual(t, *e.Timestamp, 1800.0, "%s event not shifted", e.Tag)
		}
	}

	rec, err := repo.Get(context.Background(), "t1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Less(t, rec.Timestamp, 1.0, "records stay segment-relative until merge")
}

func TestRunStopsOnCancellation(t *testing.T) {
	frames, det := script(10)
	opts := baseOptions(t)
	opts.Detector = det
	opts.Records = records.NewMemoryRepository()
	p, err := pipeline.New(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Run(ctx, sliceSource(frames))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRequiresCapabilities(t *testing.T) {
	_, err := pipeline.New(pipeline.Options{})
	assert.ErrorIs(t, err, services.ErrConfiguration)
}

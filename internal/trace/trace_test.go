package trace_test

import (
	"context"
	"errors"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"platewatch/internal/chunking"
	"platewatch/internal/pipeline"
	"platewatch/internal/records"
	"platewatch/internal/services"
	"platewatch/internal/testsupport"
	"platewatch/internal/trace"
)

func id(v int) *int { return &v }

// writeFixture writes a 10 fps trace of n frames. Track 1 is visible in the
// first six frames with a crop file and an OCR read; track 2 appears once
// with low confidence.
func writeFixture(t *testing.T, n int) (string, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "crops"), 0o755))
	testsupport.WriteJPEG(t, filepath.Join(dir, "crops", "t1.jpg"), testsupport.CheckerImage(96, 48, 4))

	frames := make([]trace.FrameRecord, n)
	for i := range frames {
		frames[i] = trace.FrameRecord{Index: i, Timestamp: float64(i) / 10, Detections: []trace.DetectionRecord{}}
		if i < 6 {
			frames[i].Detections = append(frames[i].Detections, trace.DetectionRecord{
				BBox:       []float64{10, 10, 106, 58},
				TrackID:    id(1),
				Class:      "car",
				Confidence: 0.9,
				Crop:       "crops/t1.jpg",
				OCR:        &trace.OCR{Text: "KA05MN4321", Confidence: 0.66},
			})
		}
		if i == 0 {
			frames[i].Detections = append(frames[i].Detections,
				trace.DetectionRecord{BBox: []float64{0, 0, 10, 10}, TrackID: id(2), Class: "bus", Confidence: 0.12},
				trace.DetectionRecord{BBox: []float64{0, 0, 5, 5}, Class: "person", Confidence: 0.95},
			)
		}
	}
	return testsupport.WriteTrace(t, dir, frames), dir
}

func drain(t *testing.T, src pipeline.FrameSource) []pipeline.Frame {
	t.Helper()
	var out []pipeline.Frame
	for {
		f, err := src.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, f)
	}
}

func TestLoadAndDuration(t *testing.T) {
	path, _ := writeFixture(t, 20)
	tr, err := trace.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20, tr.Len())
	assert.InDelta(t, 2.0, tr.Duration(), 1e-9)

	rec, ok := tr.Frame(0)
	require.True(t, ok)
	assert.Len(t, rec.Detections, 3)
	_, ok = tr.Frame(99)
	assert.False(t, ok)
}

func TestLoadFailuresAreInputErrors(t *testing.T) {
	_, err := trace.Load(filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.ErrorIs(t, err, services.ErrInput)

	bad := filepath.Join(t.TempDir(), "bad.jsonl")
	require.NoError(t, os.WriteFile(bad, []byte("{\"index\":0,\"timestamp\":0}\nnot json\n"), 0o644))
	_, err = trace.Load(bad)
	assert.ErrorIs(t, err, services.ErrInput)
	assert.Contains(t, err.Error(), "line 2")

	backwards := filepath.Join(t.TempDir(), "backwards.jsonl")
	require.NoError(t, os.WriteFile(backwards, []byte("{\"index\":0,\"timestamp\":1}\n{\"index\":1,\"timestamp\":0.5}\n"), 0o644))
	_, err = trace.Load(backwards)
	assert.ErrorIs(t, err, services.ErrInput)

	badBox := filepath.Join(t.TempDir(), "box.jsonl")
	require.NoError(t, os.WriteFile(badBox, []byte("{\"index\":0,\"timestamp\":0,\"detections\":[{\"bbox\":[1,2]}]}\n"), 0o644))
	_, err = trace.Load(badBox)
	assert.ErrorIs(t, err, services.ErrInput)
}

func TestSourceWindowRebases(t *testing.T) {
	path, _ := writeFixture(t, 20)
	tr, err := trace.Load(path)
	require.NoError(t, err)

	all := drain(t, tr.Source(0, 0, false))
	assert.Len(t, all, 20)

	window := drain(t, tr.Source(0.5, 1.0, true))
	require.Len(t, window, 5)
	assert.Equal(t, 5, window[0].Index)
	assert.InDelta(t, 0.0, window[0].Timestamp, 1e-9)
	assert.InDelta(t, 0.4, window[4].Timestamp, 1e-9)

	src, err := tr.Segment(context.Background(), chunking.Segment{Index: 1, Start: 1.0, End: tr.Duration()})
	require.NoError(t, err)
	tail := drain(t, src)
	require.Len(t, tail, 10)
	assert.Equal(t, 19, tail[9].Index)
}

func TestDetectorHonoursThreshold(t *testing.T) {
	path, _ := writeFixture(t, 3)
	tr, err := trace.Load(path)
	require.NoError(t, err)
	det := trace.NewDetector(tr)

	hits, err := det.Detect(context.Background(), pipeline.Frame{Index: 0})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.True(t, hits[0].Tracked)
	assert.Equal(t, "CAR", hits[0].Class)
	require.NotNil(t, hits[0].Crop)
	assert.Equal(t, 96, hits[0].Crop.Bounds().Dx())
	assert.False(t, hits[2].Tracked)

	det.SetThreshold(0.15)
	hits, err = det.Detect(context.Background(), pipeline.Frame{Index: 0})
	require.NoError(t, err)
	assert.Len(t, hits, 2, "low-confidence bus is hidden")
}

func TestDetectorCutsCropFromFrameImage(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteJPEG(t, filepath.Join(dir, "frame0.jpg"), testsupport.SolidImage(200, 100, color.White))
	path := testsupport.WriteTrace(t, dir, []trace.FrameRecord{{
		Index: 0, Image: "frame0.jpg",
		Detections: []trace.DetectionRecord{{BBox: []float64{150, 50, 260, 90}, TrackID: id(3), Confidence: 0.7}},
	}})
	tr, err := trace.Load(path)
	require.NoError(t, err)

	frames := drain(t, tr.Source(0, 0, false))
	require.Len(t, frames, 1)
	require.NotNil(t, frames[0].Image)

	hits, err := trace.NewDetector(tr).Detect(context.Background(), frames[0])
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.NotNil(t, hits[0].Crop)
	b := hits[0].Crop.Bounds()
	assert.Equal(t, 50, b.Dx(), "crop is clipped to the frame")
	assert.Equal(t, 40, b.Dy())
}

func TestRecognizerReplaysOCR(t *testing.T) {
	path, _ := writeFixture(t, 3)
	tr, err := trace.Load(path)
	require.NoError(t, err)
	rec := tr.Recognizer()

	read, err := rec.RecognizeLocal(context.Background(), pipeline.Frame{Index: 1}, pipeline.Detection{TrackID: 1, Tracked: true})
	require.NoError(t, err)
	assert.Equal(t, "KA05MN4321", read.Text)
	assert.InDelta(t, 0.66, read.Confidence, 1e-9)

	read, err = rec.RecognizeLocal(context.Background(), pipeline.Frame{Index: 0}, pipeline.Detection{TrackID: 2, Tracked: true})
	require.NoError(t, err)
	assert.Empty(t, read.Text)
}

func TestTraceDrivesPipeline(t *testing.T) {
	path, _ := writeFixture(t, 30)
	tr, err := trace.Load(path)
	require.NoError(t, err)

	cfg := testsupport.NewConfig(t)
	repo := records.NewMemoryRepository()
	opts := pipeline.OptionsFromConfig(cfg)
	opts.VideoID = 3
	opts.Settings.TileSize = 64
	opts.Detector = trace.NewDetector(tr)
	opts.Recognizer = tr.Recognizer()
	opts.Records = repo

	p, err := pipeline.New(opts)
	require.NoError(t, err)
	summary, err := p.Run(context.Background(), tr.Source(0, 0, false))
	require.NoError(t, err)

	assert.Equal(t, 30, summary.Frames)
	assert.Equal(t, 1, summary.TracksCreated, "track 2 is below the HIGH starting threshold")
	require.Equal(t, 1, repo.Len())
	got := repo.Records()[0]
	assert.Equal(t, "t1", got.TrackKey)
	assert.Equal(t, "KA05MN4321", got.PlateNumber)
	assert.Equal(t, "LOCAL", got.Provenance)
}

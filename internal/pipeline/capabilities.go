package pipeline

import (
	"context"
	"image"

	"platewatch/internal/tracking"
)

// Frame is one decoded video frame. Image may be nil when detections carry
// their own crops.
type Frame struct {
	Index     int
	Timestamp float64
	Image     image.Image
}

// Detection is one detector hit. Untracked detections are ignored by the
// ledger.
type Detection struct {
	TrackID    int
	Tracked    bool
	BBox       tracking.BBox
	Class      string
	Confidence float64
	Crop       image.Image
}

// LocalRead is a plate read from the local recognizer. An empty Text means
// nothing was read.
type LocalRead struct {
	Text       string
	Confidence float64
}

// FrameSource yields frames in order and returns io.EOF after the last one.
type FrameSource interface {
	Next(ctx context.Context) (Frame, error)
}

// Detector finds and tracks vehicles in a frame.
type Detector interface {
	Detect(ctx context.Context, frame Frame) ([]Detection, error)
}

// LocalRecognizer reads a plate from a detection's crop.
type LocalRecognizer interface {
	RecognizeLocal(ctx context.Context, frame Frame, det Detection) (LocalRead, error)
}

// FrameSourceFunc adapts a function to FrameSource.
type FrameSourceFunc func(ctx context.Context) (Frame, error)

// Next implements FrameSource.
func (f FrameSourceFunc) Next(ctx context.Context) (Frame, error) { return f(ctx) }

// DetectorFunc adapts a function to Detector.
type DetectorFunc func(ctx context.Context, frame Frame) ([]Detection, error)

// Detect implements Detector.
func (f DetectorFunc) Detect(ctx context.Context, frame Frame) ([]Detection, error) {
	return f(ctx, frame)
}

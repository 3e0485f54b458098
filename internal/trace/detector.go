package trace

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"strings"
	"sync"

	_ "golang.org/x/image/webp"

	"platewatch/internal/pipeline"
	"platewatch/internal/tracking"
)

// Detector replays the trace's detections, hiding those below the current
// confidence threshold. Create one per run.
type Detector struct {
	trace *Trace

	mu        sync.Mutex
	threshold float64
}

// NewDetector returns a detector over t with no threshold applied.
func NewDetector(t *Trace) *Detector {
	return &Detector{trace: t}
}

// SetThreshold implements threshold.Setter.
func (d *Detector) SetThreshold(value float64) {
	d.mu.Lock()
	d.threshold = value
	d.mu.Unlock()
}

// Threshold returns the threshold in effect.
func (d *Detector) Threshold() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.threshold
}

// Detect implements pipeline.Detector. Crops come from the detection's crop
// file or, failing that, from the frame image cut to the bbox.
func (d *Detector) Detect(_ context.Context, frame pipeline.Frame) ([]pipeline.Detection, error) {
	rec, ok := d.trace.Frame(frame.Index)
	if !ok {
		return nil, nil
	}
	threshold := d.Threshold()
	out := make([]pipeline.Detection, 0, len(rec.Detections))
	for _, det := range rec.Detections {
		if det.Confidence < threshold {
			continue
		}
		box := tracking.BBox{X1: det.BBox[0], Y1: det.BBox[1], X2: det.BBox[2], Y2: det.BBox[3]}
		crop, err := d.crop(frame, det, box)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", frame.Index, err)
		}
		hit := pipeline.Detection{
			BBox:       box,
			Class:      strings.ToUpper(strings.TrimSpace(det.Class)),
			Confidence: det.Confidence,
			Crop:       crop,
		}
		if det.TrackID != nil {
			hit.TrackID = *det.TrackID
			hit.Tracked = true
		}
		out = append(out, hit)
	}
	return out, nil
}

func (d *Detector) crop(frame pipeline.Frame, det DetectionRecord, box tracking.BBox) (image.Image, error) {
	if det.Crop != "" {
		return decodeFile(d.trace.resolve(det.Crop))
	}
	if frame.Image == nil {
		return nil, nil
	}
	sub, ok := frame.Image.(interface {
		SubImage(r image.Rectangle) image.Image
	})
	if !ok {
		return nil, nil
	}
	rect := image.Rect(
		int(math.Floor(box.X1)), int(math.Floor(box.Y1)),
		int(math.Ceil(box.X2)), int(math.Ceil(box.Y2)),
	).Intersect(frame.Image.Bounds())
	if rect.Empty() {
		return nil, nil
	}
	return sub.SubImage(rect), nil
}

// Recognizer replays the trace's local OCR reads.
type Recognizer struct {
	trace *Trace
}

// Recognizer returns a LocalRecognizer over t.
func (t *Trace) Recognizer() Recognizer {
	return Recognizer{trace: t}
}

// RecognizeLocal implements pipeline.LocalRecognizer.
func (r Recognizer) RecognizeLocal(_ context.Context, frame pipeline.Frame, det pipeline.Detection) (pipeline.LocalRead, error) {
	rec, ok := r.trace.Frame(frame.Index)
	if !ok || !det.Tracked {
		return pipeline.LocalRead{}, nil
	}
	for _, candidate := range rec.Detections {
		if candidate.TrackID == nil || *candidate.TrackID != det.TrackID || candidate.OCR == nil {
			continue
		}
		return pipeline.LocalRead{Text: candidate.OCR.Text, Confidence: candidate.OCR.Confidence}, nil
	}
	return pipeline.LocalRead{}, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}
	return img, nil
}

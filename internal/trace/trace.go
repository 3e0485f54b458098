package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"platewatch/internal/services"
)

const maxLineBytes = 8 << 20

// OCR is a local plate read attached to a detection.
type OCR struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// DetectionRecord is one detection line item. A nil TrackID marks an
// untracked detection.
type DetectionRecord struct {
	BBox       []float64 `json:"bbox"`
	TrackID    *int      `json:"track_id,omitempty"`
	Class      string    `json:"class,omitempty"`
	Confidence float64   `json:"confidence"`
	Crop       string    `json:"crop,omitempty"`
	OCR        *OCR      `json:"ocr,omitempty"`
}

// FrameRecord is one trace line.
type FrameRecord struct {
	Index      int               `json:"index"`
	Timestamp  float64           `json:"timestamp"`
	Image      string            `json:"image,omitempty"`
	Detections []DetectionRecord `json:"detections"`
}

// Trace is a fully loaded detection trace. It is read-only after Load and
// safe to share between chunk runs.
type Trace struct {
	path    string
	dir     string
	frames  []FrameRecord
	byIndex map[int]int
}

// Load reads and validates the trace at path. Any failure wraps
// services.ErrInput.
func Load(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrInput, "trace", "open", path, err)
	}
	defer f.Close()

	t := &Trace{path: path, dir: filepath.Dir(path), byIndex: make(map[int]int)}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var frame FrameRecord
		if err := json.Unmarshal([]byte(raw), &frame); err != nil {
			return nil, services.Wrap(services.ErrInput, "trace", "parse", fmt.Sprintf("%s line %d", path, line), err)
		}
		if err := t.append(frame); err != nil {
			return nil, services.Wrap(services.ErrInput, "trace", "validate", fmt.Sprintf("%s line %d", path, line), err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, services.Wrap(services.ErrInput, "trace", "read", path, err)
	}
	return t, nil
}

func (t *Trace) append(frame FrameRecord) error {
	if _, dup := t.byIndex[frame.Index]; dup {
		return fmt.Errorf("duplicate frame index %d", frame.Index)
	}
	if n := len(t.frames); n > 0 && frame.Timestamp < t.frames[n-1].Timestamp {
		return fmt.Errorf("timestamp %.3f goes backwards", frame.Timestamp)
	}
	for i, det := range frame.Detections {
		if len(det.BBox) != 4 {
			return fmt.Errorf("detection %d: bbox needs 4 values, got %d", i, len(det.BBox))
		}
	}
	t.byIndex[frame.Index] = len(t.frames)
	t.frames = append(t.frames, frame)
	return nil
}

// Path returns the file the trace was loaded from.
func (t *Trace) Path() string { return t.path }

// Len returns the number of frames.
func (t *Trace) Len() int { return len(t.frames) }

// Duration returns the covered time in seconds: the last timestamp plus one
// mean frame interval.
func (t *Trace) Duration() float64 {
	n := len(t.frames)
	if n == 0 {
		return 0
	}
	last := t.frames[n-1].Timestamp
	if n == 1 {
		return last
	}
	interval := (last - t.frames[0].Timestamp) / float64(n-1)
	return last + interval
}

// Frame returns the record for a frame index.
func (t *Trace) Frame(index int) (FrameRecord, bool) {
	pos, ok := t.byIndex[index]
	if !ok {
		return FrameRecord{}, false
	}
	return t.frames[pos], true
}

func (t *Trace) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(t.dir, path)
}

package tracking

import (
	"image"
	"math"
)

// State is a track's admission lifecycle position.
type State string

const (
	StateActive  State = "ACTIVE"
	StateReady   State = "READY"
	StateBatched State = "BATCHED"
	StateDropped State = "DROPPED"
)

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool {
	return s == StateBatched || s == StateDropped
}

// BBox is an axis-aligned box in frame pixel coordinates.
type BBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Area returns the box area, or 0 for a degenerate box.
func (b BBox) Area() float64 {
	w := b.X2 - b.X1
	h := b.Y2 - b.Y1
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Center returns the box centre.
func (b BBox) Center() (float64, float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// Golden is the best crop seen for a track so far.
type Golden struct {
	Crop       image.Image
	Area       float64
	Sharpness  float64
	FrameIndex int
	Timestamp  float64
}

// LocalCandidate is a plate read from the local recognizer.
type LocalCandidate struct {
	Text       string
	Confidence float64
}

// Track is the per-run state of one tracked vehicle.
type Track struct {
	ID           int
	FirstSeen    float64
	LastSeen     float64
	Frames       int
	Processed    bool
	State        State
	Golden       *Golden
	Local        *LocalCandidate
	Signature    string
	Class        string
	Displacement float64

	firstX, firstY float64
}

// HasGolden reports whether a golden frame has been captured.
func (t *Track) HasGolden() bool {
	return t != nil && t.Golden != nil && t.Golden.Crop != nil
}

// Key returns the unchunked record key for the track.
func (t *Track) Key() string {
	return Key(-1, t.ID)
}

func (t *Track) moveTo(b BBox) {
	x, y := b.Center()
	t.Displacement = math.Hypot(x-t.firstX, y-t.firstY)
}

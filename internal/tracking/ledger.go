package tracking

import (
	"image"
	"log/slog"

	"platewatch/internal/logging"
	"platewatch/internal/quality"
)

// Scorer rates crop sharpness.
type Scorer interface {
	Score(crop image.Image) float64
}

// Observation is one tracked detection in one frame.
type Observation struct {
	TrackID    int
	BBox       BBox
	Crop       image.Image
	Timestamp  float64
	FrameIndex int
	Class      string
}

// Options configures a Ledger. Zero values select defaults.
type Options struct {
	Scorer            Scorer
	SharpnessFloor    float64
	SignatureInterval int
	Logger            *slog.Logger
}

// Ledger owns every track of one run. It is not safe for concurrent use.
type Ledger struct {
	scorer            Scorer
	floor             float64
	signatureInterval int
	logger            *slog.Logger

	tracks map[int]*Track
	order  []*Track
}

// NewLedger constructs an empty ledger.
func NewLedger(opts Options) *Ledger {
	if opts.Scorer == nil {
		opts.Scorer = quality.Laplacian{}
	}
	if opts.SharpnessFloor <= 0 {
		opts.SharpnessFloor = quality.DefaultFloor
	}
	if opts.SignatureInterval <= 0 {
		opts.SignatureInterval = 15
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Ledger{
		scorer:            opts.Scorer,
		floor:             opts.SharpnessFloor,
		signatureInterval: opts.SignatureInterval,
		logger:            logger,
		tracks:            make(map[int]*Track),
	}
}

// Observe records one sighting and returns the updated track.
//
// The golden frame is replaced only when the crop is strictly larger than the
// stored one and sharper than the floor, so its area never decreases.
func (l *Ledger) Observe(obs Observation) *Track {
	track, ok := l.tracks[obs.TrackID]
	if !ok {
		x, y := obs.BBox.Center()
		track = &Track{
			ID:        obs.TrackID,
			FirstSeen: obs.Timestamp,
			State:     StateActive,
			Class:     obs.Class,
			firstX:    x,
			firstY:    y,
		}
		l.tracks[obs.TrackID] = track
		l.order = append(l.order, track)
		l.logger.Debug("track created",
			logging.Track(obs.TrackID),
			logging.Int("frame_index", obs.FrameIndex),
		)
	}

	track.LastSeen = obs.Timestamp
	track.Frames++
	track.moveTo(obs.BBox)
	if track.Class == "" && obs.Class != "" {
		track.Class = obs.Class
	}

	if obs.Crop != nil {
		area := obs.BBox.Area()
		if area <= 0 {
			b := obs.Crop.Bounds()
			area = float64(b.Dx() * b.Dy())
		}
		stored := 0.0
		if track.Golden != nil {
			stored = track.Golden.Area
		}
		if area > stored {
			if sharpness := l.scorer.Score(obs.Crop); quality.Trustworthy(sharpness, l.floor) {
				track.Golden = &Golden{
					Crop:       obs.Crop,
					Area:       area,
					Sharpness:  sharpness,
					FrameIndex: obs.FrameIndex,
					Timestamp:  obs.Timestamp,
				}
			}
		}
		if track.Frames == 1 || track.Frames%l.signatureInterval == 0 {
			if sig := ComputeSignature(obs.Crop); sig != "" {
				track.Signature = sig
			}
		}
	}
	return track
}

// OfferLocal keeps candidate when it beats the track's current local read.
// It reports whether the candidate was kept.
func (l *Ledger) OfferLocal(id int, candidate LocalCandidate) bool {
	track, ok := l.tracks[id]
	if !ok || candidate.Text == "" {
		return false
	}
	if track.Local != nil && candidate.Confidence <= track.Local.Confidence {
		return false
	}
	c := candidate
	track.Local = &c
	return true
}

// Get returns the track with the given id, or nil.
func (l *Ledger) Get(id int) *Track {
	return l.tracks[id]
}

// ActiveCount returns the number of tracks last seen less than window
// seconds before now.
func (l *Ledger) ActiveCount(now, window float64) int {
	count := 0
	for _, track := range l.order {
		if now-track.LastSeen < window {
			count++
		}
	}
	return count
}

// Tracks returns every track in creation order.
func (l *Ledger) Tracks() []*Track {
	out := make([]*Track, len(l.order))
	copy(out, l.order)
	return out
}

// Len returns the number of tracks created.
func (l *Ledger) Len() int {
	return len(l.order)
}

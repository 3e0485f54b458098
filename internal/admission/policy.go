package admission

import (
	"platewatch/internal/tracking"
)

// Reason explains a drop decision.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonInsufficientFrames Reason = "insufficient_frames"
	ReasonNoGolden           Reason = "no_golden_frame"
	ReasonGhost              Reason = "ghost"
)

// Decision is one state transition taken by the policy.
type Decision struct {
	Track    *tracking.Track
	From     tracking.State
	To       tracking.State
	Reason   Reason
	Periodic bool
}

// Admitted reports whether the decision moved the track to READY.
func (d Decision) Admitted() bool {
	return d.To == tracking.StateReady
}

// Options configures a Policy. Zero values select defaults.
type Options struct {
	Tier               Tier
	IdleTimeoutSeconds float64
	RebatchInterval    int
	MinDisplacement    float64
}

// Policy decides when tracks leave ACTIVE.
type Policy struct {
	thresholds      Thresholds
	idleTimeout     float64
	rebatchInterval int
	minDisplacement float64
}

// New constructs a Policy.
func New(opts Options) *Policy {
	if opts.IdleTimeoutSeconds <= 0 {
		opts.IdleTimeoutSeconds = 1.5
	}
	if opts.RebatchInterval <= 0 {
		opts.RebatchInterval = 100
	}
	return &Policy{
		thresholds:      ThresholdsFor(opts.Tier),
		idleTimeout:     opts.IdleTimeoutSeconds,
		rebatchInterval: opts.RebatchInterval,
		minDisplacement: opts.MinDisplacement,
	}
}

// Thresholds returns the frame thresholds in effect.
func (p *Policy) Thresholds() Thresholds {
	return p.thresholds
}

// Evaluate runs once per processed frame. Tracks idle for longer than the
// timeout are admitted or dropped; long-lived tracks are admitted at every
// re-batch interval. Only unprocessed ACTIVE tracks are considered, and each
// returned decision has already been applied to its track.
func (p *Policy) Evaluate(now float64, tracks []*tracking.Track) []Decision {
	var decisions []Decision
	for _, track := range tracks {
		if track.Processed || track.State != tracking.StateActive {
			continue
		}
		if now-track.LastSeen > p.idleTimeout {
			decisions = append(decisions, p.settle(track, p.thresholds.InLoop))
			continue
		}
		if track.Frames >= p.rebatchInterval && track.Frames%p.rebatchInterval == 0 && track.HasGolden() {
			decisions = append(decisions, transition(track, tracking.StateReady, ReasonNone, true))
		}
	}
	return decisions
}

// Flush settles every remaining ACTIVE track at end of stream using the
// flush threshold.
func (p *Policy) Flush(tracks []*tracking.Track) []Decision {
	var decisions []Decision
	for _, track := range tracks {
		if track.Processed || track.State != tracking.StateActive {
			continue
		}
		decisions = append(decisions, p.settle(track, p.thresholds.Flush))
	}
	return decisions
}

// Reject drops a READY track that can no longer be batched.
func Reject(track *tracking.Track, reason Reason) (Decision, bool) {
	if track == nil || track.State != tracking.StateReady {
		return Decision{}, false
	}
	return transition(track, tracking.StateDropped, reason, false), true
}

func (p *Policy) settle(track *tracking.Track, minFrames int) Decision {
	switch {
	case p.isGhost(track):
		return transition(track, tracking.StateDropped, ReasonGhost, false)
	case track.Frames < minFrames:
		return transition(track, tracking.StateDropped, ReasonInsufficientFrames, false)
	case !track.HasGolden():
		return transition(track, tracking.StateDropped, ReasonNoGolden, false)
	default:
		return transition(track, tracking.StateReady, ReasonNone, false)
	}
}

func (p *Policy) isGhost(track *tracking.Track) bool {
	return p.minDisplacement > 0 && track.Displacement < p.minDisplacement
}

func transition(track *tracking.Track, to tracking.State, reason Reason, periodic bool) Decision {
	d := Decision{Track: track, From: track.State, To: to, Reason: reason, Periodic: periodic}
	track.State = to
	return d
}

package classifier

import "context"

// Status is the typed result of one batch classification attempt.
type Status string

const (
	StatusSuccess       Status = "success"
	StatusTimeout       Status = "timeout"
	StatusQuotaExceeded Status = "quota_exceeded"
	StatusMalformed     Status = "malformed"
	StatusFailed        Status = "failed"
	StatusDisabled      Status = "disabled"
	// StatusCancelled means the context ended before the call went out.
	StatusCancelled Status = "cancelled"
)

// Attempted reports whether the status implies an external call was made.
func (s Status) Attempted() bool {
	return s != StatusQuotaExceeded && s != StatusDisabled && s != StatusCancelled
}

// Outcome is the complete answer for one batch.
type Outcome struct {
	Status  Status
	Results []Result
	Raw     string
	Err     error
}

// ByTrack indexes results by track id. Later duplicates win.
func (o Outcome) ByTrack() map[int]Result {
	out := make(map[int]Result, len(o.Results))
	for _, res := range o.Results {
		out[res.TrackID] = res
	}
	return out
}

// BatchClassifier classifies one collage JPEG.
type BatchClassifier interface {
	ClassifyBatch(ctx context.Context, jpeg []byte) Outcome
}

// Disabled is a BatchClassifier that never calls out.
type Disabled struct{}

// ClassifyBatch implements BatchClassifier.
func (Disabled) ClassifyBatch(context.Context, []byte) Outcome {
	return Outcome{Status: StatusDisabled}
}

// Chain tries providers in order and returns the first success. When every
// provider fails the last outcome is returned.
type Chain []BatchClassifier

// ClassifyBatch implements BatchClassifier.
func (c Chain) ClassifyBatch(ctx context.Context, jpeg []byte) Outcome {
	last := Outcome{Status: StatusDisabled}
	for _, provider := range c {
		if provider == nil {
			continue
		}
		out := provider.ClassifyBatch(ctx, jpeg)
		if out.Status == StatusSuccess {
			return out
		}
		last = out
		if ctx.Err() != nil {
			break
		}
	}
	return last
}

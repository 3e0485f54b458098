package trace

import (
	"context"
	"io"

	"platewatch/internal/chunking"
	"platewatch/internal/pipeline"
)

// Source yields trace frames inside a time window.
type Source struct {
	trace  *Trace
	start  float64
	end    float64
	rebase bool
	pos    int
}

// Source returns frames with start <= timestamp < end. A non-positive end is
// unbounded. With rebase, timestamps are reported relative to start.
func (t *Trace) Source(start, end float64, rebase bool) *Source {
	return &Source{trace: t, start: start, end: end, rebase: rebase}
}

// Next implements pipeline.FrameSource.
func (s *Source) Next(ctx context.Context) (pipeline.Frame, error) {
	for s.pos < len(s.trace.frames) {
		if err := ctx.Err(); err != nil {
			return pipeline.Frame{}, err
		}
		rec := s.trace.frames[s.pos]
		s.pos++
		if rec.Timestamp < s.start {
			continue
		}
		if s.end > 0 && rec.Timestamp >= s.end {
			s.pos = len(s.trace.frames)
			break
		}
		ts := rec.Timestamp
		if s.rebase {
			ts -= s.start
		}
		frame := pipeline.Frame{Index: rec.Index, Timestamp: ts}
		if rec.Image != "" {
			img, err := decodeFile(s.trace.resolve(rec.Image))
			if err != nil {
				return pipeline.Frame{}, err
			}
			frame.Image = img
		}
		return frame, nil
	}
	return pipeline.Frame{}, io.EOF
}

// Segment implements chunking.Splitter with a rebased window over the trace.
func (t *Trace) Segment(_ context.Context, seg chunking.Segment) (pipeline.FrameSource, error) {
	return t.Source(seg.Start, seg.End, true), nil
}

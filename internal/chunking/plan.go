package chunking

import "math"

// Segment is one time window of a parent video. End includes Overlap.
type Segment struct {
	Index   int
	Start   float64
	End     float64
	Overlap float64
}

// Duration returns the segment length including overlap.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Plan splits duration seconds into segments of segment seconds, each
// extended by up to overlap seconds into its successor. Videos at or under
// the segment length yield a single segment. A tail short enough to fit in
// the previous segment's overlap is absorbed there instead of becoming a
// segment of its own.
func Plan(duration, segment, overlap float64) []Segment {
	if duration <= 0 {
		return []Segment{{Index: 0, Start: 0, End: 0}}
	}
	if segment <= 0 || duration <= segment {
		return []Segment{{Index: 0, Start: 0, End: duration}}
	}
	if overlap < 0 {
		overlap = 0
	}
	var out []Segment
	for start := 0.0; start < duration; start += segment {
		core := math.Min(start+segment, duration)
		end := math.Min(start+segment+overlap, duration)
		out = append(out, Segment{
			Index:   len(out),
			Start:   start,
			End:     end,
			Overlap: end - core,
		})
		if end >= duration {
			break
		}
	}
	return out
}

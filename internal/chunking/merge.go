package chunking

import (
	"fmt"
	"sort"

	"github.com/jinzhu/copier"

	"platewatch/internal/pipeline"
	"platewatch/internal/records"
	"platewatch/internal/tracking"
)

// Merged is the video-scoped view of all segment results.
type Merged struct {
	Records   []records.Record
	Summary   pipeline.Summary
	Completed []int
	Failed    []int
	Empty     []int
}

// AllFailed reports whether no segment completed.
func (m Merged) AllFailed() bool {
	return len(m.Failed) > 0 && len(m.Completed) == 0
}

// Merge combines segment results. Records are cloned, shifted to global time,
// re-keyed per segment, and sorted by timestamp. Records produced before a
// segment failed are kept.
func Merge(results []Result) (Merged, error) {
	var merged Merged
	for _, res := range results {
		seg := res.Segment
		switch {
		case res.Err != nil:
			merged.Failed = append(merged.Failed, seg.Index)
		case len(res.Records) == 0:
			merged.Empty = append(merged.Empty, seg.Index)
			merged.Completed = append(merged.Completed, seg.Index)
		default:
			merged.Completed = append(merged.Completed, seg.Index)
		}
		for _, rec := range res.Records {
			var clone records.Record
			if err := copier.Copy(&clone, &rec); err != nil {
				return Merged{}, fmt.Errorf("clone chunk %d record %s: %w", seg.Index, rec.TrackKey, err)
			}
			clone.Timestamp = rec.Timestamp + seg.Start
			clone.ChunkIndex = seg.Index
			clone.TrackKey = tracking.Key(seg.Index, rec.TrackID)
			merged.Records = append(merged.Records, clone)
		}
		accumulate(&merged.Summary, res.Summary)
	}
	sort.SliceStable(merged.Records, func(i, j int) bool {
		a, b := merged.Records[i], merged.Records[j]
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		return a.TrackKey < b.TrackKey
	})
	return merged, nil
}

func accumulate(total *pipeline.Summary, s pipeline.Summary) {
	total.Frames += s.Frames
	total.TracksCreated += s.TracksCreated
	total.TracksBatched += s.TracksBatched
	total.TracksTrusted += s.TracksTrusted
	total.TracksDropped += s.TracksDropped
	total.Batches += s.Batches
	total.BatchesSucceeded += s.BatchesSucceeded
	total.BatchesFailed += s.BatchesFailed
	total.ExternalCalls += s.ExternalCalls
	total.Cost += s.Cost
	total.RecordsApplied += s.RecordsApplied
	if s.PeakVehicles > total.PeakVehicles {
		total.PeakVehicles = s.PeakVehicles
	}
}

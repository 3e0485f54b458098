package records

import (
	"strings"

	"github.com/google/go-cmp/cmp"
)

// NoPlate is the plate text of a record without a readable plate.
const NoPlate = "NO PLATE"

// Recheck status values.
const (
	RecheckPending = "pending"
	RecheckSuccess = "success"
	RecheckFailed  = "failed"
	RecheckSkipped = "skipped"
	RecheckNone    = "none"
)

// Record is one forensic Detection Record. Field names mirror the persisted
// store.Detection so the two convert by name.
type Record struct {
	VideoID       int64
	TrackKey      string
	TrackID       int
	ChunkIndex    int
	PlateNumber   string
	Confidence    float64
	Provenance    string
	VehicleType   string
	MakeModel     string
	Color         string
	VehicleInfo   string
	HelmetStatus  string
	Passengers    int
	RecheckStatus string
	Timestamp     float64
	FrameIndex    int
	BlurScore     float64
	Signature     string
	RawResponse   string
	BatchID       string
}

// HasPlate reports whether the record carries plate text.
func (r Record) HasPlate() bool {
	return r.PlateNumber != "" && r.PlateNumber != NoPlate
}

// Supersedes reports whether candidate should replace existing. The first
// matching rule wins: no existing record; existing has no plate and the
// candidate does; strictly higher confidence; or a consensus or
// pattern-matched candidate that differs from what is stored.
func Supersedes(existing *Record, candidate Record) bool {
	if existing == nil {
		return true
	}
	if !existing.HasPlate() && candidate.HasPlate() {
		return true
	}
	if candidate.Confidence > existing.Confidence {
		return true
	}
	if strings.Contains(candidate.Provenance, "CONSENSUS") || strings.Contains(candidate.Provenance, "Pattern Match") {
		return !cmp.Equal(*existing, candidate)
	}
	return false
}

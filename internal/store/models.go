package store

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a video or chunk.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// DaemonStopReason is the error message recorded when a run is interrupted by shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ParseStatus attempts to map a string value to a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToUpper(strings.TrimSpace(value)))
	_, ok := statusSet[normalized]
	return normalized, ok
}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// Video is a persisted processing job for one trace (and optional media file).
type Video struct {
	ID              int64
	Name            string
	SourcePath      string
	MediaPath       string
	Status          Status
	ErrorMessage    string
	DurationSeconds float64
	AnalyticsJSON   string
	ReportPath      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastHeartbeat   *time.Time
}

// IsProcessing reports whether a run currently owns the video.
func (v *Video) IsProcessing() bool {
	return v != nil && v.Status == StatusProcessing
}

// Chunk records the outcome of one time segment of a parent video.
type Chunk struct {
	ID             int64
	VideoID        int64
	Index          int
	StartSeconds   float64
	EndSeconds     float64
	OverlapSeconds float64
	Status         Status
	RecordCount    int
	ErrorMessage   string
	UpdatedAt      time.Time
}

// Detection is one persisted forensic record, unique per (video, track key).
type Detection struct {
	ID            int64
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
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DetectionFilter narrows SearchDetections. Zero values disable a filter.
type DetectionFilter struct {
	VideoID       int64
	Plate         string
	MinConfidence float64
	RecheckStatus string
	VehicleQuery  string
	Limit         int
	Offset        int
}

// Batch is one persisted classifier submission.
type Batch struct {
	ID           string
	VideoID      int64
	ChunkIndex   int
	TrackIDs     []int
	CollagePath  string
	Outcome      string
	RawResponse  string
	ErrorMessage string
	CostEstimate float64
	CreatedAt    time.Time
}

// Event is one audit log row.
type Event struct {
	ID         int64
	VideoID    int64
	ChunkIndex *int
	Tag        string
	Message    string
	FrameIndex *int
	Timestamp  *float64
	IsError    bool
	Payload    string
	CreatedAt  time.Time
}

// Stats aggregates store state for the CLI.
type Stats struct {
	Videos           map[Status]int
	TotalVideos      int
	TotalDetections  int
	FailedDetections int
	TotalBatches     int
	CostEstimate     float64
}

// DatabaseHealth describes diagnostic information about the database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    uint
	SchemaDirty      bool
	MissingTables    []string
	IntegrityCheck   bool
	Error            string
}

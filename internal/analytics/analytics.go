package analytics

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"platewatch/internal/pipeline"
	"platewatch/internal/records"
)

// VehicleTypes are the classes always present in Counts.
var VehicleTypes = []string{"CAR", "MOTORCYCLE", "SCOOTER", "BICYCLE", "BUS", "TRUCK", "AUTO", "UNKNOWN"}

const (
	keyHelmet     = "HELMET"
	keyNoHelmet   = "NO_HELMET"
	keyOverloaded = "OVERLOADED_BIKES"
)

// Analytics is the per-video summary persisted as JSON.
type Analytics struct {
	TotalVehicles      int            `json:"total_vehicles_seen"`
	Counts             map[string]int `json:"counts"`
	Recheck            map[string]int `json:"recheck"`
	PeakVehicleDensity int            `json:"peak_vehicle_density"`
	Capture            Capture        `json:"capture_metrics"`
	Metadata           Metadata       `json:"metadata"`
	FailedChunks       []int          `json:"failed_chunks"`
	ProcessedAt        string         `json:"processed_at"`
}

// Capture describes classifier usage.
type Capture struct {
	TotalDetections   int     `json:"total_detections"`
	TotalBatches      int     `json:"total_batches"`
	SuccessfulBatches int     `json:"successful_batches"`
	FailedBatches     int     `json:"failed_batches"`
	ExternalCalls     int     `json:"external_calls"`
	EstimatedCost     float64 `json:"estimated_cost"`
	TracksDropped     int     `json:"tracks_dropped"`
}

// Metadata describes the processing run.
type Metadata struct {
	TotalFrames        int     `json:"total_frames"`
	VideoDurationSec   float64 `json:"video_duration_sec"`
	ProcessingDuration float64 `json:"processing_duration_sec"`
	AvgFPS             float64 `json:"avg_fps"`
	Chunks             int     `json:"chunks"`
}

// Summarise aggregates recs and the run summary. elapsed is the wall-clock
// processing time.
func Summarise(recs []records.Record, run pipeline.Summary, elapsed time.Duration) Analytics {
	counts := make(map[string]int, len(VehicleTypes)+3)
	for _, vt := range VehicleTypes {
		counts[vt] = 0
	}
	counts[keyHelmet] = 0
	counts[keyNoHelmet] = 0
	counts[keyOverloaded] = 0
	recheck := map[string]int{}

	for _, rec := range recs {
		vt := strings.ToUpper(strings.TrimSpace(rec.VehicleType))
		if vt == "" {
			vt = "UNKNOWN"
		}
		counts[vt]++
		switch strings.ToUpper(strings.TrimSpace(rec.HelmetStatus)) {
		case keyHelmet:
			counts[keyHelmet]++
		case keyNoHelmet:
			counts[keyNoHelmet]++
		}
		if (vt == "MOTORCYCLE" || vt == "SCOOTER") && rec.Passengers > 2 {
			counts[keyOverloaded]++
		}
		if rec.RecheckStatus != "" {
			recheck[rec.RecheckStatus]++
		}
	}

	seconds := elapsed.Seconds()
	fps := 0.0
	if seconds > 0 {
		fps = float64(run.Frames) / seconds
	}
	return Analytics{
		TotalVehicles:      len(recs),
		Counts:             counts,
		Recheck:            recheck,
		PeakVehicleDensity: run.PeakVehicles,
		Capture: Capture{
			TotalDetections:   len(recs),
			TotalBatches:      run.Batches,
			SuccessfulBatches: run.BatchesSucceeded,
			FailedBatches:     run.BatchesFailed,
			ExternalCalls:     run.ExternalCalls,
			EstimatedCost:     run.Cost,
			TracksDropped:     run.TracksDropped,
		},
		Metadata: Metadata{
			TotalFrames:        run.Frames,
			ProcessingDuration: seconds,
			AvgFPS:             fps,
			Chunks:             1,
		},
		FailedChunks: []int{},
		ProcessedAt:  time.Now().UTC().Format(time.RFC3339),
	}
}

// JSON encodes a for storage on the video row.
func (a Analytics) JSON() (string, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("encode analytics: %w", err)
	}
	return string(data), nil
}

// Parse decodes a stored analytics blob.
func Parse(raw string) (Analytics, error) {
	var a Analytics
	if strings.TrimSpace(raw) == "" {
		return a, fmt.Errorf("analytics not available")
	}
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return a, fmt.Errorf("decode analytics: %w", err)
	}
	return a, nil
}

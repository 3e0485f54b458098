package analytics

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"platewatch/internal/fileutil"
	"platewatch/internal/records"
)

// maxSlugLength keeps report names well inside filesystem name limits.
const maxSlugLength = 80

// ReportEntry is one record in the results report.
type ReportEntry struct {
	VideoID       int64   `json:"video_id"`
	TrackKey      string  `json:"track_key"`
	TrackID       int     `json:"track_id"`
	ChunkIndex    int     `json:"chunk_index"`
	PlateNumber   string  `json:"plate_number"`
	Confidence    float64 `json:"confidence"`
	Provenance    string  `json:"provenance"`
	VehicleType   string  `json:"vehicle_type"`
	VehicleInfo   string  `json:"vehicle_info"`
	HelmetStatus  string  `json:"helmet_status"`
	Passengers    int     `json:"passengers"`
	RecheckStatus string  `json:"recheck_status"`
	Timestamp     float64 `json:"timestamp"`
	FrameIndex    int     `json:"frame_index"`
}

// ReportPath returns results_<id>_<slug>.json under dir, where slug is the
// video name reduced to a file-safe form.
func ReportPath(dir string, videoID int64, name string) string {
	return filepath.Join(dir, fmt.Sprintf("results_%d_%s.json", videoID, reportSlug(name)))
}

// reportSlug keeps letters, digits, '.', '-' and '_' from a camera or video
// name. Whitespace becomes '_' and any other rune becomes '-', with runs
// collapsed. Empty results fall back to "video".
func reportSlug(name string) string {
	var b strings.Builder
	var last rune
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.':
		case r == '-' || r == '_':
		case unicode.IsSpace(r):
			r = '_'
		default:
			r = '-'
		}
		if (r == '-' || r == '_') && r == last {
			continue
		}
		b.WriteRune(r)
		last = r
	}
	slug := strings.Trim(b.String(), "-_.")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(strings.ToValidUTF8(slug[:maxSlugLength], ""), "-_.")
	}
	if slug == "" {
		return "video"
	}
	return slug
}

// WriteReport writes the records of a video as an indented JSON array and
// returns the report path.
func WriteReport(dir string, videoID int64, name string, recs []records.Record) (string, error) {
	entries := make([]ReportEntry, 0, len(recs))
	for _, rec := range recs {
		entries = append(entries, ReportEntry{
			VideoID:       videoID,
			TrackKey:      rec.TrackKey,
			TrackID:       rec.TrackID,
			ChunkIndex:    rec.ChunkIndex,
			PlateNumber:   rec.PlateNumber,
			Confidence:    rec.Confidence,
			Provenance:    rec.Provenance,
			VehicleType:   rec.VehicleType,
			VehicleInfo:   rec.VehicleInfo,
			HelmetStatus:  rec.HelmetStatus,
			Passengers:    rec.Passengers,
			RecheckStatus: rec.RecheckStatus,
			Timestamp:     rec.Timestamp,
			FrameIndex:    rec.FrameIndex,
		})
	}
	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	path := ReportPath(dir, videoID, name)
	if err := fileutil.WriteAtomic(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

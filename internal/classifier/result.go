package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"platewatch/internal/services/vision"
)

// NoPlate is the sentinel plate text for an unreadable or absent plate.
const NoPlate = "NO PLATE"

const (
	defaultType       = "UNKNOWN"
	defaultHelmet     = "N/A"
	defaultConfidence = 0.9
)

// Result is one per-track answer from the external classifier. Every field
// has a total default so downstream code never sees a missing value.
type Result struct {
	TrackID      int     `json:"track_id"`
	Plate        string  `json:"plate"`
	Color        string  `json:"color"`
	Make         string  `json:"make"`
	Type         string  `json:"type"`
	HelmetStatus string  `json:"helmet_status"`
	Passengers   int     `json:"passengers"`
	Confidence   float64 `json:"confidence"`
}

// VehicleInfo returns the display string "Color Make" in title case.
func (r Result) VehicleInfo() string {
	info := strings.Join(strings.Fields(strings.TrimSpace(r.Color+" "+r.Make)), " ")
	if info == "" {
		return ""
	}
	return cases.Title(language.Und).String(strings.ToLower(info))
}

// HasPlate reports whether the classifier read a plate.
func (r Result) HasPlate() bool {
	return r.Plate != "" && r.Plate != NoPlate
}

// ParseResults decodes a model response into typed results. Entries without a
// usable track_id are skipped; a response with no decodable array is an error.
func ParseResults(raw string) ([]Result, error) {
	var entries []map[string]any
	if err := vision.DecodeJSON(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode classifier response: %w", err)
	}
	results := make([]Result, 0, len(entries))
	for _, entry := range entries {
		id, ok := trackID(entry["track_id"])
		if !ok {
			continue
		}
		results = append(results, normalize(id, entry))
	}
	return results, nil
}

func normalize(id int, entry map[string]any) Result {
	res := Result{
		TrackID:      id,
		Plate:        NormalizePlate(stringField(entry, "plate")),
		Color:        strings.TrimSpace(stringField(entry, "color")),
		Make:         strings.TrimSpace(stringField(entry, "make")),
		Type:         strings.ToUpper(strings.TrimSpace(stringField(entry, "type"))),
		HelmetStatus: strings.ToUpper(strings.TrimSpace(stringField(entry, "helmet_status"))),
		Passengers:   SafeInt(entry["passengers"]),
		Confidence:   defaultConfidence,
	}
	if res.Plate == "" || res.Plate == "NOPLATE" {
		res.Plate = NoPlate
	}
	if res.Type == "" {
		res.Type = defaultType
	}
	if res.HelmetStatus == "" {
		res.HelmetStatus = defaultHelmet
	}
	if conf, ok := floatField(entry["confidence"]); ok && conf >= 0 && conf <= 1 {
		res.Confidence = conf
	}
	return res
}

// NormalizePlate upper-cases plate text and strips everything but letters and
// digits. The NO PLATE sentinel is preserved.
func NormalizePlate(text string) string {
	upper := strings.ToUpper(strings.TrimSpace(text))
	if upper == NoPlate {
		return NoPlate
	}
	var b strings.Builder
	for _, r := range upper {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SafeInt converts loosely typed model output to an int. Strings such as
// "5+" or " 2 people" yield their leading digits; anything else yields 0.
func SafeInt(value any) int {
	switch v := value.(type) {
	case nil:
		return 0
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
		if f, err := v.Float64(); err == nil {
			return int(f)
		}
		return 0
	case string:
		trimmed := strings.TrimSpace(v)
		end := 0
		for end < len(trimmed) && trimmed[end] >= '0' && trimmed[end] <= '9' {
			end++
		}
		if end == 0 {
			return 0
		}
		n, err := strconv.Atoi(trimmed[:end])
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func trackID(value any) (int, bool) {
	switch v := value.(type) {
	case float64:
		return int(v), v >= 0
	case string:
		trimmed := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(v)), "ID:")
		n, err := strconv.Atoi(strings.TrimSpace(trimmed))
		return n, err == nil && n >= 0
	default:
		return 0, false
	}
}

func stringField(entry map[string]any, key string) string {
	switch v := entry[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func floatField(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

package arbitration

import (
	"regexp"
	"strings"
)

// PlateValidator decides whether text is a well-formed plate for a region.
type PlateValidator interface {
	Valid(plate string) bool
}

// ValidatorFunc adapts a function to PlateValidator.
type ValidatorFunc func(string) bool

// Valid implements PlateValidator.
func (f ValidatorFunc) Valid(plate string) bool { return f(plate) }

var indianStateCodes = map[string]struct{}{}

func init() {
	for _, code := range strings.Fields("AN AP AR AS BR CH CT DN DD DL GA GJ HR HP JK JH KA KL LD MP MH MN ML MZ NL OD OR PY PB RJ SK TN TG TS TR UP UK UA WB") {
		indianStateCodes[code] = struct{}{}
	}
}

var (
	indianSeries   = regexp.MustCompile(`^[A-Z]{2}[0-9]{1,2}[A-Z]{1,3}[0-9]{1,4}$`)
	indianNumbered = regexp.MustCompile(`^[A-Z]{2}[0-9]{1,2}[0-9]{4}$`)
	bharatSeries   = regexp.MustCompile(`^[0-9]{2}BH[0-9]{4}[A-Z]{1,2}$`)
)

// IndianValidator accepts state-coded plates and the BH (Bharat) series.
type IndianValidator struct{}

// Valid implements PlateValidator.
func (IndianValidator) Valid(plate string) bool {
	text := strings.ToUpper(strings.TrimSpace(plate))
	if len(text) < 4 {
		return false
	}
	if _, ok := indianStateCodes[text[:2]]; !ok {
		return bharatSeries.MatchString(text)
	}
	return indianSeries.MatchString(text) || indianNumbered.MatchString(text)
}

var signageWords = []string{"VEHICLE", "PLATE", "STOP", "CAR", "CNG", "INDIA", "ROAD", "DRIVE", "SLOW", "KEEP", "DISTANCE"}

// LocalPlateFilter screens local OCR output before it can become a track's
// local candidate. Signage, implausible lengths, and digit-free text are
// rejected.
type LocalPlateFilter struct {
	MinLength int
	MaxLength int
}

// DefaultLocalPlateFilter accepts 4 to 12 characters.
func DefaultLocalPlateFilter() LocalPlateFilter {
	return LocalPlateFilter{MinLength: 4, MaxLength: 12}
}

// Accept normalises text and reports whether it may stand as a plate read.
func (f LocalPlateFilter) Accept(text string) (string, bool) {
	normalized := normalize(text)
	if normalized == "" {
		return "", false
	}
	for _, word := range signageWords {
		if strings.Contains(normalized, word) {
			return "", false
		}
	}
	if len(normalized) < f.MinLength || len(normalized) > f.MaxLength {
		return "", false
	}
	if !strings.ContainsAny(normalized, "0123456789") {
		return "", false
	}
	return normalized, true
}

func normalize(text string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(text) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

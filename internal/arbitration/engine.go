package arbitration

import (
	"strings"
)

// Provenance tags name the source of a record's plate text.
const (
	ProvenanceLocal          = "LOCAL"
	ProvenanceCloud          = "CLOUD"
	ProvenanceConsensus      = "CONSENSUS"
	ProvenanceLocalPattern   = "LOCAL (Pattern Match)"
	ProvenanceCloudPattern   = "CLOUD (Pattern Match)"
	ProvenanceCommercialBias = "LOCAL (Commercial Bias)"
	ProvenanceConfidenceBias = "CLOUD (Confidence Bias)"
	SemanticFlagSuffix       = " (Semantic Flag)"
)

// NoPlate is the text recorded when neither side produced a plate.
const NoPlate = "NO PLATE"

var commercialClasses = map[string]struct{}{
	"BUS":   {},
	"TRUCK": {},
	"AUTO":  {},
}

var heavyClasses = map[string]struct{}{
	"BUS":   {},
	"TRUCK": {},
}

// Engine arbitrates between a local and an external plate read.
type Engine struct {
	validator PlateValidator
}

// NewEngine returns an engine using validator, or the Indian format when nil.
func NewEngine(validator PlateValidator) Engine {
	if validator == nil {
		validator = IndianValidator{}
	}
	return Engine{validator: validator}
}

// WellFormed reports whether plate passes the engine's regional validator.
func (e Engine) WellFormed(plate string) bool {
	return plate != "" && e.validator.Valid(plate)
}

// Arbitrate picks the plate text and provenance. A nil or empty side is
// absent. Rules apply in order: one side absent, exact agreement, exactly one
// side well-formed, commercial class bias, then external confidence bias.
func (e Engine) Arbitrate(local, external *string, class string) (string, string) {
	l := present(local)
	x := present(external)
	switch {
	case l == "" && x == "":
		return NoPlate, ProvenanceLocal
	case x == "":
		return l, ProvenanceLocal
	case l == "":
		return x, ProvenanceCloud
	case l == x:
		return l, ProvenanceConsensus
	}

	localValid := e.validator.Valid(l)
	externalValid := e.validator.Valid(x)
	switch {
	case localValid && !externalValid:
		return l, ProvenanceLocalPattern
	case externalValid && !localValid:
		return x, ProvenanceCloudPattern
	}

	if _, ok := commercialClasses[strings.ToUpper(strings.TrimSpace(class))]; ok {
		return l, ProvenanceCommercialBias
	}
	return x, ProvenanceConfidenceBias
}

// Arbitrate runs the default Indian-format engine.
func Arbitrate(local, external *string, class string) (string, string) {
	return NewEngine(nil).Arbitrate(local, external, class)
}

// SemanticMismatch reports a heavy vehicle carrying a plate too short to be
// plausible for it.
func SemanticMismatch(class, plate string) bool {
	if _, ok := heavyClasses[strings.ToUpper(strings.TrimSpace(class))]; !ok {
		return false
	}
	return len(plate) < 6
}

// Flag appends the semantic flag suffix to a provenance tag.
func Flag(provenance string) string {
	if strings.HasSuffix(provenance, SemanticFlagSuffix) {
		return provenance
	}
	return provenance + SemanticFlagSuffix
}

func present(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

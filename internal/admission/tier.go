package admission

import (
	"fmt"
	"strings"
)

// Tier is a sensitivity preset.
type Tier string

const (
	TierHigh     Tier = "HIGH"
	TierBalanced Tier = "BALANCED"
	TierLow      Tier = "LOW"
)

// Thresholds are the minimum frames a track needs to become READY.
type Thresholds struct {
	InLoop int
	Flush  int
}

var tierThresholds = map[Tier]Thresholds{
	TierHigh:     {InLoop: 3, Flush: 5},
	TierBalanced: {InLoop: 15, Flush: 15},
	TierLow:      {InLoop: 25, Flush: 25},
}

// ParseTier normalises a configured sensitivity name.
func ParseTier(value string) (Tier, error) {
	tier := Tier(strings.ToUpper(strings.TrimSpace(value)))
	if _, ok := tierThresholds[tier]; !ok {
		return "", fmt.Errorf("unknown sensitivity %q", value)
	}
	return tier, nil
}

// ThresholdsFor returns the frame thresholds for tier, defaulting to HIGH.
func ThresholdsFor(tier Tier) Thresholds {
	if th, ok := tierThresholds[tier]; ok {
		return th
	}
	return tierThresholds[TierHigh]
}

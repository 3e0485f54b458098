package threshold

import (
	"math"
	"sync"

	"platewatch/internal/admission"
	"platewatch/internal/config"
)

// Setter receives threshold updates. Detectors that support a confidence
// threshold implement it.
type Setter interface {
	SetThreshold(value float64)
}

var tierTargets = map[admission.Tier]float64{
	admission.TierHigh:     0.15,
	admission.TierBalanced: 0.25,
	admission.TierLow:      0.45,
}

// Target returns the starting detector threshold for tier.
func Target(tier admission.Tier) float64 {
	if v, ok := tierTargets[tier]; ok {
		return v
	}
	return tierTargets[admission.TierHigh]
}

// Monitor adapts the detector confidence threshold to scene density. Each
// run owns its own Monitor.
type Monitor struct {
	mu      sync.Mutex
	current float64
	bounds  config.Threshold
	setter  Setter
}

// New returns a monitor configured for tier within bounds.
func New(bounds config.Threshold, tier admission.Tier) *Monitor {
	m := &Monitor{bounds: bounds}
	m.Configure(tier)
	return m
}

// Attach publishes the current threshold to setter and every later change.
func (m *Monitor) Attach(setter Setter) {
	m.mu.Lock()
	m.setter = setter
	value := m.current
	m.mu.Unlock()
	if setter != nil {
		setter.SetThreshold(value)
	}
}

// Configure resets the threshold to the tier target.
func (m *Monitor) Configure(tier admission.Tier) {
	m.mu.Lock()
	m.current = Target(tier)
	setter := m.setter
	value := m.current
	m.mu.Unlock()
	if setter != nil {
		setter.SetThreshold(value)
	}
}

// Current returns the threshold in effect.
func (m *Monitor) Current() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Tune lowers the threshold in sparse scenes and raises it in dense ones,
// clamped to the configured floor and ceiling. It returns the new value and
// whether it changed.
func (m *Monitor) Tune(density float64) (float64, bool) {
	m.mu.Lock()
	prev := m.current
	next := prev
	switch {
	case density < m.bounds.LowDensity:
		next = math.Max(m.bounds.Floor, prev-m.bounds.Step)
	case density > m.bounds.HighDensity:
		next = math.Min(m.bounds.Ceiling, prev+m.bounds.Step)
	}
	next = math.Round(next*1000) / 1000
	m.current = next
	setter := m.setter
	m.mu.Unlock()

	changed := next != prev
	if changed && setter != nil {
		setter.SetThreshold(next)
	}
	return next, changed
}

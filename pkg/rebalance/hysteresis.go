package rebalance

import "time"

// Hysteresis wraps a Strategy so weight updates are suppressed unless the
// proposed change exceeds SwitchThreshold and at least MinHold has elapsed
// since the previous applied update. The first call is always applied,
// treating construction as happening at t = -infinity.
type Hysteresis struct {
	Inner           Strategy
	SwitchThreshold float64
	MinHold         time.Duration

	lastApplied time.Time
	haveApplied bool
	lastWeights WeightVector
	switchCount int
}

// NewHysteresis wraps strategy with the given gate parameters.
func NewHysteresis(strategy Strategy, switchThreshold float64, minHold time.Duration) *Hysteresis {
	return &Hysteresis{Inner: strategy, SwitchThreshold: switchThreshold, MinHold: minHold}
}

// Apply evaluates the gate against a proposed vector computed at `now` and
// returns either the proposal (if it passes) or the last applied vector.
func (h *Hysteresis) Apply(now time.Time, proposed, prev WeightVector) WeightVector {
	if !h.haveApplied {
		h.haveApplied = true
		h.lastApplied = now
		h.lastWeights = proposed
		h.switchCount++
		return proposed
	}

	if now.Sub(h.lastApplied) < h.MinHold {
		return h.lastWeights
	}

	if maxDelta(proposed, prev) < h.SwitchThreshold {
		return h.lastWeights
	}

	h.lastApplied = now
	h.lastWeights = proposed
	h.switchCount++
	return proposed
}

// SwitchCount returns how many times Apply has actually applied a newly
// proposed weight vector, as opposed to holding the previous one under the
// MinHold/SwitchThreshold gate.
func (h *Hysteresis) SwitchCount() int {
	return h.switchCount
}

func maxDelta(a, b WeightVector) float64 {
	max := 0.0
	seen := make(map[uint32]bool, len(a)+len(b))
	for id := range a {
		seen[id] = true
	}
	for id := range b {
		seen[id] = true
	}
	for id := range seen {
		d := a[id] - b[id]
		if d < 0 {
			d = -d
		}
		if d > max {
			max = d
		}
	}
	return max
}

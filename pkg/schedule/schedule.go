// Package schedule drives a direction.Spec through time, producing the
// next impairment spec and the wait before it should next be consulted.
package schedule

import (
	"math"
	"math/rand"
	"time"

	"github.com/RephlexZero/rist-bonding-sub001/pkg/direction"
)

// Schedule yields a time-varying sequence of direction.Spec values.
type Schedule interface {
	// Next returns the spec that should be active at elapsed, how long the
	// caller may wait before calling Next again, and whether the schedule
	// has concluded (Replay only; the other variants never finish).
	Next(elapsed time.Duration) (spec direction.Spec, wait time.Duration, done bool)
}

// Constant never changes.
type Constant struct {
	Spec direction.Spec
}

func (c Constant) Next(time.Duration) (direction.Spec, time.Duration, bool) {
	return c.Spec, time.Hour, false
}

// Step is one entry of a Steps schedule: the spec becomes active At elapsed
// time and holds until the next step.
type Step struct {
	At   time.Duration
	Spec direction.Spec
}

// Steps switches between specs at fixed wall-clock offsets.
type Steps struct {
	Steps []Step
}

func (s Steps) Next(elapsed time.Duration) (direction.Spec, time.Duration, bool) {
	if len(s.Steps) == 0 {
		return direction.Typical(), time.Hour, false
	}
	idx := 0
	for i, st := range s.Steps {
		if st.At <= elapsed {
			idx = i
		} else {
			break
		}
	}
	cur := s.Steps[idx]
	wait := time.Hour
	if idx+1 < len(s.Steps) {
		wait = s.Steps[idx+1].At - elapsed
		if wait <= 0 {
			wait = time.Millisecond
		}
	}
	return cur.Spec, wait, false
}

// DegradationCycle builds a Steps schedule that ramps linearly from good to
// poor over four stages, mirroring a slowly decaying radio link.
func DegradationCycle(good, poor direction.Spec) Steps {
	lerp := func(a, b uint32, t float64) uint32 {
		return uint32(float64(a) + (float64(b)-float64(a))*t)
	}
	lerpF := func(a, b float32, t float64) float32 {
		return float32(float64(a) + (float64(b)-float64(a))*t)
	}
	stageAt := func(t float64) direction.Spec {
		s := good
		s.BaseDelayMs = lerp(good.BaseDelayMs, poor.BaseDelayMs, t)
		s.JitterMs = lerp(good.JitterMs, poor.JitterMs, t)
		s.LossPct = lerpF(good.LossPct, poor.LossPct, t)
		s.LossBurstCorr = lerpF(good.LossBurstCorr, poor.LossBurstCorr, t)
		s.ReorderPct = lerpF(good.ReorderPct, poor.ReorderPct, t)
		s.RateKbps = lerp(good.RateKbps, poor.RateKbps, t)
		return s
	}
	return Steps{Steps: []Step{
		{At: 0, Spec: stageAt(0)},
		{At: 30 * time.Second, Spec: stageAt(1.0 / 3)},
		{At: 60 * time.Second, Spec: stageAt(2.0 / 3)},
		{At: 90 * time.Second, Spec: stageAt(1)},
	}}
}

// MarkovState is one state of a Markov schedule: the spec active while in
// that state, the mean dwell time, and transition probabilities to every
// state (including itself) indexed by state id.
type MarkovState struct {
	Spec        direction.Spec
	MeanDwell   time.Duration
	Transitions []float64
}

// Markov drives a spec through a continuous-time Markov chain with
// exponentially distributed dwell times. Reproducible given the same seed.
type Markov struct {
	States []MarkovState
	rng    *rand.Rand
	cur    int
	inited bool
	next   time.Duration
}

// NewMarkov seeds a Markov schedule starting in state 0.
func NewMarkov(states []MarkovState, seed int64) *Markov {
	return &Markov{States: states, rng: rand.New(rand.NewSource(seed))}
}

// BurstyMarkov builds a two-state Markov schedule alternating between a
// stable spec and a bursty-interference spec.
func BurstyMarkov(stable, bursty direction.Spec, seed int64) *Markov {
	return NewMarkov([]MarkovState{
		{Spec: stable, MeanDwell: 20 * time.Second, Transitions: []float64{0.7, 0.3}},
		{Spec: bursty, MeanDwell: 4 * time.Second, Transitions: []float64{0.8, 0.2}},
	}, seed)
}

func (m *Markov) sampleDwell(mean time.Duration) time.Duration {
	u := m.rng.Float64()
	if u <= 0 {
		u = 1e-9
	}
	return time.Duration(-math.Log(u) * float64(mean))
}

func (m *Markov) chooseNext() int {
	probs := m.States[m.cur].Transitions
	u := m.rng.Float64()
	cum := 0.0
	for i, p := range probs {
		cum += p
		if u <= cum {
			return i
		}
	}
	return len(probs) - 1
}

func (m *Markov) Next(elapsed time.Duration) (direction.Spec, time.Duration, bool) {
	if !m.inited {
		m.inited = true
		m.next = m.sampleDwell(m.States[m.cur].MeanDwell)
	}
	if elapsed >= m.next {
		m.cur = m.chooseNext()
		m.next = elapsed + m.sampleDwell(m.States[m.cur].MeanDwell)
	}
	wait := m.next - elapsed
	if wait <= 0 {
		wait = time.Millisecond
	}
	return m.States[m.cur].Spec, wait, false
}

// ReplayPoint is one recorded sample of a trace-driven schedule.
type ReplayPoint struct {
	At   time.Duration
	Spec direction.Spec
}

// Replay plays back a recorded trace verbatim and reports done once the
// trace is exhausted.
type Replay struct {
	Points []ReplayPoint
}

func (r Replay) Next(elapsed time.Duration) (direction.Spec, time.Duration, bool) {
	if len(r.Points) == 0 {
		return direction.Typical(), time.Hour, true
	}
	if elapsed >= r.Points[len(r.Points)-1].At {
		return r.Points[len(r.Points)-1].Spec, time.Hour, true
	}
	idx := 0
	for i, p := range r.Points {
		if p.At <= elapsed {
			idx = i
		} else {
			break
		}
	}
	wait := time.Hour
	if idx+1 < len(r.Points) {
		wait = r.Points[idx+1].At - elapsed
		if wait <= 0 {
			wait = time.Millisecond
		}
	}
	return r.Points[idx].Spec, wait, false
}

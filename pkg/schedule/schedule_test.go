package schedule

import (
	"reflect"
	"testing"
	"time"

	"github.com/RephlexZero/rist-bonding-sub001/pkg/direction"
)

// specsEqual compares two direction.Spec values by content; Spec carries a
// *uint32 MTU field, so separate preset calls never share a pointer and
// plain == would spuriously report them as different.
func specsEqual(a, b direction.Spec) bool {
	return reflect.DeepEqual(a, b)
}

func TestConstantNeverChanges(t *testing.T) {
	c := Constant{Spec: direction.Good()}
	s1, _, done1 := c.Next(0)
	s2, _, done2 := c.Next(time.Hour)
	if !specsEqual(s1, s2) || done1 || done2 {
		t.Fatalf("constant schedule should never change or finish")
	}
}

func TestStepsSwitchesAtBoundaries(t *testing.T) {
	s := Steps{Steps: []Step{
		{At: 0, Spec: direction.Good()},
		{At: 10 * time.Second, Spec: direction.Poor()},
	}}

	spec, wait, done := s.Next(0)
	if !specsEqual(spec, direction.Good()) || done {
		t.Fatalf("expected Good spec at t=0, got %+v", spec)
	}
	if wait != 10*time.Second {
		t.Fatalf("expected 10s wait until next step, got %s", wait)
	}

	spec, _, _ = s.Next(10 * time.Second)
	if !specsEqual(spec, direction.Poor()) {
		t.Fatalf("expected Poor spec at t=10s, got %+v", spec)
	}

	spec, wait, _ = s.Next(time.Hour)
	if !specsEqual(spec, direction.Poor()) {
		t.Fatalf("expected to hold final step, got %+v", spec)
	}
	if wait != time.Hour {
		t.Fatalf("expected hour-long wait past final step, got %s", wait)
	}
}

func TestStepsEmptyFallsBackToTypical(t *testing.T) {
	s := Steps{}
	spec, _, done := s.Next(0)
	if !specsEqual(spec, direction.Typical()) || done {
		t.Fatalf("empty Steps should fall back to Typical, got %+v", spec)
	}
}

func TestDegradationCycleEndpointsMatchInputs(t *testing.T) {
	good, poor := direction.Good(), direction.Poor()
	cycle := DegradationCycle(good, poor)

	start, _, _ := cycle.Next(0)
	if start.RateKbps != good.RateKbps {
		t.Errorf("stage 0 rate should match good spec: got %d want %d", start.RateKbps, good.RateKbps)
	}

	end, _, _ := cycle.Next(90 * time.Second)
	if end.RateKbps != poor.RateKbps {
		t.Errorf("final stage rate should match poor spec: got %d want %d", end.RateKbps, poor.RateKbps)
	}
}

func TestMarkovIsReproducibleForSameSeed(t *testing.T) {
	states := []MarkovState{
		{Spec: direction.Good(), MeanDwell: time.Second, Transitions: []float64{0.5, 0.5}},
		{Spec: direction.Poor(), MeanDwell: time.Second, Transitions: []float64{0.5, 0.5}},
	}

	m1 := NewMarkov(states, 42)
	m2 := NewMarkov(states, 42)

	for elapsed := time.Duration(0); elapsed < 20*time.Second; elapsed += 500 * time.Millisecond {
		s1, _, _ := m1.Next(elapsed)
		s2, _, _ := m2.Next(elapsed)
		if !specsEqual(s1, s2) {
			t.Fatalf("same-seed Markov chains diverged at elapsed=%s", elapsed)
		}
	}
}

func TestMarkovDifferentSeedsCanDiverge(t *testing.T) {
	states := []MarkovState{
		{Spec: direction.Good(), MeanDwell: time.Second, Transitions: []float64{0.5, 0.5}},
		{Spec: direction.Poor(), MeanDwell: time.Second, Transitions: []float64{0.5, 0.5}},
	}

	m1 := NewMarkov(states, 1)
	m2 := NewMarkov(states, 2)

	diverged := false
	for elapsed := time.Duration(0); elapsed < 60*time.Second; elapsed += 250 * time.Millisecond {
		s1, _, _ := m1.Next(elapsed)
		s2, _, _ := m2.Next(elapsed)
		if !specsEqual(s1, s2) {
			diverged = true
			break
		}
	}
	if !diverged {
		t.Fatal("expected different seeds to eventually diverge")
	}
}

func TestReplayReportsDoneAfterLastPoint(t *testing.T) {
	r := Replay{Points: []ReplayPoint{
		{At: 0, Spec: direction.Good()},
		{At: 5 * time.Second, Spec: direction.Poor()},
	}}

	_, _, done := r.Next(time.Second)
	if done {
		t.Fatal("replay should not be done before its last point")
	}

	spec, _, done := r.Next(10 * time.Second)
	if !done {
		t.Fatal("replay should report done once elapsed passes the last point")
	}
	if !specsEqual(spec, direction.Poor()) {
		t.Fatalf("replay should hold its final spec, got %+v", spec)
	}
}

func TestReplayEmptyIsImmediatelyDone(t *testing.T) {
	r := Replay{}
	_, _, done := r.Next(0)
	if !done {
		t.Fatal("empty replay should report done immediately")
	}
}

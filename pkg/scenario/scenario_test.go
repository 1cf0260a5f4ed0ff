package scenario

import (
	"testing"

	"github.com/RephlexZero/rist-bonding-sub001/pkg/direction"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/schedule"
)

func TestSymmetricSharesScheduleBothDirections(t *testing.T) {
	sched := schedule.Constant{Spec: direction.Good()}
	l := Symmetric("l0", "tx0", "rx0", sched)
	if l.TxSched != l.RxSched {
		t.Fatal("expected Symmetric to use the same schedule for tx and rx")
	}
}

func TestAsymmetricCellularUsesIndependentSchedules(t *testing.T) {
	l := AsymmetricCellular("cell", "tx0", "rx0")
	txSpec, _, _ := l.TxSched.Next(0)
	rxSpec, _, _ := l.RxSched.Next(0)
	if txSpec.RateKbps == rxSpec.RateKbps {
		t.Fatal("expected asymmetric cellular uplink/downlink rates to differ")
	}
}

func TestTestScenarioValidateRequiresAtLeastOneLink(t *testing.T) {
	ts := TestScenario{Name: "empty"}
	if err := ts.Validate(); err == nil {
		t.Fatal("expected a scenario with no links to fail Validate")
	}
}

func TestTestScenarioValidateRejectsMissingInterfaces(t *testing.T) {
	ts := TestScenario{Name: "bad", Links: []LinkSpec{{Name: "l0"}}}
	if err := ts.Validate(); err == nil {
		t.Fatal("expected a link missing interfaces to fail Validate")
	}
}

func TestTestScenarioValidateRejectsDuplicateLinkNames(t *testing.T) {
	ts := TestScenario{Name: "dup", Links: []LinkSpec{
		{Name: "l0", TxIface: "a", RxIface: "b"},
		{Name: "l0", TxIface: "c", RxIface: "d"},
	}}
	if err := ts.Validate(); err == nil {
		t.Fatal("expected duplicate link names to fail Validate")
	}
}

func TestAllPresetsAreWellFormed(t *testing.T) {
	for name, build := range All() {
		ts := build()
		if ts.Name == "" {
			t.Errorf("preset %q: built scenario has an empty Name", name)
		}
		if err := ts.Validate(); err != nil {
			t.Errorf("preset %q: %v", name, err)
		}
		if ts.DurationSeconds == nil || *ts.DurationSeconds == 0 {
			t.Errorf("preset %q: expected a positive DurationSeconds", name)
		}
	}
}

func TestAllPresetKeysMatchBuiltScenarioNames(t *testing.T) {
	for key, build := range All() {
		if got := build().Name; got != key {
			t.Errorf("preset map key %q does not match built scenario name %q", key, got)
		}
	}
}

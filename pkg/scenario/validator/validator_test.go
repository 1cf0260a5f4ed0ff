package validator

import (
	"testing"

	"github.com/RephlexZero/rist-bonding-sub001/pkg/direction"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/schedule"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/scenario"
)

func validScenario() *scenario.TestScenario {
	return &scenario.TestScenario{
		Name: "valid-scenario",
		Links: []scenario.LinkSpec{
			scenario.Symmetric("link0", "tx0", "rx0", schedule.Constant{Spec: direction.Good()}),
		},
	}
}

func dur(s uint64) *uint64 { return &s }

func TestValidatePassesOnWellFormedScenario(t *testing.T) {
	v := New()
	if err := v.Validate(validScenario()); err != nil {
		t.Fatalf("expected a well-formed scenario to validate, got %v: %s", err, v.GetReport())
	}
	if v.HasErrors() || v.HasWarnings() {
		t.Fatalf("expected no warnings or errors, got %s", v.GetReport())
	}
}

func TestValidateRejectsEmptyName(t *testing.T) {
	s := validScenario()
	s.Name = ""
	v := New()
	if err := v.Validate(s); err == nil {
		t.Fatal("expected empty name to fail validation")
	}
}

func TestValidateRejectsBadNameFormat(t *testing.T) {
	s := validScenario()
	s.Name = "Not Valid!"
	v := New()
	if err := v.Validate(s); err == nil {
		t.Fatal("expected a name with spaces/uppercase to fail validation")
	}
}

func TestValidateWarnsOnVeryLongDuration(t *testing.T) {
	s := validScenario()
	s.DurationSeconds = dur(25 * 3600)
	v := New()
	if err := v.Validate(s); err != nil {
		t.Fatalf("expected long duration to warn, not error: %v", err)
	}
	if !v.HasWarnings() {
		t.Fatal("expected a warning for a duration over 24h")
	}
}

func TestValidateRejectsNoLinks(t *testing.T) {
	s := validScenario()
	s.Links = nil
	v := New()
	if err := v.Validate(s); err == nil {
		t.Fatal("expected a scenario with no links to fail validation")
	}
}

func TestValidateRejectsDuplicateLinkNames(t *testing.T) {
	s := validScenario()
	s.Links = append(s.Links, scenario.Symmetric("link0", "tx1", "rx1", schedule.Constant{Spec: direction.Good()}))
	v := New()
	if err := v.Validate(s); err == nil {
		t.Fatal("expected duplicate link names to fail validation")
	}
}

func TestValidateRejectsSameTxRxInterface(t *testing.T) {
	s := validScenario()
	s.Links[0].TxIface = "shared0"
	s.Links[0].RxIface = "shared0"
	v := New()
	if err := v.Validate(s); err == nil {
		t.Fatal("expected identical tx_iface/rx_iface to fail validation")
	}
}

func TestValidateRejectsSharedInterfaceAcrossLinks(t *testing.T) {
	s := validScenario()
	s.Links = append(s.Links, scenario.Symmetric("link1", "tx0", "rx1", schedule.Constant{Spec: direction.Good()}))
	v := New()
	if err := v.Validate(s); err == nil {
		t.Fatal("expected an interface reused across two different links to fail validation")
	}
}

func TestValidateRejectsMissingSchedule(t *testing.T) {
	s := validScenario()
	s.Links[0].TxSched = nil
	v := New()
	if err := v.Validate(s); err == nil {
		t.Fatal("expected a missing tx schedule to fail validation")
	}
}

func TestValidateWarnsOnManyLinks(t *testing.T) {
	s := validScenario()
	for i := 1; i < 9; i++ {
		s.Links = append(s.Links, scenario.Symmetric(
			"link"+string(rune('0'+i)),
			"tx"+string(rune('0'+i)),
			"rx"+string(rune('0'+i)),
			schedule.Constant{Spec: direction.Good()},
		))
	}
	v := New()
	if err := v.Validate(s); err != nil {
		t.Fatalf("expected many links to warn, not error: %v", err)
	}
	if !v.HasWarnings() {
		t.Fatal("expected a warning for bonding more than 8 links")
	}
}

func TestValidateResetsStateBetweenCalls(t *testing.T) {
	v := New()
	bad := validScenario()
	bad.Name = ""
	_ = v.Validate(bad)
	if !v.HasErrors() {
		t.Fatal("expected the first invalid call to record errors")
	}

	if err := v.Validate(validScenario()); err != nil {
		t.Fatalf("expected a subsequent valid scenario to pass: %v", err)
	}
	if v.HasErrors() {
		t.Fatal("expected Validate to reset accumulated errors between calls")
	}
}

func TestGetReportReportsCleanScenario(t *testing.T) {
	v := New()
	_ = v.Validate(validScenario())
	if got := v.GetReport(); got == "" {
		t.Fatal("expected a non-empty report even for a clean scenario")
	}
}

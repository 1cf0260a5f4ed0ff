package direction

import "testing"

func TestValidateRejectsOutOfRangePercentages(t *testing.T) {
	s := Good()
	s.LossPct = 1.5
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for loss_pct > 1")
	}
}

func TestValidateRejectsZeroRate(t *testing.T) {
	s := Good()
	s.RateKbps = 0
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for rate_kbps == 0")
	}
}

func TestValidateAcceptsPresets(t *testing.T) {
	presets := []Spec{Good(), Typical(), Poor(), LTEUplink(), LTEDownlink(), NRGood(), NRMmWave(), Satellite()}
	for i, s := range presets {
		if err := s.Validate(); err != nil {
			t.Fatalf("preset %d: unexpected error: %v", i, err)
		}
	}
}

func TestWithHandoverSpikeIncreasesLossAndDelay(t *testing.T) {
	base := LTEUplink()
	spiked := base.WithHandoverSpike()

	if spiked.BaseDelayMs <= base.BaseDelayMs {
		t.Errorf("expected delay to increase, got %d -> %d", base.BaseDelayMs, spiked.BaseDelayMs)
	}
	if spiked.LossPct <= base.LossPct {
		t.Errorf("expected loss to increase, got %f -> %f", base.LossPct, spiked.LossPct)
	}
	if err := spiked.Validate(); err != nil {
		t.Errorf("spiked spec should remain valid: %v", err)
	}
}

func TestWithMmWaveBlockageClampsToSeverity(t *testing.T) {
	base := NRMmWave()
	blocked := base.WithMmWaveBlockage(2.0) // severity out of [0,1], should clamp to 1

	fullSeverity := base.WithMmWaveBlockage(1.0)
	if blocked.LossPct != fullSeverity.LossPct {
		t.Errorf("severity should clamp to 1.0: got %f want %f", blocked.LossPct, fullSeverity.LossPct)
	}
}

func TestWithBufferbloatScalesDelayAndJitter(t *testing.T) {
	base := Typical()
	bloated := base.WithBufferbloat(1.0)

	if bloated.BaseDelayMs <= base.BaseDelayMs {
		t.Errorf("expected bufferbloat to inflate delay, got %d -> %d", base.BaseDelayMs, bloated.BaseDelayMs)
	}
	if bloated.JitterMs <= base.JitterMs {
		t.Errorf("expected bufferbloat to inflate jitter, got %d -> %d", base.JitterMs, bloated.JitterMs)
	}
}

func TestWithCarrierAggregationRejectsSubOneMultiplier(t *testing.T) {
	base := NRCarrierAggregation()
	aggregated := base.WithCarrierAggregation(0) // should floor to multiplier 1

	if aggregated.RateKbps != base.RateKbps {
		t.Errorf("zero bands should behave like multiplier 1: got %d want %d", aggregated.RateKbps, base.RateKbps)
	}
}

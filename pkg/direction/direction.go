// Package direction models one direction of a bonded link (tx or rx) as a
// set of netem/tbf impairment parameters, with a library of presets for
// common link types.
package direction

import "fmt"

// Spec describes the impairment parameters applied to one direction of a
// link by the qdisc controller.
type Spec struct {
	BaseDelayMs   uint32  `yaml:"base_delay_ms" json:"base_delay_ms"`
	JitterMs      uint32  `yaml:"jitter_ms" json:"jitter_ms"`
	LossPct       float32 `yaml:"loss_pct" json:"loss_pct"`
	LossBurstCorr float32 `yaml:"loss_burst_corr" json:"loss_burst_corr"`
	ReorderPct    float32 `yaml:"reorder_pct" json:"reorder_pct"`
	DuplicatePct  float32 `yaml:"duplicate_pct" json:"duplicate_pct"`
	RateKbps      uint32  `yaml:"rate_kbps" json:"rate_kbps"`
	MTU           *uint32 `yaml:"mtu,omitempty" json:"mtu,omitempty"`
}

func mtu(v uint32) *uint32 { return &v }

// Validate rejects out-of-range percentages before a spec reaches the qdisc
// controller.
func (s Spec) Validate() error {
	for name, v := range map[string]float32{
		"loss_pct":        s.LossPct,
		"loss_burst_corr": s.LossBurstCorr,
		"reorder_pct":     s.ReorderPct,
		"duplicate_pct":   s.DuplicatePct,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("direction: %s must be in [0,1], got %f", name, v)
		}
	}
	if s.RateKbps == 0 {
		return fmt.Errorf("direction: rate_kbps must be > 0")
	}
	return nil
}

// Good returns a clean, high-bandwidth link.
func Good() Spec {
	return Spec{BaseDelayMs: 5, JitterMs: 1, LossPct: 0.00001, RateKbps: 50000, MTU: mtu(1500)}
}

// Typical returns a representative best-effort internet path.
func Typical() Spec {
	return Spec{BaseDelayMs: 20, JitterMs: 5, LossPct: 0.001, LossBurstCorr: 0.1, ReorderPct: 0.002, RateKbps: 20000, MTU: mtu(1500)}
}

// Poor returns a degraded, lossy link.
func Poor() Spec {
	return Spec{BaseDelayMs: 100, JitterMs: 25, LossPct: 0.02, LossBurstCorr: 0.3, ReorderPct: 0.01, DuplicatePct: 0.001, RateKbps: 2000, MTU: mtu(1400)}
}

// LTEUplink returns typical LTE uplink characteristics.
func LTEUplink() Spec {
	return Spec{BaseDelayMs: 40, JitterMs: 15, LossPct: 0.003, LossBurstCorr: 0.2, ReorderPct: 0.005, RateKbps: 5000, MTU: mtu(1358)}
}

// LTEDownlink returns typical LTE downlink characteristics.
func LTEDownlink() Spec {
	return Spec{BaseDelayMs: 35, JitterMs: 12, LossPct: 0.002, LossBurstCorr: 0.15, ReorderPct: 0.003, RateKbps: 25000, MTU: mtu(1358)}
}

// NRGood returns good-coverage 5G characteristics.
func NRGood() Spec {
	return Spec{BaseDelayMs: 15, JitterMs: 8, LossPct: 0.0005, LossBurstCorr: 0.1, ReorderPct: 0.001, RateKbps: 100000, MTU: mtu(1500)}
}

// NRCellEdge returns 5G cell-edge characteristics.
func NRCellEdge() Spec {
	return Spec{BaseDelayMs: 25, JitterMs: 15, LossPct: 0.01, LossBurstCorr: 0.4, ReorderPct: 0.008, DuplicatePct: 0.0005, RateKbps: 10000, MTU: mtu(1400)}
}

// NRMmWave returns 5G mmWave peak characteristics.
func NRMmWave() Spec {
	return Spec{BaseDelayMs: 10, JitterMs: 5, LossPct: 0.0001, LossBurstCorr: 0.05, ReorderPct: 0.0005, RateKbps: 1000000, MTU: mtu(1500)}
}

// NRMmWaveBlocked returns 5G mmWave characteristics during beam blockage.
func NRMmWaveBlocked() Spec {
	return Spec{BaseDelayMs: 200, JitterMs: 100, LossPct: 0.5, LossBurstCorr: 0.95, ReorderPct: 0.1, DuplicatePct: 0.01, RateKbps: 1000, MTU: mtu(1400)}
}

// NRSub6GHz returns balanced 5G sub-6GHz characteristics.
func NRSub6GHz() Spec {
	return Spec{BaseDelayMs: 20, JitterMs: 10, LossPct: 0.002, LossBurstCorr: 0.2, ReorderPct: 0.003, DuplicatePct: 0.0001, RateKbps: 200000, MTU: mtu(1500)}
}

// NRCarrierAggregation returns 5G characteristics with carrier aggregation.
func NRCarrierAggregation() Spec {
	return Spec{BaseDelayMs: 18, JitterMs: 12, LossPct: 0.001, LossBurstCorr: 0.15, ReorderPct: 0.005, DuplicatePct: 0.0002, RateKbps: 500000, MTU: mtu(1500)}
}

// NRBeamformingInterference returns 5G characteristics under beamforming interference.
func NRBeamformingInterference() Spec {
	return Spec{BaseDelayMs: 30, JitterMs: 20, LossPct: 0.008, LossBurstCorr: 0.6, ReorderPct: 0.01, DuplicatePct: 0.001, RateKbps: 50000, MTU: mtu(1400)}
}

// NRUplink returns 5G uplink characteristics.
func NRUplink() Spec {
	return Spec{BaseDelayMs: 25, JitterMs: 15, LossPct: 0.004, LossBurstCorr: 0.3, ReorderPct: 0.006, DuplicatePct: 0.0003, RateKbps: 50000, MTU: mtu(1500)}
}

// NRDownlink returns 5G downlink characteristics.
func NRDownlink() Spec {
	return Spec{BaseDelayMs: 15, JitterMs: 10, LossPct: 0.001, LossBurstCorr: 0.15, ReorderPct: 0.002, DuplicatePct: 0.0001, RateKbps: 300000, MTU: mtu(1500)}
}

// NRURLLC returns ultra-reliable low-latency 5G characteristics.
func NRURLLC() Spec {
	return Spec{BaseDelayMs: 3, JitterMs: 1, LossPct: 0.00001, LossBurstCorr: 0.01, ReorderPct: 0.0001, RateKbps: 10000, MTU: mtu(1500)}
}

// NREMBB returns enhanced mobile broadband 5G characteristics.
func NREMBB() Spec {
	return Spec{BaseDelayMs: 20, JitterMs: 8, LossPct: 0.001, LossBurstCorr: 0.1, ReorderPct: 0.002, DuplicatePct: 0.0001, RateKbps: 800000, MTU: mtu(1500)}
}

// NRMMTC returns massive machine-type communication 5G characteristics.
func NRMMTC() Spec {
	return Spec{BaseDelayMs: 100, JitterMs: 50, LossPct: 0.01, LossBurstCorr: 0.3, ReorderPct: 0.005, DuplicatePct: 0.001, RateKbps: 1000, MTU: mtu(1200)}
}

// Satellite returns geostationary satellite link characteristics.
func Satellite() Spec {
	return Spec{BaseDelayMs: 300, JitterMs: 50, LossPct: 0.005, LossBurstCorr: 0.2, ReorderPct: 0.002, RateKbps: 5000, MTU: mtu(1300)}
}

// Race4GStrong returns the best-case characteristics of a vehicle-mounted 4G modem.
func Race4GStrong() Spec {
	return Spec{BaseDelayMs: 45, JitterMs: 20, LossPct: 0.005, LossBurstCorr: 0.2, ReorderPct: 0.005, RateKbps: 2000, MTU: mtu(1500)}
}

// Race4GModerate returns moderate-signal characteristics of a vehicle-mounted 4G modem.
func Race4GModerate() Spec {
	return Spec{BaseDelayMs: 65, JitterMs: 35, LossPct: 0.02, LossBurstCorr: 0.4, ReorderPct: 0.01, DuplicatePct: 0.001, RateKbps: 1200, MTU: mtu(1500)}
}

// Race4GWeak returns weak-signal characteristics of a vehicle-mounted 4G modem.
func Race4GWeak() Spec {
	return Spec{BaseDelayMs: 120, JitterMs: 60, LossPct: 0.05, LossBurstCorr: 0.6, ReorderPct: 0.02, DuplicatePct: 0.002, RateKbps: 300, MTU: mtu(1500)}
}

// Race5GStrong returns the best-case characteristics of a vehicle-mounted 5G modem.
func Race5GStrong() Spec {
	return Spec{BaseDelayMs: 25, JitterMs: 15, LossPct: 0.003, LossBurstCorr: 0.15, ReorderPct: 0.003, RateKbps: 2000, MTU: mtu(1500)}
}

// Race5GModerate returns moderate-signal characteristics of a vehicle-mounted 5G modem.
func Race5GModerate() Spec {
	return Spec{BaseDelayMs: 35, JitterMs: 25, LossPct: 0.015, LossBurstCorr: 0.3, ReorderPct: 0.008, DuplicatePct: 0.001, RateKbps: 1400, MTU: mtu(1500)}
}

// Race5GWeak returns weak-signal characteristics of a vehicle-mounted 5G modem.
func Race5GWeak() Spec {
	return Spec{BaseDelayMs: 80, JitterMs: 45, LossPct: 0.04, LossBurstCorr: 0.5, ReorderPct: 0.015, DuplicatePct: 0.002, RateKbps: 400, MTU: mtu(1500)}
}

// RaceHandoverSpike returns characteristics during a rapid cell tower handover.
func RaceHandoverSpike() Spec {
	return Spec{BaseDelayMs: 200, JitterMs: 100, LossPct: 0.15, LossBurstCorr: 0.8, ReorderPct: 0.05, DuplicatePct: 0.01, RateKbps: 100, MTU: mtu(1400)}
}

// WithRaceBlockage applies terrain/building blockage degradation in [0,1].
func (s Spec) WithRaceBlockage(severity float32) Spec {
	degradation := float32(1.0) - severity*0.7
	if degradation < 0.15 {
		degradation = 0.15
	}
	s.RateKbps = uint32(float32(s.RateKbps) * degradation)
	s.LossPct = clamp01(s.LossPct + severity*0.03)
	s.BaseDelayMs += uint32(severity * 50)
	s.JitterMs += uint32(severity * 30)
	return s
}

// WithMobilityEffects applies high-speed mobility degradation in [0,1].
func (s Spec) WithMobilityEffects(speedFactor float32) Spec {
	s.JitterMs += uint32(speedFactor * 25)
	s.LossBurstCorr = clampf(s.LossBurstCorr+speedFactor*0.2, 0, 0.8)
	s.ReorderPct = clampf(s.ReorderPct+speedFactor*0.01, 0, 0.03)
	return s
}

// WithUSBConstraints applies USB tethered-modem overhead.
func (s Spec) WithUSBConstraints() Spec {
	s.BaseDelayMs += 15
	s.JitterMs += 10
	if s.RateKbps > 2500 {
		s.RateKbps = 2500
	}
	return s
}

// WithHandoverSpike applies a transient RTT/loss spike typical of a handover event.
func (s Spec) WithHandoverSpike() Spec {
	s.BaseDelayMs += 200
	s.JitterMs *= 3
	s.LossPct = clamp01(s.LossPct * 10)
	s.LossBurstCorr = 0.8
	s.ReorderPct *= 5
	return s
}

// WithMmWaveBlockage applies sudden mmWave beam blockage in [0,1].
func (s Spec) WithMmWaveBlockage(severity float32) Spec {
	severity = clamp01(severity)
	s.LossPct = clamp01(s.LossPct + severity*0.3)
	s.LossBurstCorr = clamp01(s.LossBurstCorr + severity*0.5)
	s.BaseDelayMs += uint32(severity * 100)
	s.JitterMs += uint32(severity * 50)
	s.RateKbps = uint32(float32(s.RateKbps) * (1 - severity*0.9))
	return s
}

// WithBeamformingSteering applies beam-steering delay/reorder effects in [0,1].
func (s Spec) WithBeamformingSteering(intensity float32) Spec {
	intensity = clamp01(intensity)
	s.JitterMs += uint32(intensity * 20)
	s.ReorderPct += intensity * 0.01
	s.LossPct += intensity * 0.005
	s.LossBurstCorr += intensity * 0.3
	return s
}

// WithCarrierAggregation applies multi-band carrier aggregation effects.
func (s Spec) WithCarrierAggregation(caBands uint32) Spec {
	multiplier := float32(caBands)
	if multiplier < 1 {
		multiplier = 1
	}
	s.RateKbps = uint32(float32(s.RateKbps) * multiplier)
	s.ReorderPct += (multiplier - 1) * 0.002
	s.JitterMs += uint32((multiplier - 1) * 5)
	return s
}

// WithBufferbloat applies queue-buildup delay/jitter inflation in [0,1].
func (s Spec) WithBufferbloat(severity float32) Spec {
	multiplier := 1 + severity*5
	s.BaseDelayMs = uint32(float32(s.BaseDelayMs) * multiplier)
	s.JitterMs = uint32(float32(s.JitterMs) * multiplier)
	return s
}

func clamp01(v float32) float32 { return clampf(v, 0, 1) }

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

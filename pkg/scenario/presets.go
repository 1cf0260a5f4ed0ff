package scenario

import (
	"time"

	"github.com/RephlexZero/rist-bonding-sub001/pkg/direction"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/schedule"
)

// BaselineGood returns a single high-quality link for smoke testing.
func BaselineGood() TestScenario {
	return TestScenario{
		Name:        "baseline_good",
		Description: "Single high-quality link for baseline testing",
		Links: []LinkSpec{
			Symmetric("primary", "tx0", "rx0", schedule.Constant{Spec: direction.Good()}),
		},
		DurationSeconds: dur(30),
		Seed:            1,
	}
}

// BondingAsymmetric returns two links of differing quality, exercising
// weight adaptation under sustained asymmetry.
func BondingAsymmetric() TestScenario {
	return TestScenario{
		Name:        "bonding_asymmetric",
		Description: "Two links with different quality for bonding tests",
		Links: []LinkSpec{
			Symmetric("primary", "tx0", "rx0", schedule.Constant{Spec: direction.Typical()}),
			Symmetric("secondary", "tx1", "rx1", schedule.Constant{Spec: direction.Poor()}),
		},
		DurationSeconds: dur(120),
		Metadata: map[string]string{
			"test_type":         "bonding",
			"expected_behavior": "weight_adaptation",
		},
		Seed: 2,
	}
}

// MobileHandover returns a single cellular link with a mid-run handover
// spike on both directions.
func MobileHandover() TestScenario {
	return TestScenario{
		Name:            "mobile_handover",
		Description:     "Mobile network with simulated handover events",
		Links:           []LinkSpec{AsymmetricCellular("cellular", "tx0", "rx0")},
		DurationSeconds: dur(180),
		Seed:            3,
	}
}

// DegradingNetwork returns a single link that ramps from good to poor.
func DegradingNetwork() TestScenario {
	good, poor := direction.Good(), direction.Poor()
	return TestScenario{
		Name:            "degrading_network",
		Description:     "Network that starts good and degrades over time",
		Links:           []LinkSpec{Symmetric("degrading", "tx0", "rx0", schedule.DegradationCycle(good, poor))},
		DurationSeconds: dur(120),
		Seed:            4,
	}
}

// NRToLTEHandover returns a single link dropping from 5G to LTE quality
// with a transient handover spike.
func NRToLTEHandover() TestScenario {
	nrGood := direction.NRGood()
	lteEdge := direction.LTEDownlink()
	return TestScenario{
		Name:        "nr_to_lte_handover",
		Description: "5G to LTE handover with quality degradation",
		Links: []LinkSpec{
			Symmetric("handover", "tx0", "rx0", schedule.Steps{Steps: []schedule.Step{
				{At: 0, Spec: nrGood},
				{At: 60 * time.Second, Spec: lteEdge.WithHandoverSpike()},
				{At: 65 * time.Second, Spec: lteEdge},
			}}),
		},
		DurationSeconds: dur(120),
		Seed:            5,
	}
}

// NRMmWaveMobility returns a single mmWave link with two beam-blockage
// events of differing severity.
func NRMmWaveMobility() TestScenario {
	nr := direction.NRMmWave()
	return TestScenario{
		Name:        "nr_mmwave_mobility",
		Description: "5G mmWave with beam blockage events during mobility",
		Links: []LinkSpec{
			Symmetric("mmwave", "tx0", "rx0", schedule.Steps{Steps: []schedule.Step{
				{At: 0, Spec: nr},
				{At: 30 * time.Second, Spec: nr.WithMmWaveBlockage(1.0)},
				{At: 33 * time.Second, Spec: nr},
				{At: 60 * time.Second, Spec: nr.WithMmWaveBlockage(0.5)},
				{At: 65 * time.Second, Spec: nr},
			}}),
		},
		DurationSeconds: dur(120),
		Seed:            6,
	}
}

// NRNetworkSlicing returns three concurrent links modeling URLLC, eMBB and
// mMTC network slices bonded together.
func NRNetworkSlicing() TestScenario {
	return TestScenario{
		Name:        "nr_network_slicing",
		Description: "Multi-link 5G with different network slicing characteristics",
		Links: []LinkSpec{
			Symmetric("urllc", "tx0", "rx0", schedule.Constant{Spec: direction.NRURLLC()}),
			Symmetric("embb", "tx1", "rx1", schedule.Constant{Spec: direction.NREMBB()}),
			Symmetric("mmtc", "tx2", "rx2", schedule.Constant{Spec: direction.NRMMTC()}),
		},
		DurationSeconds: dur(300),
		Metadata: map[string]string{
			"test_type": "network_slicing",
			"slices":    "urllc,embb,mmtc",
		},
		Seed: 7,
	}
}

// NRCarrierAggregationTest returns a single link ramping through increasing
// carrier-aggregation band counts.
func NRCarrierAggregationTest() TestScenario {
	return TestScenario{
		Name:        "nr_carrier_aggregation_test",
		Description: "5G with carrier aggregation across multiple bands",
		Links: []LinkSpec{
			Symmetric("ca_link", "tx0", "rx0", schedule.Steps{Steps: []schedule.Step{
				{At: 0, Spec: direction.NRSub6GHz()},
				{At: 30 * time.Second, Spec: direction.NRSub6GHz().WithCarrierAggregation(2)},
				{At: 60 * time.Second, Spec: direction.NRSub6GHz().WithCarrierAggregation(3)},
				{At: 90 * time.Second, Spec: direction.NRCarrierAggregation()},
			}}),
		},
		DurationSeconds: dur(120),
		Seed:            8,
	}
}

// NRBeamformingInterference returns a single link oscillating between
// stable and beamforming-interference states via a seeded Markov chain.
func NRBeamformingInterference() TestScenario {
	s := TestScenario{
		Name:            "nr_beamforming_interference",
		Description:     "5G beamforming with interference and beam steering effects",
		DurationSeconds: dur(180),
		Seed:            9,
	}
	s.Links = []LinkSpec{Symmetric("beamform", "tx0", "rx0",
		schedule.BurstyMarkov(direction.NRSub6GHz(), direction.NRBeamformingInterference(), s.Seed))}
	return s
}

// All returns the complete preset catalog, keyed by name.
func All() map[string]func() TestScenario {
	return map[string]func() TestScenario{
		"baseline_good":                BaselineGood,
		"bonding_asymmetric":           BondingAsymmetric,
		"mobile_handover":              MobileHandover,
		"degrading_network":            DegradingNetwork,
		"nr_to_lte_handover":           NRToLTEHandover,
		"nr_mmwave_mobility":           NRMmWaveMobility,
		"nr_network_slicing":           NRNetworkSlicing,
		"nr_carrier_aggregation_test":  NRCarrierAggregationTest,
		"nr_beamforming_interference":  NRBeamformingInterference,
	}
}

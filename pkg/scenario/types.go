// Package scenario describes complete bonded-link test scenarios: a set of
// named links, each with a tx/rx schedule, combined with run metadata.
package scenario

import (
	"fmt"
	"time"

	"github.com/RephlexZero/rist-bonding-sub001/pkg/direction"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/schedule"
)

// LinkSpec describes one bonded path: a tx interface driven by a schedule
// and an rx interface driven by a (possibly different) schedule.
type LinkSpec struct {
	Name    string            `yaml:"name" json:"name"`
	TxIface string            `yaml:"tx_iface" json:"tx_iface"`
	RxIface string            `yaml:"rx_iface" json:"rx_iface"`
	TxSched schedule.Schedule `yaml:"-" json:"-"`
	RxSched schedule.Schedule `yaml:"-" json:"-"`
}

// Symmetric builds a LinkSpec that applies the same schedule in both
// directions.
func Symmetric(name, tx, rx string, sched schedule.Schedule) LinkSpec {
	return LinkSpec{Name: name, TxIface: tx, RxIface: rx, TxSched: sched, RxSched: sched}
}

// AsymmetricCellular builds a LinkSpec modeling a cellular uplink/downlink
// pair with independent schedules and a mid-run handover spike on both
// directions.
func AsymmetricCellular(name, tx, rx string) LinkSpec {
	up := schedule.Steps{Steps: []schedule.Step{
		{At: 0, Spec: direction.LTEUplink()},
		{At: 90 * time.Second, Spec: direction.LTEUplink().WithHandoverSpike()},
		{At: 95 * time.Second, Spec: direction.LTEUplink()},
	}}
	down := schedule.Steps{Steps: []schedule.Step{
		{At: 0, Spec: direction.LTEDownlink()},
		{At: 90 * time.Second, Spec: direction.LTEDownlink().WithHandoverSpike()},
		{At: 95 * time.Second, Spec: direction.LTEDownlink()},
	}}
	return LinkSpec{Name: name, TxIface: tx, RxIface: rx, TxSched: up, RxSched: down}
}

// TestScenario combines one or more bonded links into a complete run.
type TestScenario struct {
	Name            string            `yaml:"name" json:"name"`
	Description     string            `yaml:"description" json:"description"`
	Links           []LinkSpec        `yaml:"-" json:"-"`
	DurationSeconds *uint64           `yaml:"duration_seconds,omitempty" json:"duration_seconds,omitempty"`
	Metadata        map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
	// Seed is XORed with a link's index to derive that link's deterministic
	// per-link PRNG seed for Markov schedules.
	Seed int64 `yaml:"seed" json:"seed"`
}

func dur(s uint64) *uint64 { return &s }

// Validate checks that link names are unique and interfaces are non-empty.
func (t TestScenario) Validate() error {
	if len(t.Links) == 0 {
		return fmt.Errorf("scenario %q: at least one link required", t.Name)
	}
	seen := make(map[string]bool, len(t.Links))
	for _, l := range t.Links {
		if l.TxIface == "" || l.RxIface == "" {
			return fmt.Errorf("scenario %q: link %q missing interface names", t.Name, l.Name)
		}
		if seen[l.Name] {
			return fmt.Errorf("scenario %q: duplicate link name %q", t.Name, l.Name)
		}
		seen[l.Name] = true
	}
	return nil
}

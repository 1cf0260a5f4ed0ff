// Package snapshot defines the exportable record of a completed or
// in-flight testbench run: scenario metadata, per-link impairment and
// qdisc counters, dispatcher weight history, and overall run status.
package snapshot

import (
	"time"
)

// RunStatus mirrors the orchestrator's lifecycle state at export time.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusStopped   RunStatus = "stopped"
)

// RunSnapshot is the complete exportable record of one scenario run.
type RunSnapshot struct {
	RunID        string    `json:"run_id"`
	ScenarioName string    `json:"scenario_name"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time,omitempty"`
	Duration     string    `json:"duration,omitempty"`

	Status  RunStatus `json:"status"`
	Message string    `json:"message,omitempty"`

	Links []LinkSnapshot `json:"links"`

	WeightHistory []WeightSample `json:"weight_history,omitempty"`

	Sessions   []SessionSnapshot  `json:"sessions"`
	Dispatcher DispatcherSnapshot `json:"dispatcher"`

	Errors []string `json:"errors,omitempty"`
}

// SessionSnapshot is one RIST sender session's final statistics and
// dispatcher scheduling state, as of the end of the run phase.
type SessionSnapshot struct {
	SessionID     uint32  `json:"session_id"`
	LossRate      float64 `json:"loss_rate"`
	RTTUs         int64   `json:"rtt_us"`
	ThroughputBps uint64  `json:"throughput_bps"`
	Weight        float64 `json:"weight"`
	Deficit       int64   `json:"deficit"`
}

// DispatcherSnapshot is the dispatcher's scheduling state as of the end of
// the run phase: which output it last selected, every output's lifecycle
// state, how many times the hysteresis gate has actually applied a new
// weight vector, and the keyframe duplication token budget remaining.
type DispatcherSnapshot struct {
	LastSelectedPad    uint32            `json:"last_selected_pad"`
	OutputStates       map[uint32]string `json:"output_states"`
	SwitchCount        int               `json:"switch_count"`
	DupTokensRemaining float64           `json:"dup_tokens_remaining"`
}

// LinkSnapshot is one bonded link's namespace/interface identity and final
// qdisc counters.
type LinkSnapshot struct {
	Name      string `json:"name"`
	TxIface   string `json:"tx_iface"`
	RxIface   string `json:"rx_iface"`
	TxNetns   string `json:"tx_netns"`
	RxNetns   string `json:"rx_netns"`
	TxStats   LinkCounters `json:"tx_stats"`
	RxStats   LinkCounters `json:"rx_stats"`
}

// LinkCounters mirrors qdisc.LinkStats for serialization without importing
// the qdisc package's netlink dependency into report consumers.
type LinkCounters struct {
	BytesSent   uint64 `json:"bytes_sent"`
	PacketsSent uint64 `json:"packets_sent"`
	PacketsDrop uint64 `json:"packets_drop"`
}

// WeightSample is one point-in-time dispatcher weight vector. The
// orchestrator does not record samples, so the RunSnapshot it returns has
// an empty WeightHistory.
type WeightSample struct {
	Timestamp time.Time          `json:"timestamp"`
	Weights   map[uint32]float64 `json:"weights"`
}

// LiveRunState is the current state of a running scenario, as rendered by
// reporting.ProgressReporter while a run is in flight.
type LiveRunState struct {
	RunID        string        `json:"run_id"`
	ScenarioName string        `json:"scenario_name"`
	State        string        `json:"state"`
	StartTime    time.Time     `json:"start_time"`
	Elapsed      time.Duration `json:"elapsed"`
	LatestWeights map[uint32]float64 `json:"latest_weights,omitempty"`
}

package reporting

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/RephlexZero/rist-bonding-sub001/pkg/snapshot"
)

// OutputFormat represents the progress output format.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatTUI  OutputFormat = "tui"
)

// ProgressReporter reports run execution progress.
type ProgressReporter struct {
	format OutputFormat
	logger *Logger
}

// NewProgressReporter creates a new progress reporter.
func NewProgressReporter(format OutputFormat, logger *Logger) *ProgressReporter {
	return &ProgressReporter{
		format: format,
		logger: logger,
	}
}

// ReportState reports the current run state.
func (pr *ProgressReporter) ReportState(state snapshot.LiveRunState) {
	switch pr.format {
	case FormatJSON:
		pr.reportJSON(state)
	case FormatTUI:
		pr.reportTUI(state)
	default:
		pr.reportText(state)
	}
}

// ReportStateTransition reports a state transition.
func (pr *ProgressReporter) ReportStateTransition(from, to string) {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":      "state_transition",
			"from_state": from,
			"to_state":   to,
			"timestamp":  time.Now(),
		})
		fmt.Println(string(data))
	case FormatTUI:
		pr.clearLine()
		fmt.Printf("state: %s -> %s\n", from, to)
	default:
		fmt.Printf("[STATE] %s -> %s\n", from, to)
	}
}

// ReportRunCompleted reports run completion.
func (pr *ProgressReporter) ReportRunCompleted(snap *snapshot.RunSnapshot) {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":     "run_completed",
			"snapshot":  snap,
			"timestamp": time.Now(),
		})
		fmt.Println(string(data))
	case FormatTUI:
		pr.clearLine()
		pr.printRunSummary(snap)
	default:
		pr.printTextSummary(snap)
	}
}

func (pr *ProgressReporter) reportText(state snapshot.LiveRunState) {
	fmt.Printf("[%s] %s | Elapsed: %s\n",
		time.Now().Format("15:04:05"),
		state.State,
		state.Elapsed.Round(time.Second),
	)

	if len(state.LatestWeights) > 0 {
		fmt.Printf("  Weights: ")
		for id, w := range state.LatestWeights {
			fmt.Printf("%d=%.2f ", id, w)
		}
		fmt.Println()
	}
}

func (pr *ProgressReporter) reportJSON(state snapshot.LiveRunState) {
	data, err := json.Marshal(state)
	if err != nil {
		pr.logger.Error("failed to marshal state", "error", err)
		return
	}
	fmt.Println(string(data))
}

func (pr *ProgressReporter) reportTUI(state snapshot.LiveRunState) {
	pr.clearScreen()

	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("   Bonded-Link Run: %s\n", state.ScenarioName)
	fmt.Printf("   Run ID: %s\n", state.RunID)
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()

	fmt.Printf("State: %s\n", state.State)
	fmt.Printf("Elapsed: %s\n", state.Elapsed.Round(time.Second))
	fmt.Println()

	if len(state.LatestWeights) > 0 {
		fmt.Printf("Dispatcher Weights:\n")
		for id, w := range state.LatestWeights {
			fmt.Printf("   • session %d: %.2f\n", id, w)
		}
		fmt.Println()
	}

	fmt.Println(strings.Repeat("-", 80))
}

func (pr *ProgressReporter) printRunSummary(snap *snapshot.RunSnapshot) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("   RUN SUMMARY")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()

	fmt.Printf("Status: %s\n", snap.Status)
	fmt.Printf("   Scenario: %s\n", snap.ScenarioName)
	fmt.Printf("   Run ID: %s\n", snap.RunID)
	fmt.Printf("   Duration: %s\n", snap.Duration)
	fmt.Println()

	if len(snap.Links) > 0 {
		fmt.Printf("Links (%d):\n", len(snap.Links))
		for _, l := range snap.Links {
			fmt.Printf("   • %s (%s <-> %s)\n", l.Name, l.TxIface, l.RxIface)
		}
		fmt.Println()
	}

	if len(snap.Sessions) > 0 {
		fmt.Printf("Sessions (%d):\n", len(snap.Sessions))
		for _, s := range snap.Sessions {
			fmt.Printf("   • session %d: loss=%.4f rtt=%dus throughput=%dbps weight=%.4f deficit=%d\n",
				s.SessionID, s.LossRate, s.RTTUs, s.ThroughputBps, s.Weight, s.Deficit)
		}
		fmt.Printf("   last_selected_pad=%d switch_count=%d dup_tokens_remaining=%.2f\n",
			snap.Dispatcher.LastSelectedPad, snap.Dispatcher.SwitchCount, snap.Dispatcher.DupTokensRemaining)
		fmt.Println()
	}

	if len(snap.Errors) > 0 {
		fmt.Printf("Errors (%d):\n", len(snap.Errors))
		for _, e := range snap.Errors {
			fmt.Printf("   • %s\n", e)
		}
		fmt.Println()
	}

	fmt.Println(strings.Repeat("=", 80))
}

func (pr *ProgressReporter) printTextSummary(snap *snapshot.RunSnapshot) {
	fmt.Printf("\n[RUN SUMMARY] %s\n", snap.Status)
	fmt.Printf("  Scenario: %s\n", snap.ScenarioName)
	fmt.Printf("  Run ID: %s\n", snap.RunID)
	fmt.Printf("  Duration: %s\n", snap.Duration)
	fmt.Printf("  Links: %d\n", len(snap.Links))
	if len(snap.Errors) > 0 {
		fmt.Printf("  Errors: %d\n", len(snap.Errors))
	}
	fmt.Println()
}

// clearScreen clears the terminal screen.
func (pr *ProgressReporter) clearScreen() {
	fmt.Print("\033[2J\033[H")
}

// clearLine clears the current line.
func (pr *ProgressReporter) clearLine() {
	fmt.Print("\033[K")
}

package reporting

import (
	"time"

	"github.com/RephlexZero/rist-bonding-sub001/pkg/snapshot"
)

// ReportSummary contains a summary of one stored run snapshot.
type ReportSummary struct {
	RunID        string             `json:"run_id"`
	ScenarioName string             `json:"scenario_name"`
	StartTime    time.Time          `json:"start_time"`
	Duration     string             `json:"duration"`
	Status       snapshot.RunStatus `json:"status"`
	Filepath     string             `json:"filepath"`
}

package reporting

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/RephlexZero/rist-bonding-sub001/pkg/snapshot"
)

// ReportFormat represents the report output format.
type ReportFormat string

const (
	ReportFormatHTML ReportFormat = "html"
	ReportFormatText ReportFormat = "text"
	ReportFormatJSON ReportFormat = "json"
)

// Formatter generates formatted reports from a run snapshot.
type Formatter struct {
	logger *Logger
}

// NewFormatter creates a new report formatter.
func NewFormatter(logger *Logger) *Formatter {
	return &Formatter{
		logger: logger,
	}
}

// GenerateReport generates a report in the specified format.
func (f *Formatter) GenerateReport(snap *snapshot.RunSnapshot, format ReportFormat, outputPath string) error {
	switch format {
	case ReportFormatHTML:
		return f.generateHTMLReport(snap, outputPath)
	case ReportFormatText:
		return f.generateTextReport(snap, outputPath)
	case ReportFormatJSON:
		return fmt.Errorf("JSON format is automatically saved by storage")
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

func (f *Formatter) generateHTMLReport(snap *snapshot.RunSnapshot, outputPath string) error {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatTime": func(t time.Time) string {
			return t.Format("2006-01-02 15:04:05")
		},
		"statusClass": func(status snapshot.RunStatus) string {
			if status == snapshot.StatusCompleted {
				return "pass"
			}
			return "fail"
		},
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse HTML template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, snap); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write HTML report: %w", err)
	}

	f.logger.Info("HTML report generated", "path", outputPath)
	return nil
}

func (f *Formatter) generateTextReport(snap *snapshot.RunSnapshot, outputPath string) error {
	var buf bytes.Buffer

	buf.WriteString(strings.Repeat("=", 80) + "\n")
	buf.WriteString("   BONDED-LINK RUN REPORT\n")
	buf.WriteString(strings.Repeat("=", 80) + "\n\n")

	buf.WriteString("RUN SUMMARY\n")
	buf.WriteString(strings.Repeat("-", 80) + "\n")
	buf.WriteString(fmt.Sprintf("Status:       %s\n", snap.Status))
	buf.WriteString(fmt.Sprintf("Run ID:       %s\n", snap.RunID))
	buf.WriteString(fmt.Sprintf("Scenario:     %s\n", snap.ScenarioName))
	buf.WriteString(fmt.Sprintf("Start Time:   %s\n", snap.StartTime.Format("2006-01-02 15:04:05")))
	buf.WriteString(fmt.Sprintf("End Time:     %s\n", snap.EndTime.Format("2006-01-02 15:04:05")))
	buf.WriteString(fmt.Sprintf("Duration:     %s\n", snap.Duration))
	if snap.Message != "" {
		buf.WriteString(fmt.Sprintf("Message:      %s\n", snap.Message))
	}
	buf.WriteString("\n")

	if len(snap.Links) > 0 {
		buf.WriteString("LINKS\n")
		buf.WriteString(strings.Repeat("-", 80) + "\n")
		for i, l := range snap.Links {
			buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, l.Name))
			buf.WriteString(fmt.Sprintf("   TX: %-12s netns=%-16s bytes=%-10d packets=%-8d drops=%d\n",
				l.TxIface, l.TxNetns, l.TxStats.BytesSent, l.TxStats.PacketsSent, l.TxStats.PacketsDrop))
			buf.WriteString(fmt.Sprintf("   RX: %-12s netns=%-16s bytes=%-10d packets=%-8d drops=%d\n",
				l.RxIface, l.RxNetns, l.RxStats.BytesSent, l.RxStats.PacketsSent, l.RxStats.PacketsDrop))
			buf.WriteString("\n")
		}
	}

	if len(snap.WeightHistory) > 0 {
		buf.WriteString("DISPATCHER WEIGHT HISTORY\n")
		buf.WriteString(strings.Repeat("-", 80) + "\n")
		for _, sample := range snap.WeightHistory {
			buf.WriteString(fmt.Sprintf("%s %v\n", sample.Timestamp.Format("15:04:05"), sample.Weights))
		}
		buf.WriteString("\n")
	}

	if len(snap.Sessions) > 0 {
		buf.WriteString("SESSIONS\n")
		buf.WriteString(strings.Repeat("-", 80) + "\n")
		for _, s := range snap.Sessions {
			buf.WriteString(fmt.Sprintf("session=%-4d loss=%-8.4f rtt_us=%-10d throughput_bps=%-12d weight=%-8.4f deficit=%d\n",
				s.SessionID, s.LossRate, s.RTTUs, s.ThroughputBps, s.Weight, s.Deficit))
		}
		buf.WriteString("\n")

		buf.WriteString("DISPATCHER\n")
		buf.WriteString(strings.Repeat("-", 80) + "\n")
		buf.WriteString(fmt.Sprintf("last_selected_pad:    %d\n", snap.Dispatcher.LastSelectedPad))
		buf.WriteString(fmt.Sprintf("switch_count:         %d\n", snap.Dispatcher.SwitchCount))
		buf.WriteString(fmt.Sprintf("dup_tokens_remaining: %.2f\n", snap.Dispatcher.DupTokensRemaining))
		buf.WriteString(fmt.Sprintf("output_states:        %v\n", snap.Dispatcher.OutputStates))
		buf.WriteString("\n")
	}

	if len(snap.Errors) > 0 {
		buf.WriteString("ERRORS\n")
		buf.WriteString(strings.Repeat("-", 80) + "\n")
		for i, err := range snap.Errors {
			buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, err))
		}
		buf.WriteString("\n")
	}

	buf.WriteString(strings.Repeat("=", 80) + "\n")
	buf.WriteString(fmt.Sprintf("Generated: %s\n", snap.EndTime.Format("2006-01-02 15:04:05")))
	buf.WriteString(strings.Repeat("=", 80) + "\n")

	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write text report: %w", err)
	}

	f.logger.Info("text report generated", "path", outputPath)
	return nil
}

// CompareReports generates a comparison report for multiple runs.
func (f *Formatter) CompareReports(snaps []*snapshot.RunSnapshot, outputPath string) error {
	if len(snaps) < 2 {
		return fmt.Errorf("need at least 2 snapshots to compare")
	}

	var buf bytes.Buffer

	buf.WriteString(strings.Repeat("=", 80) + "\n")
	buf.WriteString("   BONDED-LINK RUN COMPARISON\n")
	buf.WriteString(strings.Repeat("=", 80) + "\n\n")

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].StartTime.Before(snaps[j].StartTime)
	})

	buf.WriteString("RUN SUMMARY\n")
	buf.WriteString(strings.Repeat("-", 80) + "\n")
	buf.WriteString(fmt.Sprintf("%-20s %-20s %-12s %-10s %s\n",
		"Run ID", "Scenario", "Status", "Duration", "Links"))
	buf.WriteString(strings.Repeat("-", 80) + "\n")

	for _, snap := range snaps {
		buf.WriteString(fmt.Sprintf("%-20s %-20s %-12s %-10s %d\n",
			snap.RunID[:min(20, len(snap.RunID))],
			snap.ScenarioName[:min(20, len(snap.ScenarioName))],
			snap.Status,
			snap.Duration,
			len(snap.Links),
		))
	}
	buf.WriteString("\n")

	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write comparison report: %w", err)
	}

	f.logger.Info("comparison report generated", "path", outputPath)
	return nil
}

// GetReportPath generates a report file path for a snapshot and format.
func GetReportPath(snap *snapshot.RunSnapshot, format ReportFormat, outputDir string) string {
	timestamp := snap.StartTime.Format("20060102-150405")
	ext := string(format)
	filename := fmt.Sprintf("report-%s-%s.%s", timestamp, snap.RunID, ext)
	return filepath.Join(outputDir, filename)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Bonded-Link Run Report - {{.RunID}}</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 1200px;
            margin: 0 auto;
            padding: 20px;
            background-color: #f5f5f5;
        }
        .container {
            background-color: white;
            border-radius: 8px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
            padding: 30px;
        }
        h1, h2 {
            color: #2c3e50;
            border-bottom: 2px solid #3498db;
            padding-bottom: 10px;
        }
        .header {
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            color: white;
            padding: 30px;
            border-radius: 8px 8px 0 0;
            margin: -30px -30px 30px -30px;
        }
        .status {
            display: inline-block;
            padding: 5px 15px;
            border-radius: 4px;
            font-weight: bold;
            margin-left: 10px;
        }
        .status.pass {
            background-color: #27ae60;
            color: white;
        }
        .status.fail {
            background-color: #e74c3c;
            color: white;
        }
        .info-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(250px, 1fr));
            gap: 20px;
            margin: 20px 0;
        }
        .info-box {
            background-color: #ecf0f1;
            padding: 15px;
            border-radius: 4px;
        }
        .info-label {
            font-weight: bold;
            color: #7f8c8d;
            font-size: 0.9em;
            margin-bottom: 5px;
        }
        .info-value {
            font-size: 1.1em;
            color: #2c3e50;
        }
        table {
            width: 100%;
            border-collapse: collapse;
            margin: 20px 0;
        }
        th, td {
            padding: 12px;
            text-align: left;
            border-bottom: 1px solid #ddd;
        }
        th {
            background-color: #3498db;
            color: white;
        }
        tr:hover {
            background-color: #f5f5f5;
        }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Bonded-Link Run Report</h1>
            <p>{{.ScenarioName}}</p>
            <p>Run ID: {{.RunID}}</p>
        </div>

        <h2>Run Summary<span class="status {{statusClass .Status}}">{{.Status}}</span></h2>
        <div class="info-grid">
            <div class="info-box">
                <div class="info-label">Start Time</div>
                <div class="info-value">{{formatTime .StartTime}}</div>
            </div>
            <div class="info-box">
                <div class="info-label">End Time</div>
                <div class="info-value">{{formatTime .EndTime}}</div>
            </div>
            <div class="info-box">
                <div class="info-label">Duration</div>
                <div class="info-value">{{.Duration}}</div>
            </div>
        </div>

        {{if .Links}}
        <h2>Links</h2>
        <table>
            <thead>
                <tr>
                    <th>Name</th>
                    <th>TX Iface</th>
                    <th>RX Iface</th>
                    <th>TX Bytes</th>
                    <th>RX Bytes</th>
                    <th>TX Drops</th>
                    <th>RX Drops</th>
                </tr>
            </thead>
            <tbody>
                {{range .Links}}
                <tr>
                    <td>{{.Name}}</td>
                    <td>{{.TxIface}}</td>
                    <td>{{.RxIface}}</td>
                    <td>{{.TxStats.BytesSent}}</td>
                    <td>{{.RxStats.BytesSent}}</td>
                    <td>{{.TxStats.PacketsDrop}}</td>
                    <td>{{.RxStats.PacketsDrop}}</td>
                </tr>
                {{end}}
            </tbody>
        </table>
        {{end}}

        {{if .Sessions}}
        <h2>Sessions</h2>
        <table>
            <thead>
                <tr>
                    <th>Session</th>
                    <th>Loss Rate</th>
                    <th>RTT (us)</th>
                    <th>Throughput (bps)</th>
                    <th>Weight</th>
                    <th>Deficit</th>
                </tr>
            </thead>
            <tbody>
                {{range .Sessions}}
                <tr>
                    <td>{{.SessionID}}</td>
                    <td>{{.LossRate}}</td>
                    <td>{{.RTTUs}}</td>
                    <td>{{.ThroughputBps}}</td>
                    <td>{{.Weight}}</td>
                    <td>{{.Deficit}}</td>
                </tr>
                {{end}}
            </tbody>
        </table>
        <h2>Dispatcher</h2>
        <div class="info-grid">
            <div class="info-box">
                <div class="info-label">Last Selected Pad</div>
                <div class="info-value">{{.Dispatcher.LastSelectedPad}}</div>
            </div>
            <div class="info-box">
                <div class="info-label">Switch Count</div>
                <div class="info-value">{{.Dispatcher.SwitchCount}}</div>
            </div>
            <div class="info-box">
                <div class="info-label">Dup Tokens Remaining</div>
                <div class="info-value">{{.Dispatcher.DupTokensRemaining}}</div>
            </div>
        </div>
        {{end}}

        {{if .Errors}}
        <h2>Errors</h2>
        <ul>
            {{range .Errors}}
            <li>{{.}}</li>
            {{end}}
        </ul>
        {{end}}

        <p style="text-align: center; color: #7f8c8d; margin-top: 30px;">
            Generated {{formatTime .EndTime}}
        </p>
    </div>
</body>
</html>
`

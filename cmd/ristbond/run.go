package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RephlexZero/rist-bonding-sub001/pkg/netns"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/orchestrator"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/rebalance"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/reporting"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/scenario"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/scenario/parser"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/scenario/validator"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Args:  cobra.NoArgs,
	Short: "Run a bonded-link test scenario",
	Long:  `Loads a scenario (from a YAML file or a built-in preset) and runs it end to end.`,
	RunE:  runScenario,
}

func init() {
	runCmd.Flags().String("scenario", "", "path to scenario YAML file")
	runCmd.Flags().String("preset", "", "name of a built-in preset scenario (see 'ristbond list')")
	runCmd.Flags().StringArray("set", []string{}, "override scenario values (e.g., --set duration_seconds=60)")
	runCmd.Flags().String("format", "text", "progress output format (text, json, tui)")
	runCmd.Flags().String("strategy", "ewma", "rebalance strategy (fixed, ewma, aimd)")
	runCmd.Flags().Bool("dry-run", false, "validate the scenario without executing it")
}

func runScenario(cmd *cobra.Command, args []string) error {
	scenarioPath, _ := cmd.Flags().GetString("scenario")
	presetName, _ := cmd.Flags().GetString("preset")
	setFlags, _ := cmd.Flags().GetStringArray("set")
	outputFormat, _ := cmd.Flags().GetString("format")
	strategyName, _ := cmd.Flags().GetString("strategy")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	if scenarioPath == "" && presetName == "" {
		return fmt.Errorf("one of --scenario or --preset is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logLevel := reporting.LogLevelInfo
	if verbose {
		logLevel = reporting.LogLevelDebug
	}
	logger := reporting.NewLogger(reporting.LoggerConfig{
		Level:  logLevel,
		Format: reporting.LogFormat(cfg.Framework.LogFormat),
		Output: os.Stdout,
	})

	logger.Info("ristbond starting", "version", version)

	ts, err := loadScenario(scenarioPath, presetName, setFlags)
	if err != nil {
		return err
	}

	logger.Info("validating scenario", "name", ts.Name)
	v := validator.New()
	if err := v.Validate(ts); err != nil {
		fmt.Println(v.GetReport())
		return fmt.Errorf("scenario validation failed: %w", err)
	}
	if v.HasWarnings() {
		fmt.Println(v.GetReport())
	}

	if dryRun {
		fmt.Println("scenario is valid (dry-run mode)")
		return nil
	}

	strategy, err := buildStrategy(strategyName)
	if err != nil {
		return err
	}

	nsManager := netns.New(cfg.NamespacePrefix())
	orch := orchestrator.New(cfg, orchestrator.Deps{
		NSManager: nsManager,
		Strategy:  strategy,
	})

	progressReporter := reporting.NewProgressReporter(reporting.OutputFormat(outputFormat), logger)

	storage, err := reporting.NewStorage(cfg.Reporting.OutputDir, cfg.Reporting.KeepLastN, logger)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}

	ctx := context.Background()
	logger.Info("starting run", "scenario", ts.Name)

	snap, runErr := orch.Execute(ctx, ts)

	if snap != nil {
		if _, saveErr := storage.SaveReport(snap); saveErr != nil {
			logger.Warn("failed to save report", "error", saveErr)
		}
		progressReporter.ReportRunCompleted(snap)
	}

	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}

	logger.Info("run completed successfully")
	return nil
}

// loadScenario resolves a scenario from either a file path or a named
// preset, then applies any --set overrides.
func loadScenario(scenarioPath, presetName string, setFlags []string) (*scenario.TestScenario, error) {
	var ts scenario.TestScenario

	switch {
	case scenarioPath != "":
		p := parser.New(nil)
		parsed, err := p.ParseFile(scenarioPath)
		if err != nil {
			return nil, fmt.Errorf("failed to parse scenario: %w", err)
		}
		ts = *parsed

	case presetName != "":
		builder, ok := scenario.All()[presetName]
		if !ok {
			return nil, fmt.Errorf("unknown preset %q (see 'ristbond list')", presetName)
		}
		ts = builder()
	}

	if len(setFlags) > 0 {
		overrides, err := parser.ParseOverrides(setFlags)
		if err != nil {
			return nil, fmt.Errorf("failed to parse overrides: %w", err)
		}
		if v, ok := overrides["duration_seconds"]; ok {
			var secs uint64
			if _, err := fmt.Sscanf(v, "%d", &secs); err != nil {
				return nil, fmt.Errorf("invalid duration_seconds override %q: %w", v, err)
			}
			ts.DurationSeconds = &secs
		}
	}

	return &ts, nil
}

func buildStrategy(name string) (rebalance.Strategy, error) {
	switch strings.ToLower(name) {
	case "fixed":
		return rebalance.Fixed{}, nil
	case "ewma":
		return &rebalance.EWMA{Alpha: 0.2, RTTWeightFactor: 0.1}, nil
	case "aimd":
		return &rebalance.AIMD{}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q (expected fixed, ewma, or aimd)", name)
	}
}

// sortedPresetNames returns preset names in stable alphabetical order, for
// deterministic CLI output.
func sortedPresetNames() []string {
	all := scenario.All()
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

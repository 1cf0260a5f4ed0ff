package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RephlexZero/rist-bonding-sub001/pkg/scenario/parser"
	"github.com/RephlexZero/rist-bonding-sub001/pkg/scenario/validator"
)

var validateCmd = &cobra.Command{
	Use:   "validate [scenario-file]",
	Args:  cobra.ExactArgs(1),
	Short: "Validate a scenario YAML file",
	Long:  `Parses and validates a scenario file without running it, printing any warnings or errors found.`,
	RunE:  validateScenario,
}

func validateScenario(cmd *cobra.Command, args []string) error {
	path := args[0]

	p := parser.New(nil)
	ts, err := p.ParseFile(path)
	if err != nil {
		return fmt.Errorf("failed to parse scenario: %w", err)
	}

	v := validator.New()
	err = v.Validate(ts)

	if v.HasWarnings() || v.HasErrors() {
		fmt.Println(v.GetReport())
	}

	if err != nil {
		return fmt.Errorf("scenario is invalid: %w", err)
	}

	fmt.Printf("scenario %q is valid\n", ts.Name)
	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RephlexZero/rist-bonding-sub001/pkg/scenario"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Args:  cobra.NoArgs,
	Short: "List built-in preset scenarios",
	Long:  `Prints the name and description of every preset scenario bundled with ristbond.`,
	RunE:  listPresets,
}

func listPresets(cmd *cobra.Command, args []string) error {
	presets := scenario.All()
	names := sortedPresetNames()

	fmt.Printf("Available presets (%d):\n\n", len(names))
	for _, name := range names {
		ts := presets[name]()
		fmt.Printf("  %-32s %s\n", name, ts.Description)
	}

	return nil
}

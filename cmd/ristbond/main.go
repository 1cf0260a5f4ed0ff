package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	version = "dev" // set by build flags
)

var rootCmd = &cobra.Command{
	Use:   "ristbond",
	Short: "Bonded-link adaptive media transport testbench",
	Long: `ristbond drives a bonded-link network testbench: it creates network
namespaces and veth pairs per link, applies scheduled netem/tbf impairments
to emulate cellular and satellite conditions, and runs a DWRR-scheduled
dispatcher with RIST-stats-driven rebalancing across the links.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

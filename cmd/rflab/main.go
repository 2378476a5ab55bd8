// Command rflab is the bench toolbox of an RF hardware lab.
//
// It computes synthesizer registers, converts CAD exports, reads measurement
// files, drives the instruments on the bench and serves the calculators over
// HTTP.  Instrument addresses and file locations come from rflab.yml in the
// working directory, overridden by RFLAB_ environment variables.  Run
// rflab mkconf to write a starting configuration.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is the version number.  Typically injected via ldflags with git build
var Version = "1"

var rootCmd = &cobra.Command{
	Use:   "rflab",
	Short: "RF lab toolbox: synthesizer registers, CAD exports, instruments",
	Long: `rflab computes PLL register values, converts bills of materials and
netlists, reads Touchstone and VCO logs, and talks to the instruments
on the bench.

Examples:
  rflab synth adf4360 --out 646e6 --ref 40e6 --step 5e6
  rflab bom bpi board.txt
  rflab dsa815 trace --out trace.csv
  rflab serve`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupconfig(configFile)
	},
}

var configFile string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", ConfigFileName, "configuration file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rflab:", err)
		os.Exit(1)
	}
}

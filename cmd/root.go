package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/abhisek/gauge/internal/apperr"
)

var rootCmd = &cobra.Command{
	Use:   "gauge",
	Short: "Adaptive level placement and item-bank calibration",
	Long: "Gauge runs adaptive placement tests against a question bank, estimates\n" +
		"the test-taker's level and keeps the bank calibrated from the responses.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTake(cmd)
	},
}

// Execute runs the root command. Cancelling ctx stops long-running
// commands such as calibrate watch.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return 1
	}
	switch ae.Kind {
	case apperr.KindValidation:
		return 2
	case apperr.KindNotFound:
		return 3
	case apperr.KindConflict, apperr.KindState:
		return 4
	case apperr.KindExhausted:
		return 5
	}
	return 1
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides GAUGE_DB and the config file)")
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file (overrides GAUGE_CONFIG)")
	addTakeFlags(rootCmd)

	rootCmd.AddCommand(takeCmd)
	rootCmd.AddCommand(itemCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(importsCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(calibrateCmd)
	rootCmd.AddCommand(reclassifyCmd)
	rootCmd.AddCommand(reclassHistoryCmd)
	rootCmd.AddCommand(versionCmd)
}

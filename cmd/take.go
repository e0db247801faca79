package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/gauge/internal/app"
	"github.com/abhisek/gauge/internal/level"
)

var takeCmd = &cobra.Command{
	Use:   "take",
	Short: "Take a placement test in the terminal",
	Long: "Opens the full-screen test runner. An owner with an active session\n" +
		"resumes it; otherwise a new session starts at the configured level.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTake(cmd)
	},
}

func addTakeFlags(c *cobra.Command) {
	c.Flags().String("owner", "", "Owner (test-taker) ID; asked for when empty")
	c.Flags().String("self-report", "", "Level the test-taker believes they are at (A1-C2)")
}

func init() {
	addTakeFlags(takeCmd)
}

// runTake opens the store, builds dependencies, and launches the TUI.
func runTake(cmd *cobra.Command) error {
	owner, _ := cmd.Flags().GetString("owner")
	self, _ := cmd.Flags().GetString("self-report")

	opts := app.Options{OwnerID: owner}
	if self != "" {
		l, err := level.Parse(self)
		if err != nil {
			return fmt.Errorf("--self-report: %w", err)
		}
		opts.SelfReported = &l
	}

	d, err := openDeps(cmd, depsOpts{logToFile: true})
	if err != nil {
		return err
	}
	defer d.Close()

	opts.Engine = d.engine
	opts.Log = d.log.With("component", "tui")
	return app.Run(opts)
}

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/gauge/internal/calibration"
	"github.com/abhisek/gauge/internal/level"
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Analyze item performance and report on bank health",
}

var calibrateItemCmd = &cobra.Command{
	Use:   "item <item-id>",
	Short: "Show performance metrics for one item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		d, err := openDeps(cmd, depsOpts{})
		if err != nil {
			return err
		}
		defer d.Close()

		var m *calibration.ItemMetrics
		if refresh, _ := cmd.Flags().GetBool("refresh"); refresh {
			m, err = d.calib.AnalyzeItem(cmd.Context(), id)
		} else {
			m, err = d.calib.Metrics(cmd.Context(), id)
		}
		if err != nil {
			return err
		}
		printMetrics(cmd.OutOrStdout(), m)
		return nil
	},
}

var calibrateReportCmd = &cobra.Command{
	Use:   "report [report-id]",
	Short: "Generate a calibration report, or show a saved one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDeps(cmd, depsOpts{})
		if err != nil {
			return err
		}
		defer d.Close()

		var r *calibration.Report
		if len(args) == 1 {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			r, err = d.calib.Report(cmd.Context(), id)
			if err != nil {
				return err
			}
		} else {
			r, err = d.calib.GenerateReport(cmd.Context())
			if err != nil {
				return err
			}
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(r)
		}
		printReport(cmd.OutOrStdout(), r)
		return nil
	},
}

var calibrateHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved calibration reports, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		d, err := openDeps(cmd, depsOpts{})
		if err != nil {
			return err
		}
		defer d.Close()

		reports, err := d.calib.Reports(cmd.Context(), limit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(reports) == 0 {
			fmt.Fprintln(out, "No reports yet. Run 'gauge calibrate report'.")
			return nil
		}
		fmt.Fprintf(out, "%-5s  %-16s  %6s  %12s  %s\n", "ID", "Generated", "Items", "Needs review", "Priority")
		fmt.Fprintln(out, strings.Repeat("─", 60))
		for _, r := range reports {
			prio := ""
			if r.HighPriority(d.calib.Config().Report) {
				prio = "HIGH"
			}
			fmt.Fprintf(out, "%-5d  %-16s  %6d  %12d  %s\n",
				r.ID, r.GeneratedAt.Local().Format("2006-01-02 15:04"), r.TotalItems, r.NeedsReview, prio)
		}
		return nil
	},
}

var calibrateReviewCmd = &cobra.Command{
	Use:   "review",
	Short: "List flagged items with enough attempts, least trustworthy first",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDeps(cmd, depsOpts{})
		if err != nil {
			return err
		}
		defer d.Close()

		minAttempts, _ := cmd.Flags().GetInt("min-attempts")
		if !cmd.Flags().Changed("min-attempts") {
			minAttempts = -1 // service default
		}
		flagged, err := d.calib.Review(cmd.Context(), minAttempts)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(flagged) == 0 {
			fmt.Fprintln(out, "No items need review.")
			return nil
		}
		fmt.Fprintf(out, "%-6s  %-5s  %-10s  %8s  %8s  %10s  %-9s  %s\n",
			"Item", "Level", "Skill", "Attempts", "Accuracy", "Confidence", "Direction", "Suggest")
		fmt.Fprintln(out, strings.Repeat("─", 82))
		for _, m := range flagged {
			suggest := "-"
			if m.Recommended != nil {
				suggest = string(*m.Recommended)
			}
			fmt.Fprintf(out, "%-6d  %-5s  %-10s  %8d  %7g%%  %10g  %-9s  %s\n",
				m.ItemID, m.ItemLevel, m.Skill, m.Attempts, m.Accuracy, m.Confidence, m.Direction, suggest)
		}
		return nil
	},
}

var calibrateWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Regenerate the calibration report on a schedule until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDeps(cmd, depsOpts{})
		if err != nil {
			return err
		}
		defer d.Close()

		interval, _ := cmd.Flags().GetDuration("interval")
		if !cmd.Flags().Changed("interval") {
			interval = d.cfg.Calibration.Interval
		}
		if interval <= 0 {
			return fmt.Errorf("--interval must be positive")
		}

		out := cmd.OutOrStdout()
		rcfg := d.calib.Config().Report
		d.log.Info("calibration watch started", "interval", interval)
		err = d.calib.Watch(cmd.Context(), interval, func(r *calibration.Report) {
			fmt.Fprintf(out, "%s  report %d: %d/%d items need review\n",
				r.GeneratedAt.Local().Format("2006-01-02 15:04:05"), r.ID, r.NeedsReview, r.TotalItems)
			if r.HighPriority(rcfg) {
				d.log.Warn("calibration needs attention", "report_id", r.ID, "needs_review", r.NeedsReview, "total_items", r.TotalItems)
			}
		})
		if errors.Is(err, context.Canceled) {
			d.log.Info("calibration watch stopped")
			return nil
		}
		return err
	},
}

func init() {
	calibrateItemCmd.Flags().Bool("refresh", false, "Recompute from the response log instead of using stored metrics")
	calibrateReportCmd.Flags().Bool("json", false, "Print the report as JSON")
	calibrateHistoryCmd.Flags().Int("limit", 10, "Maximum number of reports")
	calibrateReviewCmd.Flags().Int("min-attempts", 10, "Only list items with at least this many attempts (defaults to calibration.min_attempts)")
	calibrateWatchCmd.Flags().Duration("interval", 0, "Time between reports (defaults to calibration.interval)")

	calibrateCmd.AddCommand(calibrateItemCmd)
	calibrateCmd.AddCommand(calibrateReportCmd)
	calibrateCmd.AddCommand(calibrateHistoryCmd)
	calibrateCmd.AddCommand(calibrateReviewCmd)
	calibrateCmd.AddCommand(calibrateWatchCmd)
}

func printMetrics(out io.Writer, m *calibration.ItemMetrics) {
	fmt.Fprintf(out, "Item %d (%s %s)\n", m.ItemID, m.ItemLevel, m.Skill)
	fmt.Fprintf(out, "  Attempts:     %d\n", m.Attempts)
	fmt.Fprintf(out, "  Accuracy:     %g%% (%d correct)\n", m.Accuracy, m.Correct)
	fmt.Fprintf(out, "  Avg time:     %gs\n", m.AvgElapsed)
	fmt.Fprintf(out, "  Confidence:   %g\n", m.Confidence)
	if m.NeedsReview {
		fmt.Fprintf(out, "  Needs review: yes (%s)\n", m.Direction)
	} else {
		fmt.Fprintln(out, "  Needs review: no")
	}
	if m.Recommended != nil {
		fmt.Fprintf(out, "  Suggested:    %s\n", *m.Recommended)
	}
	if len(m.ByResponderLevel) > 0 {
		fmt.Fprintln(out, "\n  Responder level  Correct  Attempts")
		for _, l := range level.All() {
			t, ok := m.ByResponderLevel[l]
			if !ok {
				continue
			}
			fmt.Fprintf(out, "  %-15s  %7d  %8d\n", l, t.Correct, t.Attempts)
		}
	}
	fmt.Fprintf(out, "\n  Computed %s\n", m.ComputedAt.Local().Format("2006-01-02 15:04"))
}

func printReport(out io.Writer, r *calibration.Report) {
	fmt.Fprintf(out, "Calibration report %d\n", r.ID)
	fmt.Fprintf(out, "  Generated: %s (responses up to %s)\n",
		r.GeneratedAt.Local().Format("2006-01-02 15:04"), r.Cutoff.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(out, "  Items: %d   Needs review: %d\n", r.TotalItems, r.NeedsReview)

	if len(r.WellCalibrated) > 0 {
		levels := make([]level.Level, 0, len(r.WellCalibrated))
		for l := range r.WellCalibrated {
			levels = append(levels, l)
		}
		sort.Slice(levels, func(i, j int) bool { return level.Compare(levels[i], levels[j]) < 0 })
		fmt.Fprintln(out, "\n  Well-calibrated by level:")
		for _, l := range levels {
			fmt.Fprintf(out, "    %-3s %g%%\n", l, r.WellCalibrated[l])
		}
	}

	if len(r.Flagged) > 0 {
		fmt.Fprintln(out, "\n  Flagged items:")
		for _, m := range r.Flagged {
			suggest := ""
			if m.Recommended != nil {
				suggest = fmt.Sprintf(", suggest %s", *m.Recommended)
			}
			fmt.Fprintf(out, "    item %d  %s %s  %s  accuracy %g%% over %d  confidence %g%s\n",
				m.ItemID, m.ItemLevel, m.Skill, m.Direction, m.Accuracy, m.Attempts, m.Confidence, suggest)
		}
	}

	fmt.Fprintln(out, "\n  Recommendations:")
	for _, rec := range r.Recommendations {
		fmt.Fprintf(out, "    - %s\n", rec)
	}
}

package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/gauge/internal/level"
	"github.com/abhisek/gauge/internal/screens/results"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect and manage placement sessions",
}

var sessionResultsCmd = &cobra.Command{
	Use:   "results <session-id>",
	Short: "Show the results of a completed session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDeps(cmd, depsOpts{})
		if err != nil {
			return err
		}
		defer d.Close()

		res, err := d.engine.Results(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		est := res.Estimation
		fmt.Fprintf(out, "Session %s (%s, owner %s)\n", res.SessionID, res.Kind, res.OwnerID)
		fmt.Fprintf(out, "  Detected level: %s\n", est.Level)
		fmt.Fprintf(out, "  Confidence:     %g%%\n", est.Confidence)
		fmt.Fprintf(out, "  Score:          %d/%d (%g%%)\n", est.Correct, est.Total, est.Accuracy)
		fmt.Fprintf(out, "  Time:           %s\n", results.Duration(res.TotalElapsed))
		fmt.Fprintf(out, "  Completed:      %s\n", res.CompletedAt.Local().Format("2006-01-02 15:04"))
		if res.SelfReported != nil && res.Difference != nil {
			fmt.Fprintf(out, "  %s\n", results.DescribeDifference(*res.SelfReported, *res.Difference))
		}
		fmt.Fprintln(out, "\n  Level  Correct  Asked  Accuracy")
		for _, l := range level.All() {
			t := est.Breakdown[l]
			fmt.Fprintf(out, "  %-5s  %7d  %5d  %7g%%\n", l, t.Correct, t.Total, t.Accuracy())
		}
		return nil
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session and its responses",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDeps(cmd, depsOpts{})
		if err != nil {
			return err
		}
		defer d.Close()

		s, err := d.store.GetSession(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		resp, err := d.engine.Responses(cmd.Context(), s.ID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Session %s (%s, %s, owner %s)\n", s.ID, s.Kind, s.Status, s.OwnerID)
		fmt.Fprintf(out, "  Started: %s   Answered: %d   Correct: %d   Level now: %s\n",
			s.StartedAt.Local().Format("2006-01-02 15:04"), s.QuestionsAnswered, s.CorrectAnswers, s.CurrentLevel)
		if len(resp) == 0 {
			return nil
		}
		fmt.Fprintf(out, "\n  %-3s  %-6s  %-5s  %-10s  %-7s  %5s  %s\n", "#", "Item", "Asked", "Skill", "Correct", "Secs", "Answer")
		fmt.Fprintln(out, "  "+strings.Repeat("─", 70))
		for _, r := range resp {
			ok := "✓"
			if !r.Correct {
				ok = "✗"
			}
			fmt.Fprintf(out, "  %-3d  %-6d  %-5s  %-10s  %-7s  %5d  %s\n",
				r.Sequence, r.ItemID, r.AskLevel, r.Skill, ok, r.ElapsedSeconds, truncate(r.Answer, 30))
		}
		return nil
	},
}

var sessionHistoryCmd = &cobra.Command{
	Use:   "history <owner-id>",
	Short: "List an owner's sessions, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		d, err := openDeps(cmd, depsOpts{})
		if err != nil {
			return err
		}
		defer d.Close()

		sessions, err := d.engine.History(cmd.Context(), args[0], limit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(sessions) == 0 {
			fmt.Fprintln(out, "No sessions found.")
			return nil
		}
		fmt.Fprintf(out, "%-36s  %-16s  %-16s  %-10s  %8s  %s\n", "ID", "Started", "Kind", "Status", "Answered", "Level")
		fmt.Fprintln(out, strings.Repeat("─", 105))
		for _, s := range sessions {
			lvl := "-"
			if s.Result != nil {
				lvl = string(s.Result.Level)
			}
			fmt.Fprintf(out, "%-36s  %-16s  %-16s  %-10s  %8d  %s\n",
				s.ID, s.StartedAt.Local().Format("2006-01-02 15:04"), s.Kind, s.Status, s.QuestionsAnswered, lvl)
		}
		return nil
	},
}

var sessionCancelCmd = &cobra.Command{
	Use:   "cancel <session-id>",
	Short: "Cancel an active session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDeps(cmd, depsOpts{})
		if err != nil {
			return err
		}
		defer d.Close()

		if err := d.engine.Cancel(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Session %s cancelled.\n", args[0])
		return nil
	},
}

func init() {
	sessionResultsCmd.Flags().Bool("json", false, "Print results as JSON")
	sessionHistoryCmd.Flags().Int("limit", 20, "Maximum number of sessions")

	sessionCmd.AddCommand(sessionResultsCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionHistoryCmd)
	sessionCmd.AddCommand(sessionCancelCmd)
}

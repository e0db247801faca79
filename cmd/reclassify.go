package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/gauge/internal/level"
)

var reclassifyCmd = &cobra.Command{
	Use:   "reclassify <item-id> <level>",
	Short: "Move an item to a new level and record it in the ledger",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		lvl := level.Level(strings.ToUpper(strings.TrimSpace(args[1])))
		actor, _ := cmd.Flags().GetString("actor")
		reason, _ := cmd.Flags().GetString("reason")

		d, err := openDeps(cmd, depsOpts{})
		if err != nil {
			return err
		}
		defer d.Close()

		rec, err := d.ledger.Reclassify(cmd.Context(), id, lvl, actor, reason)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Item %d moved %s → %s (ledger #%d)\n", rec.ItemID, rec.OldLevel, rec.NewLevel, rec.Sequence)
		return nil
	},
}

var reclassHistoryCmd = &cobra.Command{
	Use:   "reclass-history <item-id>",
	Short: "Show the reclassification history of an item",
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

		// Confirms the item exists so an unknown id is not reported as empty history.
		if _, err := d.store.GetItem(cmd.Context(), id); err != nil {
			return err
		}
		recs, err := d.ledger.History(cmd.Context(), id)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(recs) == 0 {
			fmt.Fprintf(out, "Item %d has never been reclassified.\n", id)
			return nil
		}
		fmt.Fprintf(out, "%-5s  %-16s  %-9s  %-12s  %s\n", "Seq", "When", "Change", "Actor", "Reason")
		fmt.Fprintln(out, strings.Repeat("─", 70))
		for _, r := range recs {
			fmt.Fprintf(out, "%-5d  %-16s  %-9s  %-12s  %s\n",
				r.Sequence, r.At.Local().Format("2006-01-02 15:04"),
				fmt.Sprintf("%s → %s", r.OldLevel, r.NewLevel), r.Actor, r.Reason)
		}
		return nil
	},
}

func init() {
	reclassifyCmd.Flags().String("actor", "", "Who is making the change (required)")
	reclassifyCmd.Flags().String("reason", "", "Why the level changes")
}

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/gauge/internal/apperr"
	"github.com/abhisek/gauge/internal/bank"
	"github.com/abhisek/gauge/internal/level"
	"github.com/abhisek/gauge/internal/store"
)

var itemCmd = &cobra.Command{
	Use:   "item",
	Short: "Manage question bank items",
}

var itemAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add one item to the bank",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		text, _ := f.GetString("text")
		typ, _ := f.GetString("type")
		lvl, _ := f.GetString("level")
		skill, _ := f.GetString("skill")
		options, _ := f.GetStringArray("option")
		answer, _ := f.GetString("answer")
		explanation, _ := f.GetString("explanation")

		it := &bank.Item{
			Text:          text,
			Type:          bank.ItemType(typ),
			Level:         level.Level(strings.ToUpper(lvl)),
			Skill:         bank.Skill(strings.ToLower(skill)),
			Options:       options,
			CorrectAnswer: answer,
			Explanation:   explanation,
		}

		d, err := openDeps(cmd, depsOpts{})
		if err != nil {
			return err
		}
		defer d.Close()

		id, err := d.store.CreateItem(cmd.Context(), it)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created item %d (%s %s).\n", id, it.Level, it.Skill)
		return nil
	},
}

var itemListCmd = &cobra.Command{
	Use:   "list",
	Short: "List items (optionally filtered by level or skill)",
	RunE: func(cmd *cobra.Command, args []string) error {
		lvl, _ := cmd.Flags().GetString("level")
		skill, _ := cmd.Flags().GetString("skill")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.ItemFilter{Limit: limit}
		if lvl != "" {
			l, err := level.Parse(strings.ToUpper(lvl))
			if err != nil {
				return err
			}
			filter.Level = l
		}
		if skill != "" {
			s := bank.Skill(strings.ToLower(skill))
			if !s.Valid() {
				return fmt.Errorf("unknown skill %q (want one of %v)", skill, bank.Rotation())
			}
			filter.Skill = s
		}

		d, err := openDeps(cmd, depsOpts{})
		if err != nil {
			return err
		}
		defer d.Close()

		items, err := d.store.QueryItems(cmd.Context(), filter)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(items) == 0 {
			fmt.Fprintln(out, "No items found.")
			return nil
		}

		fmt.Fprintf(out, "%-6s  %-5s  %-10s  %-15s  %s\n", "ID", "Level", "Skill", "Type", "Question")
		fmt.Fprintln(out, strings.Repeat("─", 100))
		for _, it := range items {
			fmt.Fprintf(out, "%-6d  %-5s  %-10s  %-15s  %s\n",
				it.ID, it.Level, it.Skill, it.Type, truncate(it.Text, 55))
		}
		fmt.Fprintf(out, "\n%d items\n", len(items))
		return nil
	},
}

var itemShowCmd = &cobra.Command{
	Use:   "show <item-id>",
	Short: "Show one item",
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

		it, err := d.store.GetItem(cmd.Context(), id)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Item %d\n", it.ID)
		fmt.Fprintf(out, "  Level:     %s\n", it.Level)
		fmt.Fprintf(out, "  Skill:     %s\n", bank.SkillDisplayName(it.Skill))
		fmt.Fprintf(out, "  Type:      %s\n", it.Type)
		fmt.Fprintf(out, "  Question:  %s\n", it.Text)
		for i, o := range it.Options {
			mark := " "
			if o == it.CorrectAnswer {
				mark = "*"
			}
			fmt.Fprintf(out, "    %s %d) %s\n", mark, i+1, o)
		}
		if it.Explanation != "" {
			fmt.Fprintf(out, "  Explanation: %s\n", it.Explanation)
		}
		if it.ImportID != nil {
			fmt.Fprintf(out, "  Import:    %d\n", *it.ImportID)
		}
		fmt.Fprintf(out, "  Created:   %s\n", it.CreatedAt.Local().Format("2006-01-02 15:04"))
		return nil
	},
}

var itemStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show item counts per level and skill, and coverage gaps",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDeps(cmd, depsOpts{})
		if err != nil {
			return err
		}
		defer d.Close()

		minimum, _ := cmd.Flags().GetInt("min")
		if !cmd.Flags().Changed("min") {
			minimum = d.cfg.Calibration.CoverageMinimum
		}

		items, err := d.store.ListItems(cmd.Context())
		if err != nil {
			return err
		}
		cov := bank.Distribution(items, minimum)

		out := cmd.OutOrStdout()
		skills := bank.Rotation()
		fmt.Fprintf(out, "%-6s", "Level")
		for _, s := range skills {
			fmt.Fprintf(out, "  %10s", s)
		}
		fmt.Fprintf(out, "  %6s\n", "Total")
		fmt.Fprintln(out, strings.Repeat("─", 6+len(skills)*12+8))
		for _, l := range level.All() {
			fmt.Fprintf(out, "%-6s", l)
			for _, s := range skills {
				fmt.Fprintf(out, "  %10d", cov.Counts[bank.Cell{Level: l, Skill: s}])
			}
			fmt.Fprintf(out, "  %6d\n", cov.ByLevel[l])
		}
		fmt.Fprintf(out, "\n%d items\n", cov.Total)

		if len(cov.Gaps) == 0 {
			fmt.Fprintf(out, "Every level/skill cell has at least %d items.\n", minimum)
			return nil
		}
		fmt.Fprintf(out, "\nCoverage gaps (%d):\n", len(cov.Gaps))
		for _, g := range cov.Gaps {
			fmt.Fprintf(out, "  - %s\n", g)
		}
		return nil
	},
}

func init() {
	f := itemAddCmd.Flags()
	f.String("text", "", "Question text")
	f.String("type", string(bank.TypeMultipleChoice), "Question type (multiple_choice, fill_blank, ordering, audio_response)")
	f.String("level", "", "Difficulty level (A1-C2)")
	f.String("skill", "", "Skill focus (grammar, vocabulary, reading, listening)")
	f.StringArray("option", nil, "Answer option; repeat 2-6 times in display order")
	f.String("answer", "", "Correct answer; must equal one of the options")
	f.String("explanation", "", "Optional explanation shown after answering")

	itemListCmd.Flags().String("level", "", "Filter by level (A1-C2)")
	itemListCmd.Flags().String("skill", "", "Filter by skill")
	itemListCmd.Flags().Int("limit", 0, "Maximum number of items (0 for all)")

	itemStatsCmd.Flags().Int("min", 5, "Minimum items per level/skill cell (defaults to calibration.coverage_minimum)")

	itemCmd.AddCommand(itemAddCmd)
	itemCmd.AddCommand(itemListCmd)
	itemCmd.AddCommand(itemShowCmd)
	itemCmd.AddCommand(itemStatsCmd)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("cli", "item_id", "invalid item id %q", s)
	}
	return id, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

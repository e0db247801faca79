package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/gauge/internal/bank"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Bulk-load items from a .csv, .xlsx or .json file",
	Long: "Every row is validated on its own: valid rows are stored, invalid rows\n" +
		"are reported with their row number and do not stop the import.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		format, err := bank.DetectFormat(path)
		if err != nil {
			return err
		}
		by, _ := cmd.Flags().GetString("by")

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open import file: %w", err)
		}
		defer f.Close()

		d, err := openDeps(cmd, depsOpts{})
		if err != nil {
			return err
		}
		defer d.Close()

		res, err := d.importer.Import(cmd.Context(), filepath.Base(path), by, format, f)
		if err != nil {
			return err
		}
		printImport(cmd.OutOrStdout(), res)
		return nil
	},
}

var importsCmd = &cobra.Command{
	Use:   "imports [import-id]",
	Short: "List import runs, or show one with its row errors",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDeps(cmd, depsOpts{})
		if err != nil {
			return err
		}
		defer d.Close()
		out := cmd.OutOrStdout()

		if len(args) == 1 {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			res, err := d.store.GetImport(cmd.Context(), id)
			if err != nil {
				return err
			}
			printImport(out, res)
			return nil
		}

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := d.store.ListImports(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "No imports found.")
			return nil
		}
		fmt.Fprintf(out, "%-5s  %-16s  %-24s  %-10s  %6s  %6s  %6s  %s\n",
			"ID", "Started", "Source", "By", "Rows", "OK", "Failed", "Status")
		fmt.Fprintln(out, strings.Repeat("─", 100))
		for _, r := range runs {
			fmt.Fprintf(out, "%-5d  %-16s  %-24s  %-10s  %6d  %6d  %6d  %s\n",
				r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), truncate(r.Source, 24),
				truncate(r.UploadedBy, 10), r.TotalRows, r.Successful, r.Failed, r.Status)
		}
		return nil
	},
}

func init() {
	importCmd.Flags().String("by", "admin", "Who is uploading the file")
	importsCmd.Flags().Int("limit", 20, "Maximum number of runs to list")
}

func printImport(out io.Writer, res *bank.ImportResult) {
	fmt.Fprintf(out, "Import %d from %s (%s)\n", res.ID, res.Source, res.Status)
	fmt.Fprintf(out, "  Rows: %d   Imported: %d   Failed: %d\n", res.TotalRows, res.Successful, res.Failed)
	if len(res.ItemIDs) > 0 {
		ids := make([]string, len(res.ItemIDs))
		for i, id := range res.ItemIDs {
			ids[i] = fmt.Sprint(id)
		}
		fmt.Fprintf(out, "  Item IDs: %s\n", strings.Join(ids, ", "))
	}
	for _, re := range res.Errors {
		for _, msg := range re.Errors {
			fmt.Fprintf(out, "  ! %s\n", msg)
		}
	}
}

package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/gauge/internal/apperr"
)

const sampleCSV = `question_text,question_type,difficulty_level,skill_focus,option_1,option_2,option_3,correct_answer,explanation
She ___ to school.,multiple_choice,A2,grammar,go,goes,going,goes,Third person takes -s.
A word for very big?,multiple_choice,B1,vocabulary,huge,tiny,,huge,
,multiple_choice,B1,grammar,a,b,,a,
`

// resetFlags restores every flag to its default. Commands are package
// globals, so values would otherwise leak between executions.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

type cli struct {
	t  *testing.T
	db string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("GAUGE_CONFIG", "")
	t.Setenv("GAUGE_CACHE_URL", "")
	t.Setenv("GAUGE_LOG_FILE", filepath.Join(dir, "gauge.log"))
	return &cli{t: t, db: filepath.Join(dir, "gauge.db")}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append(args, "--db", c.db))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (c *cli) importSample() {
	c.t.Helper()
	path := filepath.Join(c.t.TempDir(), "items.csv")
	require.NoError(c.t, os.WriteFile(path, []byte(sampleCSV), 0o644))
	out, err := c.run("import", path, "--by", "tester")
	require.NoError(c.t, err)
	assert.Contains(c.t, out, "Rows: 3   Imported: 2   Failed: 1")
	assert.Contains(c.t, out, "Row 4: question_text is empty")
}

func TestImportAndList(t *testing.T) {
	c := newCLI(t)
	c.importSample()

	out, err := c.run("item", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "She ___ to school.")
	assert.Contains(t, out, "2 items")

	out, err = c.run("item", "list", "--level", "B1")
	require.NoError(t, err)
	assert.Contains(t, out, "1 items")

	out, err = c.run("imports")
	require.NoError(t, err)
	assert.Contains(t, out, "items.csv")
	assert.Contains(t, out, "tester")
}

func TestItemAdd(t *testing.T) {
	c := newCLI(t)
	out, err := c.run("item", "add",
		"--text", "I ___ here since 2010.",
		"--type", "fill_blank",
		"--level", "B1",
		"--skill", "grammar",
		"--option", "have lived", "--option", "lived",
		"--answer", "have lived")
	require.NoError(t, err)
	assert.Contains(t, out, "Created item 1 (B1 grammar)")

	out, err = c.run("item", "show", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "have lived")

	_, err = c.run("item", "show", "99")
	assert.Equal(t, 3, ExitCode(err))
}

func TestReclassifyAndHistory(t *testing.T) {
	c := newCLI(t)
	c.importSample()

	out, err := c.run("reclassify", "1", "b1", "--actor", "expert", "--reason", "too easy for A2")
	require.NoError(t, err)
	assert.Contains(t, out, "Item 1 moved A2 → B1 (ledger #1)")

	_, err = c.run("reclassify", "1", "B1", "--actor", "expert")
	assert.Equal(t, 4, ExitCode(err), "same level is a conflict")

	_, err = c.run("reclassify", "1", "B2")
	assert.Equal(t, 2, ExitCode(err), "actor is required")

	_, err = c.run("reclassify", "1", "D9", "--actor", "expert")
	assert.Equal(t, 2, ExitCode(err))

	out, err = c.run("reclass-history", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "A2 → B1")
	assert.Contains(t, out, "too easy for A2")

	out, err = c.run("reclass-history", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "never been reclassified")

	_, err = c.run("reclass-history", "42")
	assert.Equal(t, 3, ExitCode(err))
}

func TestCalibrateReport(t *testing.T) {
	c := newCLI(t)
	c.importSample()

	out, err := c.run("calibrate", "report")
	require.NoError(t, err)
	assert.Contains(t, out, "Calibration report 1")
	assert.Contains(t, out, "Items: 2   Needs review: 0")

	out, err = c.run("calibrate", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "Needs review")

	out, err = c.run("calibrate", "review")
	require.NoError(t, err)
	assert.Contains(t, out, "No items need review.")

	out, err = c.run("calibrate", "item", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Attempts:     0")

	_, err = c.run("calibrate", "report", "7")
	assert.Equal(t, 3, ExitCode(err))
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{io.EOF, 1},
		{apperr.Validation("op", "f", "bad"), 2},
		{apperr.NotFound("op", "missing"), 3},
		{apperr.Conflict("op", "dup"), 4},
		{apperr.State("op", "done"), 4},
		{apperr.Exhausted("op", "empty"), 5},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ExitCode(tc.err), "%v", tc.err)
	}
}

func TestVersion(t *testing.T) {
	c := newCLI(t)
	out, err := c.run("version")
	require.NoError(t, err)
	assert.Contains(t, out, "gauge ")
}

package cmd

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// version is set via -ldflags at build time.
var version = ""

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and build details",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		v, rev, goVer := buildVersion()
		fmt.Fprintln(out, "gauge", v)
		if rev != "" {
			fmt.Fprintln(out, "  commit:", rev)
		}
		if goVer != "" {
			fmt.Fprintln(out, "  go:    ", goVer)
		}
	},
}

// buildVersion prefers the -ldflags version, then the module version
// recorded by `go install`.
func buildVersion() (v, revision, goVersion string) {
	v = version
	info, ok := debug.ReadBuildInfo()
	if !ok {
		if v == "" {
			v = "(devel)"
		}
		return v, "", ""
	}
	if v == "" {
		v = info.Main.Version
	}
	if v == "" {
		v = "(devel)"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			revision = s.Value
			if len(revision) > 12 {
				revision = revision[:12]
			}
		}
	}
	return v, revision, info.GoVersion
}

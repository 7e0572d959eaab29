package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X seasonstay/cmd/server/cmd.Version=..." at release
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

type buildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// currentBuild fills commit and date from the binary's VCS stamp when the
// release flags were not set, e.g. for a plain go build.
func currentBuild() buildInfo {
	b := buildInfo{Version: Version, GitCommit: GitCommit, BuildDate: BuildDate, GoVersion: runtime.Version()}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return b
	}
	for _, s := range info.Settings {
		switch {
		case s.Key == "vcs.revision" && b.GitCommit == "unknown":
			b.GitCommit = s.Value
		case s.Key == "vcs.time" && b.BuildDate == "unknown":
			b.BuildDate = s.Value
		}
	}
	return b
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the SeasonStay API build",
	RunE: func(cmd *cobra.Command, args []string) error {
		b := currentBuild()
		out := cmd.OutOrStdout()

		if short, _ := cmd.Flags().GetBool("short"); short {
			fmt.Fprintln(out, b.Version)
			return nil
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return json.NewEncoder(out).Encode(b)
		}
		fmt.Fprintf(out, "SeasonStay API %s\n", b.Version)
		fmt.Fprintf(out, "  commit  %s\n", b.GitCommit)
		fmt.Fprintf(out, "  built   %s\n", b.BuildDate)
		fmt.Fprintf(out, "  go      %s\n", b.GoVersion)
		return nil
	},
}

func init() {
	versionCmd.Flags().Bool("short", false, "print the version number only")
	versionCmd.Flags().Bool("json", false, "print the build as JSON")
}

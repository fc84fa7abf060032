package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corvidae/pixback/internal/common/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := &version.Info{Version: Version, BuildDate: BuildDate, GitCommit: GitCommit}
		fmt.Println(info.Full())
		return nil
	},
}

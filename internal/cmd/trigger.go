package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/corvidae/pixback/internal/scheduler"
)

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Force an immediate round, ending any current wait",
	Long: `Trigger drops the force-trigger sentinel file (data/force_run.flag).
A running daemon polls for it at least once a second and ends its current
wait as soon as it appears (§4.9).`,
	RunE: runTrigger,
}

func runTrigger(cmd *cobra.Command, args []string) error {
	dir := outputDir()
	sentinel := scheduler.SentinelPath(dir)
	if err := os.MkdirAll(filepath.Dir(sentinel), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(sentinel, nil, 0o644); err != nil {
		return err
	}
	fmt.Println("force-trigger sentinel dropped")
	return nil
}

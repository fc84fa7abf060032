package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/corvidae/pixback/internal/common/cliutil"
	"github.com/corvidae/pixback/internal/scheduler"
)

var runCmd = &cobra.Command{
	Use:   "run [count]",
	Short: "Run one or more rounds synchronously, then exit",
	Long: `Run executes count rounds back-to-back with no wait in between and
exits, instead of entering the daemon's normal wait-and-repeat loop. Useful
for manual invocation (cron, a one-off backfill) or testing a config
change. count defaults to 1.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	count := 1
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("count must be a positive integer, got %q", args[0])
		}
		count = n
	}

	dir := outputDir()
	log := cliutil.NewLogger("pixbackd")
	sched := scheduler.New(dir, log)

	if err := sched.RunRounds(context.Background(), count); err != nil {
		return err
	}
	fmt.Printf("ran %d round(s)\n", count)
	return nil
}

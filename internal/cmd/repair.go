package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corvidae/pixback/internal/queue"
	"github.com/corvidae/pixback/internal/store"
)

var repairApply bool

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Check (and optionally fix) metadata store and task queue consistency",
	Long: `Repair runs SQLite's PRAGMA integrity_check against the metadata
store and looks for task queue entries marked "done" for an illust the
store has no downloaded record of (a manually-edited queue or store file
can produce this; the scheduler's own crash-recovery path cannot). With
--apply, orphaned queue entries are dropped; without it, repair only
reports what it found.`,
	RunE: runRepair,
}

func init() {
	repairCmd.Flags().BoolVar(&repairApply, "apply", false, "Apply fixes instead of only reporting them")
	repairCmd.Flags().Bool("check", false, "Report findings without applying fixes (the default; kept for explicit invocation)")
}

func runRepair(cmd *cobra.Command, args []string) error {
	dir := outputDir()

	st, err := store.Open(store.Path(dir))
	if err != nil {
		return fmt.Errorf("open metadata store: %w", err)
	}
	defer st.Close()

	var integrity string
	row := st.DB().QueryRow("PRAGMA integrity_check")
	if err := row.Scan(&integrity); err != nil {
		return fmt.Errorf("run integrity_check: %w", err)
	}
	fmt.Printf("metadata store integrity_check: %s\n", integrity)

	q, err := queue.Open(queue.Path(dir))
	if err != nil {
		return fmt.Errorf("open task queue: %w", err)
	}

	var orphans []int64
	for _, illustID := range q.DoneIllustIDs() {
		rec, err := st.GetIllust(illustID)
		if err != nil {
			return fmt.Errorf("look up illust %d: %w", illustID, err)
		}
		if rec == nil || !rec.Downloaded {
			orphans = append(orphans, illustID)
		}
	}

	if len(orphans) == 0 {
		fmt.Println("task queue: no orphaned entries found")
		return nil
	}

	if !repairApply {
		fmt.Printf("found %d orphaned queue entries (run with --apply to fix): %v\n", len(orphans), orphans)
		return nil
	}

	removed := 0
	for _, illustID := range orphans {
		ok, err := q.Remove(illustID)
		if err != nil {
			return fmt.Errorf("remove orphaned entry %d: %w", illustID, err)
		}
		if ok {
			removed++
		}
	}
	fmt.Printf("removed %d orphaned queue entries\n", removed)
	return nil
}

package cmd

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/corvidae/pixback/internal/pixivapi"
	"github.com/corvidae/pixback/internal/queue"
	"github.com/corvidae/pixback/internal/store"
)

func doneQueueItem(t *testing.T, dir string, illustID int64) {
	t.Helper()
	q, err := queue.Open(queue.Path(dir))
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	q.Enqueue(pixivapi.Illust{ID: illustID}, queue.ProvenanceBookmark)
	if q.ClaimNext(time.Now().UTC()) == nil {
		t.Fatalf("expected to claim illust %d", illustID)
	}
	if err := q.Complete(illustID, queue.Outcome{Success: true}); err != nil {
		t.Fatalf("complete illust %d: %v", illustID, err)
	}
}

func TestRunRepair_ReportsOrphanWithoutApply(t *testing.T) {
	dir := t.TempDir()
	resetRepairViper(t, dir)

	st, err := store.Open(store.Path(dir))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	// illust 1 is genuinely downloaded; illust 2 has a "done" queue entry
	// but no store record, the orphan condition repair must detect.
	if err := st.UpsertIllust(&store.IllustRecord{IllustID: 1, Downloaded: true}); err != nil {
		t.Fatalf("upsert illust: %v", err)
	}
	st.Close()

	doneQueueItem(t, dir, 1)
	doneQueueItem(t, dir, 2)

	repairApply = false
	if err := runRepair(repairCmd, nil); err != nil {
		t.Fatalf("runRepair: %v", err)
	}

	q, err := queue.Open(queue.Path(dir))
	if err != nil {
		t.Fatalf("reopen queue: %v", err)
	}
	ids := q.DoneIllustIDs()
	if len(ids) != 2 {
		t.Fatalf("expected both entries to survive a non-apply run, got %v", ids)
	}
}

func TestRunRepair_ApplyRemovesOrphanedEntry(t *testing.T) {
	dir := t.TempDir()
	resetRepairViper(t, dir)

	st, err := store.Open(store.Path(dir))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.UpsertIllust(&store.IllustRecord{IllustID: 1, Downloaded: true}); err != nil {
		t.Fatalf("upsert illust: %v", err)
	}
	st.Close()

	doneQueueItem(t, dir, 1)
	doneQueueItem(t, dir, 2)

	repairApply = true
	defer func() { repairApply = false }()
	if err := runRepair(repairCmd, nil); err != nil {
		t.Fatalf("runRepair: %v", err)
	}

	q, err := queue.Open(queue.Path(dir))
	if err != nil {
		t.Fatalf("reopen queue: %v", err)
	}
	ids := q.DoneIllustIDs()
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("expected only illust 1 to survive --apply, got %v", ids)
	}
}

func resetRepairViper(t *testing.T, dir string) {
	t.Helper()
	viper.Reset()
	viper.Set("output_dir", dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir output dir: %v", err)
	}
	t.Cleanup(viper.Reset)
}

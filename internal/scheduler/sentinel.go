package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// SentinelFileName is the force-trigger presence file (§4.9): its
// creation ends any wait immediately and it is consumed (deleted) before
// the next round begins.
const SentinelFileName = "force_run.flag"

// pollInterval is the mandated correctness backstop for force-trigger
// detection (§4.9, §5): every wait is cancellable within 1 second
// regardless of whether fsnotify can attach to the filesystem.
const pollInterval = 1 * time.Second

// SentinelPath returns the sentinel file's path under output_dir/data/.
func SentinelPath(outputDir string) string {
	return filepath.Join(outputDir, "data", SentinelFileName)
}

// consumeSentinel reports whether the sentinel was present, deleting it
// if so. Called both at startup (so a sentinel left over from a previous
// run doesn't leak into a later wait's decision without being
// re-evaluated) and at the top of every wait-loop tick.
func consumeSentinel(path string) bool {
	return os.Remove(path) == nil
}

// waitResult describes why a wait ended.
type waitResult int

const (
	waitElapsed waitResult = iota
	waitTriggered
	waitStopped
	waitCanceled
)

// waitInterval blocks for dur or until the sentinel appears, the
// scheduler is asked to stop, or ctx is canceled — whichever comes
// first. fsnotify is used to shorten the poll latency when it can attach
// to the data directory; the 1-second poll remains the correctness
// backstop regardless.
func (s *Scheduler) waitInterval(ctx context.Context, dur time.Duration) waitResult {
	deadline := time.Now().Add(dur)

	dataDir := filepath.Join(s.outputDir, "data")
	_ = os.MkdirAll(dataDir, 0o755)

	var events <-chan fsnotify.Event
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		defer watcher.Close()
		if addErr := watcher.Add(dataDir); addErr == nil {
			events = watcher.Events
		}
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if consumeSentinel(s.sentinelPath) {
			return waitTriggered
		}
		if s.stopRequested() {
			return waitStopped
		}
		if !time.Now().Before(deadline) {
			return waitElapsed
		}

		select {
		case <-ctx.Done():
			return waitCanceled
		case <-ticker.C:
		case <-events:
			// A filesystem event only wakes the loop early; the checks
			// above still decide what actually happened.
		}
	}
}

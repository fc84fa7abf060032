package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/corvidae/pixback/internal/classify"
	"github.com/corvidae/pixback/internal/common/errors"
	"github.com/corvidae/pixback/internal/common/paths"
	"github.com/corvidae/pixback/internal/pixivapi"
)

// FileName is the well-known single-file queue store under the output
// directory's data/ subdirectory (§6.1).
const FileName = "task_queue.json"

// Queue is the durable, single-writer task queue. Every mutating call
// persists the full item set atomically (temp+rename) before returning,
// so a crash between two calls never loses a state transition
// (invariant 6).
type Queue struct {
	mu    sync.Mutex
	path  string
	items []*QueueItem
	index map[int64]int // illust_id -> position in items, kept in sync with items
}

// Open loads an existing queue file, or starts an empty queue if none
// exists yet (first run).
func Open(path string) (*Queue, error) {
	q := &Queue{path: path, index: make(map[int64]int)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return q, nil
		}
		return nil, errors.ErrQueueCorrupt.WithCause(err)
	}

	var items []*QueueItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, errors.ErrQueueCorrupt.WithCause(err)
	}
	q.items = items
	q.reindex()
	return q, nil
}

func (q *Queue) reindex() {
	q.index = make(map[int64]int, len(q.items))
	for i, it := range q.items {
		q.index[it.IllustID] = i
	}
}

func (q *Queue) persistLocked() error {
	data, err := json.MarshalIndent(q.items, "", "  ")
	if err != nil {
		return errors.ErrInternal.WithCause(err)
	}
	if err := paths.AtomicWriteFile(q.path, data, 0o644); err != nil {
		return errors.ErrFilesystem.WithCause(err)
	}
	return nil
}

// Enqueue adds a new pending item, or is a no-op if illustID is already
// present (queued, running, or already terminal) — the scanner is
// responsible for not re-enqueueing downloaded works, but a defensive
// duplicate check keeps the queue file itself consistent.
func (q *Queue) Enqueue(illust pixivapi.Illust, provenance Provenance) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.index[illust.ID]; exists {
		return
	}

	now := time.Now().UTC()
	item := &QueueItem{
		IllustID:   illust.ID,
		Status:     StatusPending,
		Provenance: provenance,
		EnqueuedAt: now,
		UpdatedAt:  now,
		Illust:     illust,
	}
	q.items = append(q.items, item)
	q.index[illust.ID] = len(q.items) - 1
}

// ClaimNext returns the next eligible item and marks it running, or nil if
// nothing is claimable right now. Eligibility: status pending, or status
// failed with next_retry_at <= now. Ordering: bookmark-provenance before
// following-provenance at equal priority, FIFO within a priority class
// (§4.4 "Ordering guarantees").
func (q *Queue) ClaimNext(now time.Time) *QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	best := -1
	for i, it := range q.items {
		if !claimable(it, now) {
			continue
		}
		if best == -1 || higherPriority(it, q.items[best]) {
			best = i
		}
	}
	if best == -1 {
		return nil
	}

	q.items[best].Status = StatusRunning
	q.items[best].UpdatedAt = now
	_ = q.persistLocked()

	cp := *q.items[best]
	return &cp
}

func claimable(it *QueueItem, now time.Time) bool {
	switch it.Status {
	case StatusPending:
		return true
	case StatusFailed:
		return !it.NextRetryAt.After(now)
	default:
		return false
	}
}

// higherPriority reports whether candidate should be claimed before
// current: bookmark provenance wins ties, then earlier enqueued_at (FIFO).
func higherPriority(candidate, current *QueueItem) bool {
	if candidate.Provenance != current.Provenance {
		return candidate.Provenance == ProvenanceBookmark
	}
	return candidate.EnqueuedAt.Before(current.EnqueuedAt)
}

// Complete records the outcome of a claimed item: success transitions it
// to done; failure consults the classifier for a category, schedules
// next_retry_at via the category's backoff, and flips to
// permanent_failed once the retry budget is exceeded (§4.3).
func (q *Queue) Complete(illustID int64, outcome Outcome) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx, ok := q.index[illustID]
	if !ok {
		return errors.ErrInternal.WithMessagef("complete: unknown illust_id %d", illustID)
	}
	item := q.items[idx]
	now := time.Now().UTC()
	item.UpdatedAt = now

	if outcome.Success {
		item.Status = StatusDone
		item.LastError = nil
		return q.persistLocked()
	}

	category := classify.Classify(outcome.Err)
	item.RetryCount++
	item.FailedRounds++
	item.LastError = &LastError{Category: category, Message: outcome.Err.Error()}

	if classify.ExceedsRetryBudget(item.RetryCount, category) {
		item.Status = StatusPermanentFailed
		return q.persistLocked()
	}

	item.Status = StatusFailed
	item.NextRetryAt = now.Add(classify.Backoff(item.RetryCount, category))
	return q.persistLocked()
}

// Pending returns the count of items eligible to run now or in the
// future (pending or failed-awaiting-retry), used by admission control
// (§4.4: "the round's enqueue count plus the queue's pending count").
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	count := 0
	for _, it := range q.items {
		if it.Status == StatusPending || it.Status == StatusFailed {
			count++
		}
	}
	return count
}

// Counts returns a snapshot of item counts by status, for the status
// publisher's queue-summary counters (§4.7).
func (q *Queue) Counts() map[Status]int {
	q.mu.Lock()
	defer q.mu.Unlock()

	counts := make(map[Status]int)
	for _, it := range q.items {
		counts[it.Status]++
	}
	return counts
}

// DoneIllustIDs returns the illust IDs of every item marked done, for the
// `repair` CLI subcommand's cross-check against the metadata store.
func (q *Queue) DoneIllustIDs() []int64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	var ids []int64
	for _, it := range q.items {
		if it.Status == StatusDone {
			ids = append(ids, it.IllustID)
		}
	}
	return ids
}

// Remove drops illustID from the queue entirely and persists, reporting
// whether it was present. Used by `repair --apply` to drop queue entries
// that claim to be done for an illust the metadata store has no record
// of.
func (q *Queue) Remove(illustID int64) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx, ok := q.index[illustID]
	if !ok {
		return false, nil
	}

	q.items = append(q.items[:idx], q.items[idx+1:]...)
	q.reindex()
	return true, q.persistLocked()
}

// Contains reports whether illustID is already tracked by the queue in any
// status, used to avoid redundant enqueue work during scanning.
func (q *Queue) Contains(illustID int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.index[illustID]
	return ok
}

// Path returns the queue's on-disk path, under outputDir/data/.
func Path(outputDir string) string {
	return filepath.Join(outputDir, "data", FileName)
}

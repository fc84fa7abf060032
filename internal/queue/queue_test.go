package queue

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/corvidae/pixback/internal/pixivapi"
)

func TestEnqueue_SkipsDuplicate(t *testing.T) {
	q, err := Open(filepath.Join(t.TempDir(), "task_queue.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	q.Enqueue(pixivapi.Illust{ID: 1}, ProvenanceBookmark)
	q.Enqueue(pixivapi.Illust{ID: 1}, ProvenanceFollowing)

	if got := q.Pending(); got != 1 {
		t.Errorf("expected 1 pending item after duplicate enqueue, got %d", got)
	}
}

func TestClaimNext_BookmarkBeforeFollowing(t *testing.T) {
	q, err := Open(filepath.Join(t.TempDir(), "task_queue.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	q.Enqueue(pixivapi.Illust{ID: 1}, ProvenanceFollowing)
	q.Enqueue(pixivapi.Illust{ID: 2}, ProvenanceBookmark)

	item := q.ClaimNext(time.Now().UTC())
	if item == nil {
		t.Fatal("expected a claimable item")
	}
	if item.IllustID != 2 {
		t.Errorf("expected bookmark-provenance item (id=2) to be claimed first, got %d", item.IllustID)
	}
}

func TestClaimNext_FIFOWithinPriority(t *testing.T) {
	q, err := Open(filepath.Join(t.TempDir(), "task_queue.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	q.Enqueue(pixivapi.Illust{ID: 1}, ProvenanceBookmark)
	time.Sleep(time.Millisecond)
	q.Enqueue(pixivapi.Illust{ID: 2}, ProvenanceBookmark)

	item := q.ClaimNext(time.Now().UTC())
	if item.IllustID != 1 {
		t.Errorf("expected earlier-enqueued item (id=1) to be claimed first, got %d", item.IllustID)
	}
}

func TestComplete_SuccessMarksDone(t *testing.T) {
	q, err := Open(filepath.Join(t.TempDir(), "task_queue.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	q.Enqueue(pixivapi.Illust{ID: 1}, ProvenanceBookmark)
	q.ClaimNext(time.Now().UTC())

	if err := q.Complete(1, Outcome{Success: true}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	counts := q.Counts()
	if counts[StatusDone] != 1 {
		t.Errorf("expected 1 done item, got %d", counts[StatusDone])
	}
}

func TestComplete_FailureSchedulesRetry(t *testing.T) {
	q, err := Open(filepath.Join(t.TempDir(), "task_queue.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	q.Enqueue(pixivapi.Illust{ID: 1}, ProvenanceBookmark)
	q.ClaimNext(time.Now().UTC())

	before := time.Now().UTC()
	networkErr := &pixivapi.StatusError{StatusCode: 502}
	if err := q.Complete(1, Outcome{Success: false, Err: networkErr}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	counts := q.Counts()
	if counts[StatusFailed] != 1 {
		t.Fatalf("expected 1 failed item, got %v", counts)
	}

	item := q.items[q.index[1]]
	if item.NextRetryAt.Before(before) {
		t.Error("expected next_retry_at to be in the future")
	}
	if item.LastError == nil {
		t.Fatal("expected last_error to be populated")
	}
}

func TestComplete_InvalidGoesPermanentImmediately(t *testing.T) {
	q, err := Open(filepath.Join(t.TempDir(), "task_queue.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	q.Enqueue(pixivapi.Illust{ID: 1}, ProvenanceBookmark)
	q.ClaimNext(time.Now().UTC())

	notFound := &pixivapi.StatusError{StatusCode: 404}
	if err := q.Complete(1, Outcome{Success: false, Err: notFound}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	counts := q.Counts()
	if counts[StatusPermanentFailed] != 1 {
		t.Errorf("expected invalid category to go permanent_failed immediately, got %v", counts)
	}
}

func TestComplete_UnknownIllustID(t *testing.T) {
	q, err := Open(filepath.Join(t.TempDir(), "task_queue.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := q.Complete(999, Outcome{Success: true}); err == nil {
		t.Fatal("expected an error completing an illust_id the queue never saw")
	}
}

func TestOpen_RoundTripsPersistedState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "task_queue.json")
	q, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	q.Enqueue(pixivapi.Illust{ID: 7, Title: "persisted"}, ProvenanceBookmark)
	q.ClaimNext(time.Now().UTC())
	if err := q.Complete(7, Outcome{Success: true}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	q2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen Open: %v", err)
	}
	counts := q2.Counts()
	if counts[StatusDone] != 1 {
		t.Errorf("expected reopened queue to show 1 done item, got %v", counts)
	}
}

func TestPacer_HighSpeedBurstThenPaced(t *testing.T) {
	p := NewPacer(2, 10*time.Millisecond, 0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 2; i++ {
		if err := p.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 5*time.Millisecond {
		t.Errorf("expected high-speed claims to proceed immediately, took %v", elapsed)
	}

	start = time.Now()
	if err := p.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Errorf("expected third claim to be paced, took %v", elapsed)
	}
}

func TestPacer_ContextCancellation(t *testing.T) {
	p := NewPacer(0, time.Hour, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

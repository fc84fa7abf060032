// Package scheduler implements the Scheduler/Daemon (C9):
// the state machine that sequences scan rounds, drains the task queue
// under pacing and admission control, and selects the next wait interval
// from whatever went wrong (or didn't) in the round just finished.
//
// Modeled on a PID-locked daemon run loop (PID lock, background
// sweepers, cancellable waits) merged with a worker-pool's
// context-cancellable start/stop lifecycle.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/corvidae/pixback/internal/audit"
	"github.com/corvidae/pixback/internal/auth"
	"github.com/corvidae/pixback/internal/classify"
	apperrors "github.com/corvidae/pixback/internal/common/errors"
	"github.com/corvidae/pixback/internal/common/logs"
	"github.com/corvidae/pixback/internal/config"
	"github.com/corvidae/pixback/internal/downloader"
	"github.com/corvidae/pixback/internal/pixivapi"
	"github.com/corvidae/pixback/internal/queue"
	"github.com/corvidae/pixback/internal/scanner"
	"github.com/corvidae/pixback/internal/statuspub"
	"github.com/corvidae/pixback/internal/storage"
	"github.com/corvidae/pixback/internal/store"
)

// roundHardCap is the round-level wall-clock hard cap (§4.9: "if a
// single round exceeds 6 hours wall-clock, the scheduler forces a
// cooldown").
const roundHardCap = 6 * time.Hour

// consecutiveNetworkCap forces a round-fatal cooldown once this many
// items in a row fail with a network-classified error (§4.6:
// "if >= X consecutive items fail, force cooldown").
const consecutiveNetworkCap = 5

// Scheduler is the C9 component. One Scheduler owns one output directory
// for its entire process lifetime; config is reloaded at the start of
// every round, but the PID lock, sentinel path, and status publisher are
// fixed at construction.
type Scheduler struct {
	outputDir    string
	pidPath      string
	sentinelPath string
	log          *logs.Logger
	status       *statuspub.Publisher

	stopCh     chan struct{}
	stopOnce   sync.Once
	stopCtx    context.Context
	stopCancel context.CancelFunc

	store *store.Store
	q     *queue.Queue
	audit *audit.Log
}

// New builds a Scheduler rooted at outputDir.
func New(outputDir string, log *logs.Logger) *Scheduler {
	stopCtx, stopCancel := context.WithCancel(context.Background())
	return &Scheduler{
		outputDir:    outputDir,
		pidPath:      pidPath(outputDir),
		sentinelPath: SentinelPath(outputDir),
		log:          log,
		status:       statuspub.New(outputDir),
		stopCh:       make(chan struct{}),
		stopCtx:      stopCtx,
		stopCancel:   stopCancel,
	}
}

// Stop asks the run loop to end gracefully: any artifact already
// in-flight is permitted to finish, but stopCtx is canceled immediately
// so every subsequent wait — a pacing sleep, the gap before the next
// artifact, the gap before the next queue item — unblocks within
// whatever poll granularity it selects on, not whenever the current
// queue item happens to finish (§4.9, §5, §8 scenario 6).
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.stopCancel()
	})
}

func (s *Scheduler) stopRequested() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

// Status exposes the status publisher, e.g. for the `status` CLI
// subcommand when running in-process.
func (s *Scheduler) Status() *statuspub.Publisher {
	return s.status
}

// Run blocks until the scheduler is stopped, ctx is canceled, or a
// startup-fatal error occurs (bad config, database corruption): the only
// conditions §7 allows to exit the process non-zero. Everything
// else — per-item failures, rate limits, disk pressure — is recorded and
// folded into the next wait interval instead of terminating the process.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := acquirePIDLock(s.pidPath); err != nil {
		return err
	}
	defer releasePIDLock(s.pidPath)

	// A sentinel left over from a previous run is never acted on blindly;
	// it is cleared here so the first round below decides to scan (or
	// not) entirely on its own merits (§4.9: "never acts on a stale
	// sentinel discovered at startup without re-evaluating it first").
	consumeSentinel(s.sentinelPath)

	defer func() {
		_ = s.status.SetState(statuspub.StateStopped, "")
		if s.store != nil {
			_ = s.store.Close()
		}
		if s.audit != nil {
			_ = s.audit.Close()
		}
	}()

	for {
		if s.stopRequested() || ctx.Err() != nil {
			return nil
		}

		snap, outcome, err := s.runRound(ctx)
		if err != nil {
			s.log.Error("round failed with a startup-fatal error", "error", err)
			return err
		}

		if s.stopRequested() || ctx.Err() != nil {
			return nil
		}

		wait, cooldownReason := nextWaitInterval(snap, outcome)
		s.publishWaitState(wait, cooldownReason)

		switch s.waitInterval(ctx, wait) {
		case waitStopped, waitCanceled:
			return nil
		case waitTriggered, waitElapsed:
			continue
		}
	}
}

// RunRounds executes exactly count rounds back-to-back with no wait in
// between, then returns — the synchronous mode behind the `run <count>`
// CLI subcommand (manual/testing invocation, as opposed to Run's
// wait-and-repeat daemon loop).
func (s *Scheduler) RunRounds(ctx context.Context, count int) error {
	if err := acquirePIDLock(s.pidPath); err != nil {
		return err
	}
	defer releasePIDLock(s.pidPath)

	consumeSentinel(s.sentinelPath)

	defer func() {
		_ = s.status.SetState(statuspub.StateStopped, "")
		if s.store != nil {
			_ = s.store.Close()
		}
		if s.audit != nil {
			_ = s.audit.Close()
		}
	}()

	for i := 0; i < count; i++ {
		if s.stopRequested() || ctx.Err() != nil {
			return nil
		}
		if _, _, err := s.runRound(ctx); err != nil {
			return err
		}
	}
	return nil
}

// roundOutcome summarizes one round for status publication and wait
// interval selection.
type roundOutcome struct {
	processedTotal  int
	success         int
	skipped         int
	failed          int
	hitMaxDownloads bool
	rateLimited     bool
	configDisabled  bool
}

// runRound executes exactly one idle→scanning→draining cycle. A nil
// *config.Snapshot return means the round never got far enough to build
// one (config disabled or invalid); callers fall back to a zero-value
// snapshot's defaults for the wait interval in that case.
func (s *Scheduler) runRound(ctx context.Context) (*config.Snapshot, *roundOutcome, error) {
	outcome := &roundOutcome{}

	snap, err := config.Load()
	if err != nil {
		if errors.Is(err, apperrors.ErrDisabled) {
			outcome.configDisabled = true
			s.log.Info("archive disabled in configuration, idling")
			return fallbackSnapshot(), outcome, nil
		}
		// Any other Validate() failure (missing credentials, invalid
		// mode/restrict, unwritable output_dir) is startup-fatal.
		return nil, outcome, err
	}

	if err := checkDiskSpace(snap.OutputDir); err != nil {
		s.recordError(err, 0, "disk_space", "")
		return snap, outcome, nil
	}

	if err := s.ensureResources(snap); err != nil {
		return snap, outcome, err
	}

	_ = s.status.SetState(statuspub.StateSyncing, "scanning")
	if s.audit != nil {
		_ = s.audit.Info("scheduler", "round started")
	}

	client := pixivapi.New(snap.Timeout)
	session, err := auth.New(client, s.log, snap.OutputDir, snap.RefreshToken)
	if err != nil {
		return snap, outcome, err
	}

	scan := scanner.New(client, session, s.store, s.q, snap, s.log)
	scanResult, scanErr := scan.Run(ctx, snap, false)
	if scanErr != nil {
		s.recordError(scanErr, 0, "scan", "")
		switch classify.Classify(scanErr) {
		case classify.CategoryRateLimit:
			outcome.rateLimited = true
		case classify.CategoryAuth:
			// Auth-fatal stops the round but is not itself a
			// rate_limited condition; cooldown_after_error still
			// applies per nextWaitInterval.
		}
		return snap, outcome, nil
	}
	if scanResult != nil && scanResult.HitLimit {
		outcome.hitMaxDownloads = true
	}

	_ = s.status.SetState(statuspub.StateSyncing, "draining")

	pacer := queue.NewPacer(snap.HighSpeedQueueSize, snap.LowSpeedInterval, snap.IntervalJitter)
	mirror := s.mirrorBackend(snap)
	dl := downloader.New(client, session, s.store, snap.OutputDir, mirror, s.log)

	s.drainQueue(ctx, snap, dl, pacer, outcome)

	_ = s.status.Update(func(st *statuspub.Status) {
		st.ProcessedTotal = outcome.processedTotal
		st.Success = outcome.success
		st.Skipped = outcome.skipped
		st.Failed = outcome.failed
		st.HitMaxDownloads = outcome.hitMaxDownloads
		st.RateLimited = outcome.rateLimited
		counts := s.q.Counts()
		st.Queue = &statuspub.QueueCounts{
			Pending:         counts[queue.StatusPending],
			Running:         counts[queue.StatusRunning],
			Done:            counts[queue.StatusDone],
			Failed:          counts[queue.StatusFailed],
			PermanentFailed: counts[queue.StatusPermanentFailed],
		}
	})

	return snap, outcome, nil
}

// drainQueue claims and downloads items one at a time until the round
// budget is exhausted, the queue has nothing immediately eligible, a
// round-fatal category is hit, the hard cap elapses, or a stop is
// requested (§4.9 draining→waiting / draining→cooldown).
func (s *Scheduler) drainQueue(ctx context.Context, snap *config.Snapshot, dl *downloader.Downloader, pacer *queue.Pacer, outcome *roundOutcome) {
	deadline := time.Now().Add(roundHardCap)
	consecutiveNetwork := 0

	for {
		if ctx.Err() != nil || s.stopCtx.Err() != nil || s.stopRequested() {
			return
		}
		if time.Now().After(deadline) {
			s.log.Warn("round exceeded hard cap, forcing cooldown", "cap", roundHardCap)
			return
		}
		if snap.MaxDownloads > 0 && outcome.processedTotal >= snap.MaxDownloads {
			outcome.hitMaxDownloads = true
			return
		}

		item := s.q.ClaimNext(time.Now().UTC())
		if item == nil {
			return
		}

		// The between-items pacing sleep waits on stopCtx, not ctx, so a
		// Stop() call interrupts it immediately rather than running the
		// full interval out — the item hasn't been claimed for download
		// yet, so there is nothing in flight to let finish.
		if err := pacer.Wait(s.stopCtx); err != nil {
			return
		}

		rec, _ := s.store.GetIllust(item.IllustID)
		if rec != nil && rec.Downloaded {
			// Defensive: the item was claimed but the store already
			// considers it archived (e.g. a prior crash between
			// MarkDownloaded and Complete). Skip rather than re-fetch.
			outcome.skipped++
			_ = s.q.Complete(item.IllustID, queue.Outcome{Success: true})
			continue
		}

		var order *int64
		isBookmarked, isFollowing := item.Provenance == queue.ProvenanceBookmark, item.Provenance == queue.ProvenanceFollowing
		if rec != nil {
			order = rec.BookmarkOrder
			isBookmarked = rec.IsBookmarked
			isFollowing = rec.IsFollowingAuthor
		}

		derr := dl.Download(ctx, s.stopCtx, item.Illust, isBookmarked, isFollowing, order, pacer)
		outcome.processedTotal++

		if derr == nil {
			outcome.success++
			consecutiveNetwork = 0
			_ = s.q.Complete(item.IllustID, queue.Outcome{Success: true})
			continue
		}

		outcome.failed++
		_ = s.q.Complete(item.IllustID, queue.Outcome{Success: false, Err: derr})

		var appErr *apperrors.Error
		if errors.As(derr, &appErr) && (appErr.Domain == apperrors.DomainFilesystem) {
			s.recordError(derr, item.IllustID, "download", item.Illust.MetaSingle.OriginalImageURL)
			return
		}

		switch classify.Classify(derr) {
		case classify.CategoryRateLimit:
			outcome.rateLimited = true
			s.recordError(derr, item.IllustID, "download", "")
			return
		case classify.CategoryAuth:
			s.recordError(derr, item.IllustID, "download", "")
			return
		case classify.CategoryNetwork:
			consecutiveNetwork++
			s.recordError(derr, item.IllustID, "download", "")
			if consecutiveNetwork >= consecutiveNetworkCap {
				s.log.Warn("too many consecutive network failures, forcing cooldown", "count", consecutiveNetwork)
				return
			}
		default:
			consecutiveNetwork = 0
		}
	}
}

// ensureResources opens the metadata store and task queue once, on the
// first round; output_dir is a deployment-level setting in practice, so
// subsequent rounds reuse the same handles rather than reopening the
// SQLite connection every cycle.
func (s *Scheduler) ensureResources(snap *config.Snapshot) error {
	if s.store != nil {
		return nil
	}

	st, err := store.Open(store.Path(snap.OutputDir))
	if err != nil {
		return err
	}
	q, err := queue.Open(queue.Path(snap.OutputDir))
	if err != nil {
		st.Close()
		return err
	}
	al, err := audit.New(snap.OutputDir, snap.AuditRetentionDays)
	if err != nil {
		st.Close()
		return err
	}

	s.store = st
	s.q = q
	s.audit = al
	return nil
}

// mirrorBackend builds the optional S3-compatible mirror from snap's
// mirror_bucket key, resolving credentials from the ambient AWS SDK
// default credential chain. An empty bucket disables the mirror
// entirely.
func (s *Scheduler) mirrorBackend(snap *config.Snapshot) storage.Backend {
	if snap.MirrorBucket == "" {
		return nil
	}
	backend, err := storage.NewS3(storage.S3Config{Bucket: snap.MirrorBucket})
	if err != nil {
		s.log.Warn("failed to build mirror backend, continuing without it", "error", err)
		return nil
	}
	return backend
}

func (s *Scheduler) recordError(err error, illustID int64, action, url string) {
	s.log.Error(action+" failed", "illust_id", illustID, "error", err)
	if s.audit != nil {
		_ = s.audit.Error("scheduler", fmt.Sprintf("%s failed illust_id=%d: %v", action, illustID, err))
	}
	_ = s.status.RecordError(statuspub.LastError{
		Time:     time.Now().UTC(),
		IllustID: illustID,
		Action:   action,
		URL:      url,
		Message:  err.Error(),
	})
}

// publishWaitState publishes the scheduler's observable state for the
// upcoming wait: idle for a normal interval, cooldown for a
// limit/error-triggered one (invariant 7: state is one of
// {idle, syncing, cooldown, stopped}).
func (s *Scheduler) publishWaitState(wait time.Duration, cooldownReason string) {
	nextRunAt := time.Now().UTC().Add(wait)
	_ = s.status.Update(func(st *statuspub.Status) {
		if cooldownReason != "" {
			st.State = statuspub.StateCooldown
			st.CooldownReason = cooldownReason
			st.CooldownSeconds = int(wait.Seconds())
		} else {
			st.State = statuspub.StateIdle
			st.CooldownReason = ""
			st.CooldownSeconds = 0
		}
		st.NextRunAt = &nextRunAt
	})
}

// nextWaitInterval selects the wait duration per §4.9: rate-limit
// observations outrank hitting the max-downloads cap, which outranks the
// normal sync interval.
func nextWaitInterval(snap *config.Snapshot, outcome *roundOutcome) (time.Duration, string) {
	if outcome.rateLimited {
		return snap.CooldownAfterError, "rate_limit"
	}
	if outcome.hitMaxDownloads {
		return snap.CooldownAfterLimit, "max_downloads"
	}
	return snap.SyncInterval, ""
}

// fallbackSnapshot provides sync-interval-only defaults for the wait
// selection when the round never produced a real snapshot (disabled
// config): a short, fixed re-check interval rather than a zero-value
// duration that would busy-loop.
func fallbackSnapshot() *config.Snapshot {
	return &config.Snapshot{SyncInterval: 5 * time.Minute}
}

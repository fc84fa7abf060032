// Package statuspub implements the Status Publisher (C8):
// an atomically-written runtime snapshot readers can poll instead of
// scraping logs.
package statuspub

import (
	"encoding/json"
	"path/filepath"
	"sync"
	"time"

	"github.com/corvidae/pixback/internal/common/errors"
	"github.com/corvidae/pixback/internal/common/paths"
)

// FileName is the well-known status file under output_dir/data/ (§6.1).
const FileName = "status.json"

// State is the scheduler's coarse observable state (invariant 7: "one
// of {idle, syncing, cooldown, stopped}").
type State string

const (
	StateIdle     State = "idle"
	StateSyncing  State = "syncing"
	StateCooldown State = "cooldown"
	StateStopped  State = "stopped"
)

// LastError is the structured recent-error record (§7: "time,
// illust_id if applicable, action, url, error text").
type LastError struct {
	Time     time.Time `json:"time"`
	IllustID int64     `json:"illust_id,omitempty"`
	Action   string    `json:"action"`
	URL      string    `json:"url,omitempty"`
	Message  string    `json:"message"`
}

// QueueCounts mirrors queue.Queue.Counts() for publication.
type QueueCounts struct {
	Pending         int `json:"pending"`
	Running         int `json:"running"`
	Done            int `json:"done"`
	Failed          int `json:"failed"`
	PermanentFailed int `json:"permanent_failed"`
}

// Status is the full status.json document (§4.7). Pointer fields are
// left nil when unchanged from the prior publication — "absence means
// unknown, not zero" (§4.7).
type Status struct {
	State           State        `json:"state"`
	Phase           string       `json:"phase,omitempty"`
	Message         string       `json:"message,omitempty"`
	ProcessedTotal  int          `json:"processed_total"`
	Success         int          `json:"success"`
	Skipped         int          `json:"skipped"`
	Failed          int          `json:"failed"`
	HitMaxDownloads bool         `json:"hit_max_downloads"`
	RateLimited     bool         `json:"rate_limited"`
	LastError       *LastError   `json:"last_error,omitempty"`
	RecentErrors    []LastError  `json:"recent_errors,omitempty"`
	Queue           *QueueCounts `json:"queue,omitempty"`
	CooldownReason  string       `json:"cooldown_reason,omitempty"`
	NextRunAt       *time.Time   `json:"next_run_at,omitempty"`
	CooldownSeconds int          `json:"cooldown_seconds,omitempty"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// recentErrorCap is the "last 10 items" bound from §7.
const recentErrorCap = 10

// Publisher accumulates round state and flushes it atomically. It is safe
// for concurrent use by the scheduler's main loop and any signal handler
// that wants to publish state=stopped on shutdown.
type Publisher struct {
	mu     sync.Mutex
	path   string
	status Status
}

// New creates a Publisher writing to outputDir/data/status.json.
func New(outputDir string) *Publisher {
	return &Publisher{path: Path(outputDir), status: Status{State: StateIdle, UpdatedAt: time.Now().UTC()}}
}

// Path returns the status file path under outputDir/data/.
func Path(outputDir string) string {
	return filepath.Join(outputDir, "data", FileName)
}

// Update applies fn to the current status under lock, stamps updated_at,
// and flushes atomically (invariant 6). Placeholder/limited works are
// never passed to RecordError, so they never enter recent_errors (§7).
func (p *Publisher) Update(fn func(s *Status)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	fn(&p.status)
	p.status.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(p.status, "", "  ")
	if err != nil {
		return errors.ErrInternal.WithCause(err)
	}
	if err := paths.AtomicWriteFile(p.path, data, 0o644); err != nil {
		return errors.ErrFilesystem.WithCause(err)
	}
	return nil
}

// SetState publishes a bare state transition, clearing the transient
// phase message — every state transition worth observing gets a fresh
// publication.
func (p *Publisher) SetState(state State, phase string) error {
	return p.Update(func(s *Status) {
		s.State = state
		s.Phase = phase
	})
}

// RecordError appends e to the recent-errors ring (capped at 10) and sets
// it as last_error.
func (p *Publisher) RecordError(e LastError) error {
	return p.Update(func(s *Status) {
		s.LastError = &e
		s.RecentErrors = append(s.RecentErrors, e)
		if len(s.RecentErrors) > recentErrorCap {
			s.RecentErrors = s.RecentErrors[len(s.RecentErrors)-recentErrorCap:]
		}
	})
}

// Snapshot returns a copy of the current in-memory status, for the `status`
// CLI subcommand when running in-process (the common case reads the file
// directly instead).
func (p *Publisher) Snapshot() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

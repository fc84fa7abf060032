// Package queue implements the Task Queue (C4): a durable,
// single-file JSON work queue with retry classification, backoff
// scheduling, and two-tier pacing between claims.
package queue

import (
	"time"

	"github.com/corvidae/pixback/internal/classify"
	"github.com/corvidae/pixback/internal/pixivapi"
)

// Status is a QueueItem's lifecycle state (§4.3).
type Status string

const (
	StatusPending         Status = "pending"
	StatusRunning         Status = "running"
	StatusDone            Status = "done"
	StatusFailed          Status = "failed"
	StatusPermanentFailed Status = "permanent_failed"
)

// Provenance records which listing source produced an item, used for the
// ordering guarantee that bookmark-provenance drains before
// following-provenance at equal priority (§4.4 "Ordering guarantees").
type Provenance string

const (
	ProvenanceBookmark  Provenance = "bookmark"
	ProvenanceFollowing Provenance = "following"
)

// LastError is the structured failure record attached to a QueueItem.
type LastError struct {
	Category   classify.Category `json:"category"`
	HTTPStatus int               `json:"http_status,omitempty"`
	Message    string            `json:"message"`
}

// QueueItem is one unit of work: an illust pending download, together with
// its retry state and an embedded copy of the upstream record so the
// downloader can proceed without re-listing (§4.3).
type QueueItem struct {
	IllustID     int64      `json:"illust_id"`
	Status       Status     `json:"status"`
	RetryCount   int        `json:"retry_count"`
	FailedRounds int        `json:"failed_rounds"`
	LastError    *LastError `json:"last_error,omitempty"`
	NextRetryAt  time.Time  `json:"next_retry_at,omitempty"`
	EnqueuedAt   time.Time  `json:"enqueued_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Provenance   Provenance `json:"provenance"`

	// Illust is a trimmed copy of the upstream record captured at
	// enqueue time (§4.3: "embedded trimmed copy of the upstream
	// illust object").
	Illust pixivapi.Illust `json:"illust"`
}

// Outcome is what ClaimNext's caller reports back to Complete.
type Outcome struct {
	Success bool
	Err     error
}

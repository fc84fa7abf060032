// Package scanner implements the Scanner (C5): it walks
// the bookmarks and following-authors listing sources, decides what to
// enqueue, and tracks per-source progress cursors so incremental scans
// can stop early instead of re-walking the entire history every round.
package scanner

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/corvidae/pixback/internal/common/errors"
	"github.com/corvidae/pixback/internal/common/paths"
)

// FileName is the well-known cursor file under the output directory's
// data/ subdirectory (§6.1).
const FileName = "scan_cursor.json"

// AuthorCursor tracks the following-scan's per-author progress: the
// newest illust observed for that author, used for the early-stop
// comparison in §4.4.
type AuthorCursor struct {
	LatestSeenIllustID int64     `json:"latest_seen_illust_id"`
	LatestCreateDate   time.Time `json:"latest_create_date"`
}

// Cursor is the full persisted scan state for both listing sources.
type Cursor struct {
	// BookmarksEverFullScanned records whether a full bookmarks walk has
	// ever completed; until it has, the incremental stop criterion is
	// disabled (§4.4: "On first run ... the full list is walked").
	BookmarksEverFullScanned bool `json:"bookmarks_ever_full_scanned"`

	// IncrementalStopped reflects the most recent bookmarks scan's result.
	IncrementalStopped bool `json:"incremental_stopped"`

	// MaxBookmarkOrder is the highest bookmark_order value assigned so
	// far; each incremental scan's newly-seen works are numbered above it
	// so bookmark_order stays monotonic with observation order across
	// rounds (§4.4, open question: bookmark_order assignment).
	MaxBookmarkOrder int64 `json:"max_bookmark_order"`

	// Authors maps a followed author's user_id (decimal string, for valid
	// JSON object keys) to that author's cursor.
	Authors map[string]AuthorCursor `json:"authors"`
}

func empty() *Cursor {
	return &Cursor{Authors: make(map[string]AuthorCursor)}
}

// Load reads the cursor file, returning a fresh empty Cursor (not an
// error) if none exists yet.
func Load(path string) (*Cursor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return empty(), nil
		}
		return nil, errors.ErrFilesystem.WithCause(err)
	}
	c := empty()
	if err := json.Unmarshal(data, c); err != nil {
		// A corrupt cursor degrades to a full rescan rather than failing
		// the round outright.
		return empty(), nil
	}
	if c.Authors == nil {
		c.Authors = make(map[string]AuthorCursor)
	}
	return c, nil
}

// Save persists the cursor atomically (invariant 6).
func Save(path string, c *Cursor) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.ErrInternal.WithCause(err)
	}
	if err := paths.AtomicWriteFile(path, data, 0o644); err != nil {
		return errors.ErrFilesystem.WithCause(err)
	}
	return nil
}

// Path builds the cursor path under outputDir/data/.
func Path(outputDir string) string {
	return filepath.Join(outputDir, "data", FileName)
}

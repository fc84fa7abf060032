package scanner

import (
	"context"

	"github.com/corvidae/pixback/internal/auth"
	"github.com/corvidae/pixback/internal/common/logs"
	"github.com/corvidae/pixback/internal/config"
	"github.com/corvidae/pixback/internal/pixivapi"
	"github.com/corvidae/pixback/internal/queue"
	"github.com/corvidae/pixback/internal/store"
)

// Result summarizes one scan round, consumed by the status publisher.
type Result struct {
	Enqueued int
	HitLimit bool
	FullScan bool
}

// Scanner is the top-level C5 component: it loads the persisted cursor,
// runs the sources selected by the configured mode in ordering-guaranteed
// sequence (bookmarks before following), and saves the cursor back.
type Scanner struct {
	st         *store.Store
	q          *queue.Queue
	registry   *registry
	cursorPath string
	log        *logs.Logger
}

// New builds a Scanner wired to both listing sources.
func New(client *pixivapi.Client, session *auth.Session, st *store.Store, q *queue.Queue, snap *config.Snapshot, log *logs.Logger) *Scanner {
	cursorPath := Path(snap.OutputDir)
	cursor, err := Load(cursorPath)
	if err != nil {
		cursor = empty()
	}

	reg := newRegistry()
	reg.register(NewBookmarksSource(client, session, st, q, cursor, snap.UserID, string(snap.Restrict), log))
	reg.register(NewFollowingSource(client, session, st, q, cursor, snap.UserID, string(snap.Restrict), log))

	return &Scanner{st: st, q: q, registry: reg, cursorPath: cursorPath, log: log}
}

// modesFor maps a configured Mode to the ordered source names to run
// (§4.4 "Ordering guarantees": bookmarks before following).
func modesFor(mode config.Mode) []string {
	switch mode {
	case config.ModeBookmarks:
		return []string{"bookmarks"}
	case config.ModeFollowing:
		return []string{"following"}
	default:
		return []string{"bookmarks", "following"}
	}
}

// Run executes one scan round: selected sources are walked in order under
// a shared admission budget, then the cursor is saved atomically.
func (s *Scanner) Run(ctx context.Context, snap *config.Snapshot, fullScan bool) (*Result, error) {
	admission := NewAdmission(snap.MaxDownloads, s.q.Pending())

	sources := s.registry.selected(modesFor(snap.Mode))
	total := 0
	for _, src := range sources {
		n, err := src.Scan(ctx, admission, fullScan)
		total += n
		if err != nil {
			// Persist whatever cursor progress was made before surfacing
			// the error; a partial round still shouldn't force a full
			// rescan next time.
			_ = s.saveCursor(sources)
			return &Result{Enqueued: total, HitLimit: admission.HitLimit(), FullScan: fullScan}, err
		}
		if !admission.CanEnqueue() {
			break
		}
	}

	if err := s.saveCursor(sources); err != nil {
		return nil, err
	}

	return &Result{Enqueued: total, HitLimit: admission.HitLimit(), FullScan: fullScan}, nil
}

func (s *Scanner) saveCursor(sources []Source) error {
	if len(sources) == 0 {
		return nil
	}
	var cursor *Cursor
	switch src := sources[0].(type) {
	case *BookmarksSource:
		cursor = src.cursor
	case *FollowingSource:
		cursor = src.cursor
	}
	if cursor == nil {
		return nil
	}
	return Save(s.cursorPath, cursor)
}

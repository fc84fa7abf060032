package scanner

import (
	"context"

	"github.com/corvidae/pixback/internal/auth"
	"github.com/corvidae/pixback/internal/common/logs"
	"github.com/corvidae/pixback/internal/pixivapi"
	"github.com/corvidae/pixback/internal/queue"
	"github.com/corvidae/pixback/internal/store"
)

// ConsecutiveKnownStop is CONSECUTIVE_KNOWN_STOP from §4.4: the
// number of consecutive already-known bookmarks that ends an incremental
// scan early.
const ConsecutiveKnownStop = 50

// BookmarksSource walks the bookmarks listing, reverse-chronological
// (newest first), assigning bookmark_order and stopping early once it has
// seen enough consecutive already-known works (§4.4).
type BookmarksSource struct {
	client   *pixivapi.Client
	session  *auth.Session
	store    *store.Store
	queue    *queue.Queue
	cursor   *Cursor
	userID   string
	restrict string
	log      *logs.Logger
}

// NewBookmarksSource constructs a BookmarksSource.
func NewBookmarksSource(client *pixivapi.Client, session *auth.Session, st *store.Store, q *queue.Queue, cursor *Cursor, userID, restrict string, log *logs.Logger) *BookmarksSource {
	return &BookmarksSource{client: client, session: session, store: st, queue: q, cursor: cursor, userID: userID, restrict: restrict, log: log}
}

// Name implements Source.
func (b *BookmarksSource) Name() string { return "bookmarks" }

// Scan implements Source. It walks the bookmarks list newest-first,
// collecting the prefix of not-yet-known works, then enqueues them under
// admission control with bookmark_order assigned from the tail in
// (most-recent-first order).
func (b *BookmarksSource) Scan(ctx context.Context, admission *Admission, fullScan bool) (int, error) {
	disableStop := fullScan || !b.cursor.BookmarksEverFullScanned

	var newTop []pixivapi.Illust
	consecutiveKnown := 0
	var nextURL string
	first := true

	for {
		var page *pixivapi.BookmarksPage
		var err error
		if first {
			page, err = auth.Call(ctx, b.session, func(token string) (*pixivapi.BookmarksPage, error) {
				return b.client.Bookmarks(ctx, token, b.userID, b.restrict)
			})
			first = false
		} else {
			if nextURL == "" {
				break
			}
			page, err = auth.Call(ctx, b.session, func(token string) (*pixivapi.BookmarksPage, error) {
				return b.client.NextBookmarks(ctx, token, nextURL)
			})
		}
		if err != nil {
			return 0, err
		}

		stop := false
		for _, illust := range page.Illusts {
			if illust.IsPlaceholder() {
				_ = b.store.MarkLimited(illust.ID)
				continue
			}

			known, err := b.isKnown(illust.ID)
			if err != nil {
				return 0, err
			}
			if known {
				consecutiveKnown++
				if !disableStop && consecutiveKnown >= ConsecutiveKnownStop {
					stop = true
					break
				}
				continue
			}

			consecutiveKnown = 0
			newTop = append(newTop, illust)
		}

		nextURL = page.NextURL
		if stop || nextURL == "" {
			b.cursor.IncrementalStopped = !disableStop && stop
			break
		}
	}

	enqueued := b.admitAndRecord(newTop, admission, disableStop)

	if disableStop {
		b.cursor.MaxBookmarkOrder = int64(len(newTop))
		b.cursor.BookmarksEverFullScanned = true
	} else {
		b.cursor.MaxBookmarkOrder += int64(len(newTop))
	}

	return enqueued, nil
}

// admitAndRecord enqueues each newly-seen illust under admission control
// and upserts its store record with an authoritative bookmark_order:
// newTop is ordered newest-first, so the first element gets the highest
// value (§4.4: "bookmark_order is assigned by inverting the observed
// ordinal against the total walked").
func (b *BookmarksSource) admitAndRecord(newTop []pixivapi.Illust, admission *Admission, fullScan bool) int {
	base := b.cursor.MaxBookmarkOrder
	if fullScan {
		base = 0
	}
	total := int64(len(newTop))
	enqueued := 0

	for i, illust := range newTop {
		if !admission.CanEnqueue() {
			break
		}
		order := base + total - 1 - int64(i)
		illust.IsBookmarked = true

		_ = b.store.UpsertUser(toUserRecord(illust.User, false))
		_ = b.store.UpsertIllust(toIllustRecord(illust, true, false, &order))
		b.queue.Enqueue(illust, queue.ProvenanceBookmark)

		admission.Record()
		enqueued++
	}
	return enqueued
}

func (b *BookmarksSource) isKnown(illustID int64) (bool, error) {
	if b.queue.Contains(illustID) {
		return true, nil
	}
	downloaded, err := b.store.IsDownloaded(illustID)
	if err != nil {
		return false, err
	}
	return downloaded, nil
}

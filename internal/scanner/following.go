package scanner

import (
	"context"
	"strconv"

	"github.com/corvidae/pixback/internal/auth"
	"github.com/corvidae/pixback/internal/common/logs"
	"github.com/corvidae/pixback/internal/pixivapi"
	"github.com/corvidae/pixback/internal/queue"
	"github.com/corvidae/pixback/internal/store"
)

// FollowingSource walks the accounts the configured user follows, then
// walks each author's own work list newest-first, stopping once it
// reaches a work the per-author cursor already covers (§4.4).
type FollowingSource struct {
	client   *pixivapi.Client
	session  *auth.Session
	store    *store.Store
	queue    *queue.Queue
	cursor   *Cursor
	userID   string
	restrict string
	log      *logs.Logger
}

// NewFollowingSource constructs a FollowingSource.
func NewFollowingSource(client *pixivapi.Client, session *auth.Session, st *store.Store, q *queue.Queue, cursor *Cursor, userID, restrict string, log *logs.Logger) *FollowingSource {
	return &FollowingSource{client: client, session: session, store: st, queue: q, cursor: cursor, userID: userID, restrict: restrict, log: log}
}

// Name implements Source.
func (f *FollowingSource) Name() string { return "following" }

// Scan implements Source: it fetches the full roster of followed authors,
// then walks each author's illust list in turn.
func (f *FollowingSource) Scan(ctx context.Context, admission *Admission, fullScan bool) (int, error) {
	authors, err := f.roster(ctx)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, user := range authors {
		if !admission.CanEnqueue() {
			break
		}
		n, err := f.scanAuthor(ctx, user, admission, fullScan)
		if err != nil {
			return enqueued, err
		}
		enqueued += n
	}
	return enqueued, nil
}

// roster fetches every account the configured user follows.
func (f *FollowingSource) roster(ctx context.Context) ([]pixivapi.User, error) {
	var users []pixivapi.User
	var nextURL string
	first := true

	for {
		var page *pixivapi.FollowingPage
		var err error
		if first {
			page, err = auth.Call(ctx, f.session, func(token string) (*pixivapi.FollowingPage, error) {
				return f.client.Following(ctx, token, f.userID, f.restrict)
			})
			first = false
		} else {
			if nextURL == "" {
				break
			}
			page, err = auth.Call(ctx, f.session, func(token string) (*pixivapi.FollowingPage, error) {
				return f.client.NextFollowing(ctx, token, nextURL)
			})
		}
		if err != nil {
			return nil, err
		}
		for _, preview := range page.Users {
			users = append(users, preview.User)
		}
		nextURL = page.NextURL
		if nextURL == "" {
			break
		}
	}
	return users, nil
}

// scanAuthor walks one author's work list newest-first until it reaches
// a work already covered by the author's cursor, detecting the
// ordering-anomaly case (§4.4: a work older than a later-in-page
// work forces a full re-walk of that author next time).
func (f *FollowingSource) scanAuthor(ctx context.Context, user pixivapi.User, admission *Admission, fullScan bool) (int, error) {
	key := strconv.FormatInt(user.ID, 10)
	prior, hadCursor := f.cursor.Authors[key]
	disableStop := fullScan || !hadCursor

	_ = f.store.UpsertUser(toUserRecord(user, true))

	var newest *pixivapi.Illust
	var nextURL string
	first := true
	anomaly := false
	enqueued := 0

pageLoop:
	for {
		var page *pixivapi.BookmarksPage
		var err error
		if first {
			page, err = auth.Call(ctx, f.session, func(token string) (*pixivapi.BookmarksPage, error) {
				return f.client.UserIllusts(ctx, token, user.ID)
			})
			first = false
		} else {
			if nextURL == "" {
				break
			}
			page, err = auth.Call(ctx, f.session, func(token string) (*pixivapi.BookmarksPage, error) {
				return f.client.NextUserIllusts(ctx, token, nextURL)
			})
		}
		if err != nil {
			return enqueued, err
		}

		for i, illust := range page.Illusts {
			if illust.IsPlaceholder() {
				_ = f.store.MarkLimited(illust.ID)
				continue
			}

			if i > 0 && illust.CreateDate.After(page.Illusts[i-1].CreateDate) {
				anomaly = true
			}

			if !disableStop && illust.ID <= prior.LatestSeenIllustID && !illust.CreateDate.After(prior.LatestCreateDate) {
				break pageLoop
			}

			if newest == nil {
				n := illust
				newest = &n
			}

			if !admission.CanEnqueue() {
				break pageLoop
			}

			_ = f.store.UpsertIllust(toIllustRecord(illust, false, true, nil))
			f.queue.Enqueue(illust, queue.ProvenanceFollowing)
			admission.Record()
			enqueued++
		}

		nextURL = page.NextURL
		if nextURL == "" {
			break
		}
	}

	if anomaly {
		delete(f.cursor.Authors, key)
		return enqueued, nil
	}

	if newest != nil {
		f.cursor.Authors[key] = AuthorCursor{LatestSeenIllustID: newest.ID, LatestCreateDate: newest.CreateDate}
	} else if !hadCursor {
		f.cursor.Authors[key] = AuthorCursor{}
	}
	return enqueued, nil
}

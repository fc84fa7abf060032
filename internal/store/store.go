package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/corvidae/pixback/internal/common/errors"
)

// UpsertUser inserts or refreshes an author record, tracked separately from
// follow-state so an unfollowed author's history is retained.
func (s *Store) UpsertUser(u *UserRecord) error {
	now := u.LastSeenAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO users (user_id, name, account, profile_image_url, is_followed, first_seen_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			name = excluded.name,
			account = excluded.account,
			profile_image_url = excluded.profile_image_url,
			is_followed = excluded.is_followed,
			last_seen_at = excluded.last_seen_at
	`, u.UserID, u.Name, u.Account, u.ProfileImageURL, u.IsFollowed, now, now)
	if err != nil {
		return errors.ErrDatabaseQuery.WithCause(err)
	}
	return nil
}

// UpsertIllust inserts or refreshes an illust record. The upsert preserves
// downloaded=true and download_time under re-observation (§3: "upsert
// semantics keyed on illust_id that preserve downloaded=true"), so a
// subsequent scan pass of an already-archived work never resets it to
// pending.
func (s *Store) UpsertIllust(r *IllustRecord) error {
	tags, err := json.Marshal(r.Tags)
	if err != nil {
		return errors.ErrInternal.WithCause(err)
	}
	imageURLs, err := json.Marshal(r.ImageURLs)
	if err != nil {
		return errors.ErrInternal.WithCause(err)
	}
	tools, err := json.Marshal(r.Tools)
	if err != nil {
		return errors.ErrInternal.WithCause(err)
	}

	now := r.LastSeenAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	_, err = s.db.Exec(`
		INSERT INTO illusts (
			illust_id, title, caption, author_id, create_date, page_count, width, height,
			total_bookmarks, total_view, sanity_level, x_restrict, work_type, tags,
			image_urls, tools, downloaded, download_time, original_url,
			is_bookmarked, is_following_author, is_access_limited, bookmark_order,
			first_seen_at, last_seen_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(illust_id) DO UPDATE SET
			title = excluded.title,
			caption = excluded.caption,
			author_id = excluded.author_id,
			create_date = excluded.create_date,
			page_count = excluded.page_count,
			width = excluded.width,
			height = excluded.height,
			total_bookmarks = excluded.total_bookmarks,
			total_view = excluded.total_view,
			sanity_level = excluded.sanity_level,
			x_restrict = excluded.x_restrict,
			work_type = excluded.work_type,
			tags = excluded.tags,
			image_urls = excluded.image_urls,
			tools = excluded.tools,
			downloaded = downloaded OR excluded.downloaded,
			download_time = COALESCE(illusts.download_time, excluded.download_time),
			original_url = COALESCE(illusts.original_url, excluded.original_url),
			is_bookmarked = excluded.is_bookmarked OR illusts.is_bookmarked,
			is_following_author = excluded.is_following_author OR illusts.is_following_author,
			is_access_limited = excluded.is_access_limited,
			bookmark_order = COALESCE(excluded.bookmark_order, illusts.bookmark_order),
			last_seen_at = excluded.last_seen_at
	`,
		r.IllustID, r.Title, r.Caption, r.AuthorID, r.CreateDate, r.PageCount, r.Width, r.Height,
		r.TotalBookmarks, r.TotalView, r.SanityLevel, r.XRestrict, r.WorkType, string(tags),
		string(imageURLs), string(tools), r.Downloaded, r.DownloadTime, r.OriginalURL,
		r.IsBookmarked, r.IsFollowingAuthor, r.IsAccessLimited, r.BookmarkOrder,
		r.FirstSeenAt, now,
	)
	if err != nil {
		return errors.ErrDatabaseQuery.WithCause(err)
	}
	return nil
}

// Exists reports whether illustID has been observed before, the signal
// the bookmarks scan uses for its consecutive-already-known counter
// (§4.4).
func (s *Store) Exists(illustID int64) (bool, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM illusts WHERE illust_id = ?`, illustID).Scan(&count)
	if err != nil {
		return false, errors.ErrDatabaseQuery.WithCause(err)
	}
	return count > 0, nil
}

// IsDownloaded reports whether illustID has already been fully downloaded.
func (s *Store) IsDownloaded(illustID int64) (bool, error) {
	var downloaded bool
	err := s.db.QueryRow(`SELECT downloaded FROM illusts WHERE illust_id = ?`, illustID).Scan(&downloaded)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.ErrDatabaseQuery.WithCause(err)
	}
	return downloaded, nil
}

// MarkDownloaded records a successful download: flips illusts.downloaded
// and appends one download_history row per artifact written.
func (s *Store) MarkDownloaded(illustID int64, files []DownloadedFile) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.ErrDatabaseQuery.WithCause(err)
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(`UPDATE illusts SET downloaded = 1, download_time = ? WHERE illust_id = ?`, now, illustID); err != nil {
		tx.Rollback()
		return errors.ErrDatabaseQuery.WithCause(err)
	}

	for _, f := range files {
		downloadedAt := f.DownloadedAt
		if downloadedAt.IsZero() {
			downloadedAt = now
		}
		if _, err := tx.Exec(`
			INSERT INTO download_history (illust_id, file_path, content_hash, file_size, downloaded_at)
			VALUES (?, ?, ?, ?, ?)
		`, illustID, f.FilePath, f.ContentHash, f.FileSize, downloadedAt); err != nil {
			tx.Rollback()
			return errors.ErrDatabaseQuery.WithCause(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.ErrDatabaseQuery.WithCause(err)
	}
	return nil
}

// MarkLimited records that upstream returned an access-limited placeholder
// for illustID, so the work is never re-enqueued (§4.4).
func (s *Store) MarkLimited(illustID int64) error {
	_, err := s.db.Exec(`UPDATE illusts SET is_access_limited = 1 WHERE illust_id = ?`, illustID)
	if err != nil {
		return errors.ErrDatabaseQuery.WithCause(err)
	}
	return nil
}

// CountTotal returns the number of distinct illusts ever observed,
// reported in status.json.
func (s *Store) CountTotal() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM illusts`).Scan(&count)
	if err != nil {
		return 0, errors.ErrDatabaseQuery.WithCause(err)
	}
	return count, nil
}

// CountDownloaded returns the number of illusts marked downloaded.
func (s *Store) CountDownloaded() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM illusts WHERE downloaded = 1`).Scan(&count)
	if err != nil {
		return 0, errors.ErrDatabaseQuery.WithCause(err)
	}
	return count, nil
}

// GetIllust fetches one illust record, or nil if it has never been observed.
func (s *Store) GetIllust(illustID int64) (*IllustRecord, error) {
	row := s.db.QueryRow(`
		SELECT illust_id, title, caption, author_id, create_date, page_count, width, height,
		       total_bookmarks, total_view, sanity_level, x_restrict, work_type, tags,
		       image_urls, tools, downloaded, download_time, original_url,
		       is_bookmarked, is_following_author, is_access_limited, bookmark_order,
		       first_seen_at, last_seen_at
		FROM illusts WHERE illust_id = ?
	`, illustID)

	var r IllustRecord
	var tags, imageURLs, tools string
	var createDate, downloadTime sql.NullTime
	var bookmarkOrder sql.NullInt64

	err := row.Scan(
		&r.IllustID, &r.Title, &r.Caption, &r.AuthorID, &createDate, &r.PageCount, &r.Width, &r.Height,
		&r.TotalBookmarks, &r.TotalView, &r.SanityLevel, &r.XRestrict, &r.WorkType, &tags,
		&imageURLs, &tools, &r.Downloaded, &downloadTime, &r.OriginalURL,
		&r.IsBookmarked, &r.IsFollowingAuthor, &r.IsAccessLimited, &bookmarkOrder,
		&r.FirstSeenAt, &r.LastSeenAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.ErrDatabaseQuery.WithCause(err)
	}

	if createDate.Valid {
		r.CreateDate = createDate.Time
	}
	if downloadTime.Valid {
		t := downloadTime.Time
		r.DownloadTime = &t
	}
	if bookmarkOrder.Valid {
		v := bookmarkOrder.Int64
		r.BookmarkOrder = &v
	}
	_ = json.Unmarshal([]byte(tags), &r.Tags)
	_ = json.Unmarshal([]byte(imageURLs), &r.ImageURLs)
	_ = json.Unmarshal([]byte(tools), &r.Tools)

	return &r, nil
}

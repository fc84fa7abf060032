package store

import "time"

// IllustRecord is the persisted view of a work (§3 data model). It is
// the store's own shape, independent of the upstream JSON wire format in
// internal/pixivapi — fields such as `downloaded` and `bookmark_order`
// have no upstream counterpart.
type IllustRecord struct {
	IllustID          int64
	Title             string
	Caption           string
	AuthorID          int64
	CreateDate        time.Time
	PageCount         int
	Width             int
	Height            int
	TotalBookmarks    int
	TotalView         int
	SanityLevel       int
	XRestrict         int
	WorkType          string
	Tags              []string
	ImageURLs         map[string]string
	Tools             []string
	Downloaded        bool
	DownloadTime      *time.Time
	OriginalURL       string
	IsBookmarked      bool
	IsFollowingAuthor bool
	IsAccessLimited   bool
	BookmarkOrder     *int64
	FirstSeenAt       time.Time
	LastSeenAt        time.Time
}

// UserRecord is the persisted view of an author (§3 data model).
type UserRecord struct {
	UserID          int64
	Name            string
	Account         string
	ProfileImageURL string
	IsFollowed      bool
	FirstSeenAt     time.Time
	LastSeenAt      time.Time
}

// DownloadedFile describes one artifact written for an illust, passed to
// MarkDownloaded by the downloader (C6) after a successful write.
type DownloadedFile struct {
	FilePath     string
	ContentHash  string
	FileSize     int64
	DownloadedAt time.Time
}

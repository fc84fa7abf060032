package scanner

import (
	"time"

	"github.com/corvidae/pixback/internal/pixivapi"
	"github.com/corvidae/pixback/internal/store"
)

// toIllustRecord converts an upstream Illust into the store's persisted
// shape, optionally stamping a bookmark_order (nil when not from the
// bookmarks source).
func toIllustRecord(i pixivapi.Illust, isBookmarked, isFollowingAuthor bool, bookmarkOrder *int64) *store.IllustRecord {
	now := time.Now().UTC()
	imageURLs := map[string]string{
		"square_medium": i.ImageURLs.SquareMedium,
		"medium":        i.ImageURLs.Medium,
		"large":         i.ImageURLs.Large,
	}
	return &store.IllustRecord{
		IllustID:          i.ID,
		Title:             i.Title,
		Caption:           i.Caption,
		AuthorID:          i.User.ID,
		CreateDate:        i.CreateDate,
		PageCount:         i.PageCount,
		Width:             i.Width,
		Height:            i.Height,
		TotalBookmarks:    i.TotalBookmarks,
		TotalView:         i.TotalView,
		SanityLevel:       i.SanityLevel,
		XRestrict:         i.XRestrict,
		WorkType:          string(i.Type),
		Tags:              i.TagNames(),
		ImageURLs:         imageURLs,
		Tools:             i.Tools,
		IsBookmarked:      isBookmarked,
		IsFollowingAuthor: isFollowingAuthor,
		IsAccessLimited:   i.IsPlaceholder(),
		BookmarkOrder:     bookmarkOrder,
		FirstSeenAt:       now,
		LastSeenAt:        now,
	}
}

func toUserRecord(u pixivapi.User, isFollowed bool) *store.UserRecord {
	now := time.Now().UTC()
	return &store.UserRecord{
		UserID:          u.ID,
		Name:            u.Name,
		Account:         u.Account,
		ProfileImageURL: u.ProfileImageURL,
		IsFollowed:      isFollowed,
		FirstSeenAt:     now,
		LastSeenAt:      now,
	}
}

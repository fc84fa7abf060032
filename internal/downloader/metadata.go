package downloader

import (
	"time"

	"github.com/corvidae/pixback/internal/pixivapi"
)

// metadataUser is the nested author record in a metadata document
// (§6.1: "user.{user_id,name,account,profile_image_url}").
type metadataUser struct {
	UserID          int64  `json:"user_id"`
	Name            string `json:"name"`
	Account         string `json:"account"`
	ProfileImageURL string `json:"profile_image_url"`
}

// metadataImageURLs is the size-name to URL mapping (§6.1:
// "image_urls{medium,large,square_medium}").
type metadataImageURLs struct {
	Medium       string `json:"medium"`
	Large        string `json:"large"`
	SquareMedium string `json:"square_medium"`
}

// Document is the full per-work metadata record written to
// metadata/<illust_id>.json (§6.1), serialized with all fields
// present so it round-trips byte-for-byte in field set.
type Document struct {
	IllustID          int64              `json:"illust_id"`
	Title             string             `json:"title"`
	Caption           string             `json:"caption"`
	User              metadataUser       `json:"user"`
	CreateDate        time.Time          `json:"create_date"`
	PageCount         int                `json:"page_count"`
	Width             int                `json:"width"`
	Height            int                `json:"height"`
	BookmarkCount     int                `json:"bookmark_count"`
	ViewCount         int                `json:"view_count"`
	SanityLevel       int                `json:"sanity_level"`
	XRestrict         int                `json:"x_restrict"`
	Type              string             `json:"type"`
	Tags              []string           `json:"tags"`
	ImageURLs         metadataImageURLs  `json:"image_urls"`
	Tools             []string           `json:"tools"`
	DownloadTime      time.Time          `json:"download_time"`
	OriginalURL       string             `json:"original_url"`
	IsBookmarked      bool               `json:"is_bookmarked"`
	IsFollowingAuthor bool               `json:"is_following_author"`
	BookmarkOrder     *int64             `json:"bookmark_order"`
	IsAccessLimited   bool               `json:"is_access_limited"`
}

// buildDocument assembles the metadata document for a successfully
// downloaded illust. isBookmarked/isFollowingAuthor/bookmarkOrder come from
// the store record rather than the upstream illust object, since upstream
// never reports following-provenance directly.
func buildDocument(illust pixivapi.Illust, originalURL string, isBookmarked, isFollowingAuthor bool, bookmarkOrder *int64, downloadTime time.Time) *Document {
	return &Document{
		IllustID: illust.ID,
		Title:    illust.Title,
		Caption:  illust.Caption,
		User: metadataUser{
			UserID:          illust.User.ID,
			Name:            illust.User.Name,
			Account:         illust.User.Account,
			ProfileImageURL: illust.User.ProfileImageURL,
		},
		CreateDate:        illust.CreateDate,
		PageCount:         illust.PageCount,
		Width:             illust.Width,
		Height:            illust.Height,
		BookmarkCount:     illust.TotalBookmarks,
		ViewCount:         illust.TotalView,
		SanityLevel:       illust.SanityLevel,
		XRestrict:         illust.XRestrict,
		Type:              string(illust.Type),
		Tags:              illust.TagNames(),
		ImageURLs: metadataImageURLs{
			Medium:       illust.ImageURLs.Medium,
			Large:        illust.ImageURLs.Large,
			SquareMedium: illust.ImageURLs.SquareMedium,
		},
		Tools:             illust.Tools,
		DownloadTime:      downloadTime,
		OriginalURL:       originalURL,
		IsBookmarked:      isBookmarked,
		IsFollowingAuthor: isFollowingAuthor,
		BookmarkOrder:     bookmarkOrder,
		IsAccessLimited:   illust.IsPlaceholder(),
	}
}

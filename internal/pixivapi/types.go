// Package pixivapi is the upstream protocol client (§6.4): OAuth token
// exchange, the two paginated listing endpoints (bookmarks, following
// authors' work lists), and binary image/ugoira fetches. It parses upstream
// JSON into explicitly-typed records rather than duck-typing maps, per the
// "no duck-typed records" design note — unknown upstream fields are simply
// not round-tripped unless a field below names them.
package pixivapi

import "time"

// WorkType enumerates the three kinds of work the archive handles.
type WorkType string

const (
	WorkTypeIllust WorkType = "illust"
	WorkTypeManga  WorkType = "manga"
	WorkTypeUgoira WorkType = "ugoira"
)

// User is the nested author record embedded in an Illust.
type User struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Account         string `json:"account"`
	ProfileImageURL string `json:"profile_image_url"`
}

// ImageURLs holds the size-name to URL mapping for preview images.
type ImageURLs struct {
	SquareMedium string `json:"square_medium"`
	Medium       string `json:"medium"`
	Large        string `json:"large"`
}

// MetaSinglePage holds the single-page original image URL.
type MetaSinglePage struct {
	OriginalImageURL string `json:"original_image_url"`
}

// MetaPage is one entry of a multi-page illust's page list.
type MetaPage struct {
	ImageURLs struct {
		SquareMedium string `json:"square_medium"`
		Medium       string `json:"medium"`
		Large        string `json:"large"`
		Original     string `json:"original"`
	} `json:"image_urls"`
}

// Illust is the upstream representation of a single work, parsed verbatim
// from the listing/detail JSON. Fields not needed downstream are still
// captured here so the metadata document (§6.1) can round-trip them.
type Illust struct {
	ID             int64          `json:"id"`
	Title          string         `json:"title"`
	Type           WorkType       `json:"type"`
	Caption        string         `json:"caption"`
	CreateDate     time.Time      `json:"create_date"`
	PageCount      int            `json:"page_count"`
	Width          int            `json:"width"`
	Height         int            `json:"height"`
	SanityLevel    int            `json:"sanity_level"`
	XRestrict      int            `json:"x_restrict"`
	TotalBookmarks int            `json:"total_bookmarks"`
	TotalView      int            `json:"total_view"`
	IsBookmarked   bool           `json:"is_bookmarked"`
	Tags           []Tag          `json:"tags"`
	Tools          []string       `json:"tools"`
	User           User           `json:"user"`
	ImageURLs      ImageURLs      `json:"image_urls"`
	MetaSingle     MetaSinglePage `json:"meta_single_page"`
	MetaPages      []MetaPage     `json:"meta_pages"`

	// Visible is false when upstream returned a structurally valid but
	// content-less placeholder ("this work is unavailable"); the scanner
	// detects this and never enqueues the work (§4.4 placeholder
	// detection, invariant: is_access_limited).
	Visible bool `json:"visible"`
}

// Tag is one entry of an illust's ordered tag sequence.
type Tag struct {
	Name           string `json:"name"`
	TranslatedName string `json:"translated_name"`
}

// TagNames returns the plain tag name sequence, preserving order.
func (i *Illust) TagNames() []string {
	names := make([]string, 0, len(i.Tags))
	for _, t := range i.Tags {
		names = append(names, t.Name)
	}
	return names
}

// IsPlaceholder reports whether upstream returned an access-limited stub
// instead of real content (§4.4).
func (i *Illust) IsPlaceholder() bool {
	return !i.Visible
}

// UgoiraMetadata describes the frame timing and zip URL for an animated
// illustration, fetched from the separate ugoira metadata endpoint.
type UgoiraMetadata struct {
	ZipURLs struct {
		Medium string `json:"medium"`
	} `json:"zip_urls"`
	Frames []UgoiraFrame `json:"frames"`
}

// UgoiraFrame is one frame's file name and display duration in milliseconds.
type UgoiraFrame struct {
	File  string `json:"file"`
	Delay int    `json:"delay"`
}

// illustListResponse is the shape shared by the bookmarks and following
// work-list endpoints: a page of illusts plus an opaque continuation URL.
type illustListResponse struct {
	Illusts []Illust `json:"illusts"`
	NextURL string   `json:"next_url"`
}

// PreviewUser is one entry of the followed-authors listing.
type PreviewUser struct {
	User User `json:"user"`
}

// followListResponse is the shape of the "who the account follows" endpoint.
type followListResponse struct {
	PreviewUsers []PreviewUser `json:"user_previews"`
	NextURL      string        `json:"next_url"`
}

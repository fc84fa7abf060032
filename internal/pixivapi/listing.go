package pixivapi

import (
	"context"
	"fmt"
)

// BookmarksPage is one page of the bookmarks listing endpoint, plus the
// opaque continuation URL the scanner threads through to NextBookmarks.
type BookmarksPage struct {
	Illusts []Illust
	NextURL string
}

// FollowingPage is one page of the followed-authors listing.
type FollowingPage struct {
	Users   []PreviewUser
	NextURL string
}

// Bookmarks fetches the first page of a user's bookmarks, newest first
// (§4.4: "reverse-chronological, newest bookmark first").
func (c *Client) Bookmarks(ctx context.Context, accessToken, userID string, restrict string) (*BookmarksPage, error) {
	u := buildQuery(apiHost() + "/v1/user/bookmarks/illust", map[string]string{
		"user_id":  userID,
		"restrict": restrict,
	})
	return c.fetchIllustPage(ctx, u, accessToken)
}

// NextBookmarks follows the continuation URL returned by a previous call
// to Bookmarks or NextBookmarks. An empty nextURL indicates end-of-list.
func (c *Client) NextBookmarks(ctx context.Context, accessToken, nextURL string) (*BookmarksPage, error) {
	if nextURL == "" {
		return &BookmarksPage{}, nil
	}
	return c.fetchIllustPage(ctx, nextURL, accessToken)
}

func (c *Client) fetchIllustPage(ctx context.Context, u, accessToken string) (*BookmarksPage, error) {
	var body illustListResponse
	if _, err := c.Get(ctx, u, accessToken, &body); err != nil {
		return nil, fmt.Errorf("fetch illust page: %w", err)
	}
	return &BookmarksPage{Illusts: body.Illusts, NextURL: body.NextURL}, nil
}

// Following fetches the first page of accounts the user follows, used as
// the author roster for the following-mode scan (§4.4).
func (c *Client) Following(ctx context.Context, accessToken, userID string, restrict string) (*FollowingPage, error) {
	u := buildQuery(apiHost() + "/v1/user/following", map[string]string{
		"user_id":  userID,
		"restrict": restrict,
	})
	return c.fetchFollowingPage(ctx, u, accessToken)
}

// NextFollowing follows the continuation URL from a previous Following call.
func (c *Client) NextFollowing(ctx context.Context, accessToken, nextURL string) (*FollowingPage, error) {
	if nextURL == "" {
		return &FollowingPage{}, nil
	}
	return c.fetchFollowingPage(ctx, nextURL, accessToken)
}

func (c *Client) fetchFollowingPage(ctx context.Context, u, accessToken string) (*FollowingPage, error) {
	var body followListResponse
	if _, err := c.Get(ctx, u, accessToken, &body); err != nil {
		return nil, fmt.Errorf("fetch following page: %w", err)
	}
	return &FollowingPage{Users: body.PreviewUsers, NextURL: body.NextURL}, nil
}

// UserIllusts fetches the first page of one author's published works, the
// per-author walk used by following-mode scanning (§4.4).
func (c *Client) UserIllusts(ctx context.Context, accessToken string, userID int64) (*BookmarksPage, error) {
	u := buildQuery(apiHost() + "/v1/user/illusts", map[string]string{
		"user_id": fmt.Sprintf("%d", userID),
		"type":    "illust",
	})
	return c.fetchIllustPage(ctx, u, accessToken)
}

// NextUserIllusts follows the continuation URL from a previous UserIllusts call.
func (c *Client) NextUserIllusts(ctx context.Context, accessToken, nextURL string) (*BookmarksPage, error) {
	return c.NextBookmarks(ctx, accessToken, nextURL)
}

// UgoiraMetadata fetches the frame/zip metadata for an animated illustration.
func (c *Client) UgoiraMetadata(ctx context.Context, accessToken string, illustID int64) (*UgoiraMetadata, error) {
	u := buildQuery(apiHost() + "/v1/ugoira/metadata", map[string]string{
		"illust_id": fmt.Sprintf("%d", illustID),
	})
	var body struct {
		Metadata UgoiraMetadata `json:"ugoira_metadata"`
	}
	if _, err := c.Get(ctx, u, accessToken, &body); err != nil {
		return nil, fmt.Errorf("fetch ugoira metadata: %w", err)
	}
	return &body.Metadata, nil
}

package pixivapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// FetchImage streams a binary artifact (original image, manga page, or
// ugoira zip) to w. The upstream image host rejects requests that lack the
// pixiv-app Referer header (§4.5, §6.4), so it is set unconditionally
// here rather than left to the caller.
func (c *Client) FetchImage(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build image request: %w", err)
	}
	req.Header.Set("Referer", ImageReferer)

	resp, err := c.Do(req)
	if err != nil {
		return 0, fmt.Errorf("image request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return 0, newStatusError(resp)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("copy image body: %w", err)
	}
	return n, nil
}

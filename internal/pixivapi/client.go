package pixivapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	// AuthHost is the upstream OAuth token endpoint host.
	AuthHost = "https://oauth.secure.pixiv.net"
	// APIHost is the upstream REST API host.
	APIHost = "https://app-api.pixiv.net"
	// ImageReferer is the Referer header required by the upstream image host
	// (§4.5, §6.4).
	ImageReferer = "https://app-api.pixiv.net/"

	clientID     = "MOBrBDS8blbauoSck0ZfDbtuzpyT"
	clientSecret = "lsACyCD94FhDUtGTXi3QzcFE2uU1hqtZ"
	userAgent    = "PixivAndroidApp/5.0.234 (Android 11; Pixel 5)"
)

// Client is a thin HTTP wrapper around the upstream protocol. It performs
// no token management or retry of its own — that is the Auth Session's
// (C2) responsibility, layered on top via AuthorizedRequest.
type Client struct {
	httpClient *http.Client
}

// New creates a Client with the given per-request timeout (§5,
// "Every outbound HTTP request carries a timeout derived from `timeout`").
func New(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Do executes a raw request built by the caller, adding the standard
// User-Agent header. It never inspects the response for auth/rate-limit
// semantics — that is the classifier's (C7) job.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("App-OS", "android")
	req.Header.Set("App-OS-Version", "11")
	return c.httpClient.Do(req)
}

// Get issues an authorized GET against a full URL and decodes a JSON body.
func (c *Client) Get(ctx context.Context, rawURL, accessToken string, out interface{}) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return resp, newStatusError(resp)
	}

	if out != nil {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return resp, fmt.Errorf("read response: %w", err)
		}
		if err := json.Unmarshal(body, out); err != nil {
			return resp, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp, nil
}

// StatusError carries the HTTP status and a snippet of the response body,
// the raw material the classifier (C7) maps to a retry category.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned HTTP %d: %s", e.StatusCode, e.Body)
}

func newStatusError(resp *http.Response) *StatusError {
	body, _ := io.ReadAll(resp.Body)
	const maxSnippet = 512
	if len(body) > maxSnippet {
		body = body[:maxSnippet]
	}
	return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
}

// buildQuery joins a base URL with query parameters.
func buildQuery(base string, params map[string]string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	for k, v := range params {
		if v != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

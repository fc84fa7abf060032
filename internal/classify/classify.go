// Package classify implements the Rate-Limit Classifier (C7): a pure
// function mapping an upstream failure (HTTP status plus
// whatever error text is available) onto one of five retry categories.
// It performs no I/O and holds no state, so it can be called from any
// goroutine without synchronization.
package classify

import (
	"errors"
	"net"
	"strings"

	"github.com/corvidae/pixback/internal/pixivapi"
)

// Category is one of the five retry classes from §4.6.
type Category string

const (
	CategoryInvalid   Category = "invalid"
	CategoryRateLimit Category = "rate_limit"
	CategoryAuth      Category = "auth"
	CategoryNetwork   Category = "network"
	CategoryUnknown   Category = "unknown"
)

// rateLimitSubstrings are matched case-insensitively against a response
// body to catch upstream 403s that are really rate limits in disguise.
var rateLimitSubstrings = []string{
	"rate limit",
	"too many requests",
	"temporarily unavailable",
}

// Classify maps err (as returned by internal/pixivapi) to a retry
// category. A nil err classifies as CategoryUnknown, since callers should
// not invoke Classify on a successful call.
func Classify(err error) Category {
	if err == nil {
		return CategoryUnknown
	}

	var statusErr *pixivapi.StatusError
	if errors.As(err, &statusErr) {
		return classifyStatus(statusErr.StatusCode, statusErr.Body)
	}

	if isNetworkError(err) {
		return CategoryNetwork
	}

	return CategoryUnknown
}

func classifyStatus(status int, body string) Category {
	switch status {
	case 404:
		return CategoryInvalid
	case 401:
		return CategoryAuth
	case 429:
		return CategoryRateLimit
	case 403:
		if containsAny(body, rateLimitSubstrings) {
			return CategoryRateLimit
		}
		return CategoryAuth
	case 500, 502, 503, 504:
		return CategoryRateLimit
	}
	return CategoryUnknown
}

func containsAny(haystack string, needles []string) bool {
	lower := strings.ToLower(haystack)
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}

// isNetworkError recognizes connection-level failures: DNS, connection
// refused, TLS handshake, I/O timeout, EOF mid-stream (§4.6).
func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, substr := range []string{"connection refused", "no such host", "tls handshake", "i/o timeout", "eof", "connection reset"} {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

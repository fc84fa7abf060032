package classify

import (
	"errors"
	"testing"
	"time"

	"github.com/corvidae/pixback/internal/pixivapi"
)

func TestClassify_Status(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   Category
	}{
		{"not found", 404, "", CategoryInvalid},
		{"unauthorized", 401, "", CategoryAuth},
		{"explicit rate limit", 429, "", CategoryRateLimit},
		{"403 with rate limit text", 403, "Too Many Requests, slow down", CategoryRateLimit},
		{"403 without rate limit text", 403, "forbidden: invalid scope", CategoryAuth},
		{"bad gateway", 502, "", CategoryRateLimit},
		{"service unavailable", 503, "", CategoryRateLimit},
		{"gateway timeout", 504, "", CategoryRateLimit},
		{"teapot (unmapped)", 418, "", CategoryUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := &pixivapi.StatusError{StatusCode: tc.status, Body: tc.body}
			if got := Classify(err); got != tc.want {
				t.Errorf("Classify(%d, %q) = %q, want %q", tc.status, tc.body, got, tc.want)
			}
		})
	}
}

func TestClassify_Network(t *testing.T) {
	cases := []error{
		errors.New("dial tcp: connection refused"),
		errors.New("lookup app-api.pixiv.net: no such host"),
		errors.New("remote error: tls: handshake failure"),
		errors.New("unexpected EOF"),
	}
	for _, err := range cases {
		if got := Classify(err); got != CategoryNetwork {
			t.Errorf("Classify(%v) = %q, want network", err, got)
		}
	}
}

func TestClassify_Nil(t *testing.T) {
	if got := Classify(nil); got != CategoryUnknown {
		t.Errorf("Classify(nil) = %q, want unknown", got)
	}
}

func TestBackoff_MonotonicAndCapped(t *testing.T) {
	prev := time.Duration(0)
	for k := 0; k < 12; k++ {
		d := Backoff(k, CategoryRateLimit)
		if d < prev {
			t.Fatalf("backoff decreased at retry %d: %v < %v", k, d, prev)
		}
		if d > Policy(CategoryRateLimit).Cap {
			t.Fatalf("backoff exceeded cap at retry %d: %v", k, d)
		}
		prev = d
	}
}

func TestBackoff_ZeroForNoRetryCategories(t *testing.T) {
	if d := Backoff(0, CategoryInvalid); d != 0 {
		t.Errorf("expected zero backoff for invalid, got %v", d)
	}
	if d := Backoff(0, CategoryAuth); d != 0 {
		t.Errorf("expected zero backoff for auth, got %v", d)
	}
}

func TestExceedsRetryBudget(t *testing.T) {
	if !ExceedsRetryBudget(0, CategoryInvalid) {
		t.Error("invalid must exceed budget immediately")
	}
	if ExceedsRetryBudget(1000, CategoryAuth) {
		t.Error("auth must never be subject to the local retry budget")
	}
	if ExceedsRetryBudget(7, CategoryRateLimit) {
		t.Error("rate_limit at retry 7 should still be within its 8-retry budget")
	}
	if !ExceedsRetryBudget(8, CategoryRateLimit) {
		t.Error("rate_limit at retry 8 should exceed its budget")
	}
}

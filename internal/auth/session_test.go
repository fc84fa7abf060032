package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/corvidae/pixback/internal/common/logs"
	"github.com/corvidae/pixback/internal/pixivapi"
)

func testLogger() *logs.Logger {
	return logs.New(logs.Config{Output: logs.OutputStdout, Level: "error"})
}

func TestSession_EnsureFresh_RefreshesWhenEmpty(t *testing.T) {
	var refreshCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
		json.NewEncoder(w).Encode(pixivapi.TokenResponse{
			AccessToken:  "token-1",
			RefreshToken: "refresh-1",
			ExpiresIn:    3600,
		})
	}))
	defer srv.Close()

	client := pixivapi.New(5 * time.Second)
	patchAuthHost(t, srv.URL)

	sess, err := New(client, testLogger(), t.TempDir(), "seed-refresh")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tok, err := sess.EnsureFresh(context.Background())
	if err != nil {
		t.Fatalf("EnsureFresh: %v", err)
	}
	if tok != "token-1" {
		t.Errorf("expected token-1, got %q", tok)
	}
	if refreshCalls != 1 {
		t.Errorf("expected exactly one refresh call, got %d", refreshCalls)
	}

	// A second call within the token's lifetime must not refresh again.
	if _, err := sess.EnsureFresh(context.Background()); err != nil {
		t.Fatalf("EnsureFresh (cached): %v", err)
	}
	if refreshCalls != 1 {
		t.Errorf("expected cached token to avoid a second refresh, got %d calls", refreshCalls)
	}
}

func TestSession_EnsureFresh_NoRefreshToken(t *testing.T) {
	client := pixivapi.New(5 * time.Second)
	sess, err := New(client, testLogger(), t.TempDir(), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := sess.EnsureFresh(context.Background()); err == nil {
		t.Fatal("expected an error when no refresh token is available")
	}
}

func TestSession_AuthorizedRequest_RefreshesOnceOnAuthFailure(t *testing.T) {
	var refreshCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
		json.NewEncoder(w).Encode(pixivapi.TokenResponse{
			AccessToken:  "token-" + time.Now().String(),
			RefreshToken: "refresh-x",
			ExpiresIn:    3600,
		})
	}))
	defer srv.Close()

	client := pixivapi.New(5 * time.Second)
	patchAuthHost(t, srv.URL)

	sess, err := New(client, testLogger(), t.TempDir(), "seed")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var calls int
	resp, err := sess.AuthorizedRequest(context.Background(), func(accessToken string) (*http.Response, error) {
		calls++
		status := http.StatusUnauthorized
		if calls > 1 {
			status = http.StatusOK
		}
		return &http.Response{StatusCode: status, Body: http.NoBody}, nil
	})
	if err != nil {
		t.Fatalf("AuthorizedRequest: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected eventual 200, got %d", resp.StatusCode)
	}
	if calls != 2 {
		t.Errorf("expected exactly one replay (2 calls total), got %d", calls)
	}
	if refreshCalls != 2 {
		t.Errorf("expected initial refresh plus one retry refresh, got %d", refreshCalls)
	}
}

func TestSession_AuthorizedRequest_FatalAfterSecondFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(pixivapi.TokenResponse{
			AccessToken:  "token-always-rejected",
			RefreshToken: "refresh-x",
			ExpiresIn:    3600,
		})
	}))
	defer srv.Close()

	client := pixivapi.New(5 * time.Second)
	patchAuthHost(t, srv.URL)

	sess, err := New(client, testLogger(), t.TempDir(), "seed")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = sess.AuthorizedRequest(context.Background(), func(accessToken string) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusUnauthorized, Body: http.NoBody}, nil
	})
	if err == nil {
		t.Fatal("expected a fatal auth error after refresh+replay both fail")
	}
}

func TestCache_Expired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		c    Cache
		want bool
	}{
		{"empty token", Cache{}, true},
		{"well within lifetime", Cache{AccessToken: "t", ExpiresAt: now.Add(time.Hour)}, false},
		{"within skew window", Cache{AccessToken: "t", ExpiresAt: now.Add(30 * time.Second)}, true},
		{"already expired", Cache{AccessToken: "t", ExpiresAt: now.Add(-time.Minute)}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.c.Expired(now, 60*time.Second); got != tc.want {
				t.Errorf("Expired() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCachePath(t *testing.T) {
	got := cachePath("/var/lib/pixback")
	want := filepath.Join("/var/lib/pixback", "data", "token.json")
	if got != want {
		t.Errorf("cachePath() = %q, want %q", got, want)
	}
}

func patchAuthHost(t *testing.T, url string) {
	t.Helper()
	restore := pixivapi.SetAuthHostForTest(url)
	t.Cleanup(restore)
}

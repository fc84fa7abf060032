package auth

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/corvidae/pixback/internal/common/errors"
	"github.com/corvidae/pixback/internal/common/logs"
	"github.com/corvidae/pixback/internal/pixivapi"
)

// refreshSkew is how far ahead of actual expiry a cached access token is
// treated as stale, so a request never races a token that expires
// mid-flight (§4.2).
const refreshSkew = 60 * time.Second

// Session is the Auth Session (C2): it owns the on-disk token cache, the
// refresh call, and the single refresh-then-replay-once contract every
// upstream request goes through.
type Session struct {
	client *pixivapi.Client
	log    *logs.Logger

	outputDir   string
	userRefresh string // the long-lived refresh token from config, the fallback of last resort
	cachePath   string

	mu    sync.Mutex
	cache *Cache
}

// New constructs a Session, loading any existing token cache from disk.
// A missing or corrupt cache is not an error — the session falls back to
// refreshToken from configuration on first use.
func New(client *pixivapi.Client, log *logs.Logger, outputDir, refreshToken string) (*Session, error) {
	path := cachePath(outputDir)
	cache, err := loadCache(path)
	if err != nil {
		return nil, err
	}
	if cache.RefreshToken == "" {
		cache.RefreshToken = refreshToken
	}
	return &Session{
		client:      client,
		log:         log,
		outputDir:   outputDir,
		userRefresh: refreshToken,
		cachePath:   path,
		cache:       cache,
	}, nil
}

// EnsureFresh returns a valid access token, refreshing against upstream if
// the cached one is expired or within the refresh skew window.
func (s *Session) EnsureFresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureFreshLocked(ctx)
}

func (s *Session) ensureFreshLocked(ctx context.Context) (string, error) {
	now := time.Now().UTC()
	if !s.cache.Expired(now, refreshSkew) {
		return s.cache.AccessToken, nil
	}
	return s.refreshLocked(ctx, now)
}

func (s *Session) refreshLocked(ctx context.Context, now time.Time) (string, error) {
	refreshToken := s.cache.RefreshToken
	if refreshToken == "" {
		refreshToken = s.userRefresh
	}
	if refreshToken == "" {
		return "", errors.ErrNoRefreshToken
	}

	tok, err := s.client.RefreshToken(ctx, refreshToken)
	if err != nil {
		return "", errors.ErrAuthExpired.WithCause(err)
	}

	expiresAt := tok.ExpiresAt(now)
	if jwtExp, ok := introspectExpiry(tok.AccessToken); ok {
		expiresAt = jwtExp
	}

	newRefresh := tok.RefreshToken
	if newRefresh == "" {
		newRefresh = refreshToken
	}

	s.cache = &Cache{
		AccessToken:  tok.AccessToken,
		RefreshToken: newRefresh,
		ExpiresAt:    expiresAt,
		UpdatedAt:    now,
	}
	if err := saveCache(s.cachePath, s.cache); err != nil {
		s.log.Warn("failed to persist token cache", "err", err)
	}
	return s.cache.AccessToken, nil
}

// AuthorizedRequest runs fn with a fresh access token, and on a
// classified-auth failure refreshes exactly once and replays fn a single
// time before giving up with ErrAuthFatal (§4.2, §7: "single
// refresh+replay, no unbounded retry loop on auth failures").
func (s *Session) AuthorizedRequest(ctx context.Context, fn func(accessToken string) (*http.Response, error)) (*http.Response, error) {
	token, err := s.EnsureFresh(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := fn(token)
	if !isAuthFailure(resp, err) {
		return resp, err
	}

	s.mu.Lock()
	s.cache.ExpiresAt = time.Time{}
	refreshed, refreshErr := s.refreshLocked(ctx, time.Now().UTC())
	s.mu.Unlock()
	if refreshErr != nil {
		return resp, errors.ErrAuthFatal.WithCause(refreshErr)
	}

	resp, err = fn(refreshed)
	if isAuthFailure(resp, err) {
		return resp, errors.ErrAuthFatal.WithCause(err)
	}
	return resp, err
}

func isAuthFailure(resp *http.Response, err error) bool {
	if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		return true
	}
	var statusErr *pixivapi.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden
	}
	return false
}

// introspectExpiry opportunistically decodes a JWT-shaped access token to
// read its exp claim directly, without verifying the signature (pixback
// holds no key to verify against — this is a best-effort cross-check
// against the OAuth response's expires_in, not a trust boundary).
func introspectExpiry(accessToken string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	_, _, err := parser.ParseUnverified(accessToken, claims)
	if err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

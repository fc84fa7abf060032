package auth

import (
	"context"
	"time"

	"github.com/corvidae/pixback/internal/classify"
	"github.com/corvidae/pixback/internal/common/errors"
)

// Call runs fn with a fresh access token and, if fn's error classifies as
// an auth failure, refreshes once and replays fn a single time — the
// same single-refresh-then-replay contract as AuthorizedRequest, but for
// callers that get back a typed result (e.g. internal/pixivapi's listing
// methods) rather than a raw *http.Response.
func Call[T any](ctx context.Context, s *Session, fn func(accessToken string) (T, error)) (T, error) {
	var zero T

	token, err := s.EnsureFresh(ctx)
	if err != nil {
		return zero, err
	}

	result, err := fn(token)
	if err == nil || classify.Classify(err) != classify.CategoryAuth {
		return result, err
	}

	s.mu.Lock()
	s.cache.ExpiresAt = time.Time{}
	refreshed, refreshErr := s.refreshLocked(ctx, time.Now().UTC())
	s.mu.Unlock()
	if refreshErr != nil {
		return zero, errors.ErrAuthFatal.WithCause(refreshErr)
	}

	result, err = fn(refreshed)
	if err != nil && classify.Classify(err) == classify.CategoryAuth {
		return zero, errors.ErrAuthFatal.WithCause(err)
	}
	return result, err
}

// Package auth implements the Auth Session (C2): OAuth
// token caching, expiry-aware refresh, and the single
// refresh-then-replay-once pattern every upstream call goes through.
package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/corvidae/pixback/internal/common/errors"
	"github.com/corvidae/pixback/internal/common/paths"
)

// CacheFileName is the well-known token cache file under the output
// directory's data/ subdirectory (§6.1).
const CacheFileName = "token.json"

// Cache is the on-disk token cache persisted atomically between rounds,
// sparing the daemon a refresh call on every restart (§4.2).
type Cache struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Expired reports whether the cached access token is unusable: either it
// has fully expired, or it is within the refresh skew window (§4.2,
// "refresh proactively when fewer than 60 seconds of lifetime remain").
func (c *Cache) Expired(now time.Time, skew time.Duration) bool {
	if c.AccessToken == "" {
		return true
	}
	return !now.Before(c.ExpiresAt.Add(-skew))
}

// loadCache reads the token cache file, returning a zero Cache (not an
// error) when the file does not yet exist — the first run has no cache.
func loadCache(path string) (*Cache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Cache{}, nil
		}
		return nil, errors.ErrFilesystem.WithCause(err)
	}
	var c Cache
	if err := json.Unmarshal(data, &c); err != nil {
		// A corrupt cache is not fatal: fall back to a fresh refresh.
		return &Cache{}, nil
	}
	return &c, nil
}

// saveCache persists the token cache atomically (invariant 6).
func saveCache(path string, c *Cache) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.ErrInternal.WithCause(err)
	}
	if err := paths.AtomicWriteFile(path, data, 0o600); err != nil {
		return errors.ErrFilesystem.WithCause(err)
	}
	return nil
}

// cachePath builds the token cache path under outputDir/data/.
func cachePath(outputDir string) string {
	return filepath.Join(outputDir, "data", CacheFileName)
}

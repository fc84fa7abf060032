package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/corvidae/pixback/internal/common/paths"
)

// LocalBackend mirrors artifacts to a second directory on the local
// filesystem — mainly useful for testing the mirror path without a real
// S3-compatible endpoint.
type LocalBackend struct {
	basePath string
}

// NewLocal creates a local mirror backend rooted at basePath.
func NewLocal(basePath string) (*LocalBackend, error) {
	basePath = paths.Expand(basePath)
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create mirror directory %s: %w", basePath, err)
	}
	return &LocalBackend{basePath: basePath}, nil
}

func (b *LocalBackend) fullPath(key string) string {
	clean := filepath.Clean("/" + key)
	return filepath.Join(b.basePath, strings.TrimPrefix(clean, "/"))
}

// Upload implements Backend.
func (b *LocalBackend) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	dst := b.fullPath(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create mirror directory for %s: %w", key, err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create mirror file %s: %w", dst, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, reader); err != nil {
		os.Remove(dst)
		return fmt.Errorf("write mirror file %s: %w", dst, err)
	}
	return nil
}

// Type implements Backend.
func (b *LocalBackend) Type() string { return "local" }

// Location implements Backend.
func (b *LocalBackend) Location() string { return b.basePath }

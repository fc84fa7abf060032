// Package storage provides the optional remote mirror backend: after the
// Downloader (C6) writes an artifact locally, it may push a copy to a
// configured S3-compatible bucket. The core archive never reads back
// through this interface — the local filesystem is always authoritative.
package storage

import (
	"context"
	"io"
)

// Backend mirrors a finished local artifact to a remote location, keyed by
// the same relative path used under output_dir (e.g. "img/123/123.jpg").
type Backend interface {
	// Upload pushes data to key. size is advisory; 0 means unknown.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Type returns a short backend identifier, used in logs and status.
	Type() string

	// Location returns a human-readable description of where the backend
	// points, used in startup logging.
	Location() string
}

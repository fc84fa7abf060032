package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalBackend_UploadWritesFileUnderKey(t *testing.T) {
	base := t.TempDir()
	b, err := NewLocal(base)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	content := []byte("artifact-bytes")
	if err := b.Upload(context.Background(), "img/42/42.jpg", bytes.NewReader(content), int64(len(content)), "image/jpeg"); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(base, "img", "42", "42.jpg"))
	if err != nil {
		t.Fatalf("read mirrored file: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("expected mirrored content %q, got %q", content, got)
	}
}

func TestLocalBackend_UploadCreatesNestedDirectories(t *testing.T) {
	base := t.TempDir()
	b, err := NewLocal(base)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	if err := b.Upload(context.Background(), "a/b/c/d.bin", bytes.NewReader([]byte("x")), 1, ""); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "a", "b", "c", "d.bin")); err != nil {
		t.Errorf("expected nested directories to be created: %v", err)
	}
}

func TestLocalBackend_TypeAndLocation(t *testing.T) {
	base := t.TempDir()
	b, err := NewLocal(base)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	if b.Type() != "local" {
		t.Errorf("expected type %q, got %q", "local", b.Type())
	}
	if b.Location() != base {
		t.Errorf("expected location %q, got %q", base, b.Location())
	}
}

func TestLocalBackend_FullPathRejectsEscapingTraversal(t *testing.T) {
	base := t.TempDir()
	b, err := NewLocal(base)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	// A key containing "../" must still resolve under base, never above
	// it: fullPath anchors the key at "/" before joining.
	got := b.fullPath("../../etc/passwd")
	if !strings.HasPrefix(got, base) {
		t.Errorf("expected resolved path to stay under %s, got %s", base, got)
	}
}

func TestNewS3_BuildsClientWithoutNetworkCall(t *testing.T) {
	backend, err := NewS3(S3Config{Bucket: "my-bucket", Region: "us-east-1"})
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}
	if backend.Type() != "s3" {
		t.Errorf("expected type %q, got %q", "s3", backend.Type())
	}
	if backend.Location() != "my-bucket" {
		t.Errorf("expected location %q, got %q", "my-bucket", backend.Location())
	}
}

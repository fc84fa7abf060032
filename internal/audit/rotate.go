package audit

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
)

// compressRetired walks dir for uncompressed daily audit files whose date
// is older than retentionDays and replaces each with an xz-compressed
// copy: router flash storage is scarce, so old files are compressed
// rather than deleted outright. Failures are swallowed rather than
// surfaced — a rollover that can't compress one old file still must not
// block today's write.
func compressRetired(dir string, now time.Time, retentionDays int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	cutoff := now.AddDate(0, 0, -retentionDays)

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "pixiv-backup-") || !strings.HasSuffix(name, ".log") {
			continue
		}
		day := strings.TrimSuffix(strings.TrimPrefix(name, "pixiv-backup-"), ".log")
		fileDate, err := time.Parse(dateLayout, day)
		if err != nil || fileDate.After(cutoff) {
			continue
		}
		_ = compressFile(filepath.Join(dir, name))
	}
}

func compressFile(path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(path + ".xz")
	if err != nil {
		return err
	}

	w, err := xz.NewWriter(out)
	if err != nil {
		out.Close()
		os.Remove(path + ".xz")
		return err
	}
	if _, err := io.Copy(w, in); err != nil {
		w.Close()
		out.Close()
		os.Remove(path + ".xz")
		return err
	}
	if err := w.Close(); err != nil {
		out.Close()
		os.Remove(path + ".xz")
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(path + ".xz")
		return err
	}

	return os.Remove(path)
}

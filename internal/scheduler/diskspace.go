package scheduler

import (
	"syscall"

	"github.com/corvidae/pixback/internal/common/errors"
)

// minFreeBytes is the headroom required on the output filesystem before a
// round is allowed to start draining the queue: catch ENOSPC before a
// partial artifact rather than after one.
const minFreeBytes = 100 * 1024 * 1024

// checkDiskSpace statfs's outputDir and refuses to proceed when free
// space is below minFreeBytes. Grounded on a plain syscall.Statfs probe
// rather than gopsutil, since gopsutil itself never appears in the
// retrieved corpus (see DESIGN.md).
func checkDiskSpace(outputDir string) error {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(outputDir, &stat); err != nil {
		return errors.ErrFilesystem.WithCause(err)
	}

	free := stat.Bavail * uint64(stat.Bsize)
	if free < minFreeBytes {
		return errors.ErrDiskFull.WithMessagef(
			"only %d bytes free on %s, need at least %d", free, outputDir, minFreeBytes)
	}
	return nil
}

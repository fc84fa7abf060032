package scheduler

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/corvidae/pixback/internal/common/errors"
	"github.com/corvidae/pixback/internal/common/paths"
)

// pidFileName is the well-known PID lock file under output_dir/data/
// (§6.1, grounded on the PID-lock pattern in the chainwatch daemon).
const pidFileName = "pixback.pid"

func pidPath(outputDir string) string {
	return filepath.Join(outputDir, "data", pidFileName)
}

// acquirePIDLock refuses to start a second daemon instance against the
// same output directory. A PID file left behind by a process that is no
// longer alive is treated as stale and silently reclaimed.
func acquirePIDLock(path string) error {
	if data, err := os.ReadFile(path); err == nil {
		if pid, convErr := strconv.Atoi(strings.TrimSpace(string(data))); convErr == nil {
			if process, findErr := os.FindProcess(pid); findErr == nil {
				if sigErr := process.Signal(syscall.Signal(0)); sigErr == nil {
					return errors.ErrInternal.WithMessagef("another pixbackd instance is already running (pid %d)", pid)
				}
			}
		}
		_ = os.Remove(path)
	}

	return paths.AtomicWriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600)
}

func releasePIDLock(path string) {
	_ = os.Remove(path)
}

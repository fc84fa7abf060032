// Package paths provides path manipulation and atomic-write helpers shared
// by every component that persists durable JSON state to the output
// directory (queue, cursor, status, token cache).
package paths

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// Expand expands special path prefixes:
//   - ~ expands to the user's home directory
//   - environment variables are expanded via os.ExpandEnv
func Expand(path string) string {
	path = os.ExpandEnv(path)

	if strings.HasPrefix(path, "~/") {
		if usr, err := user.Current(); err == nil {
			return filepath.Join(usr.HomeDir, path[2:])
		}
	} else if path == "~" {
		if usr, err := user.Current(); err == nil {
			return usr.HomeDir
		}
	}

	return path
}

// EnsureDir ensures the parent directory of path exists.
func EnsureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

// EnsureDirPath ensures the given directory itself exists.
func EnsureDirPath(dirPath string) error {
	return os.MkdirAll(dirPath, 0o755)
}

// Exists returns true if the path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDir returns true if the path exists and is a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

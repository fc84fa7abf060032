package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Signal a running daemon to stop gracefully",
	Long: `Stop reads the PID lock file under output_dir/data/pixback.pid and
sends SIGTERM, which the running daemon's signal handler turns into a
graceful Scheduler.Stop().`,
	RunE: runStop,
}

func pidFilePath(dir string) string {
	return filepath.Join(dir, "data", "pixback.pid")
}

func readPID(dir string) (int, error) {
	data, err := os.ReadFile(pidFilePath(dir))
	if err != nil {
		return 0, fmt.Errorf("no running daemon found for %s: %w", dir, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("pid file is corrupt: %w", err)
	}
	return pid, nil
}

func runStop(cmd *cobra.Command, args []string) error {
	dir := outputDir()
	pid, err := readPID(dir)
	if err != nil {
		return err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal process %d: %w", pid, err)
	}

	fmt.Printf("sent SIGTERM to pixbackd (pid %d)\n", pid)
	return nil
}

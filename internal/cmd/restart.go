package cmd

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Stop a running daemon and start a new one in the background",
	RunE:  runRestart,
}

func runRestart(cmd *cobra.Command, args []string) error {
	dir := outputDir()

	if pid, err := readPID(dir); err == nil {
		if process, ferr := os.FindProcess(pid); ferr == nil {
			_ = process.Signal(syscall.SIGTERM)
			waitForPIDFileGone(pidFilePath(dir), 10*time.Second)
		}
	}

	daemonize = true
	defer func() { daemonize = false }()
	return runStart(cmd, args)
}

func waitForPIDFileGone(path string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	fmt.Fprintln(os.Stderr, "warning: previous daemon's PID file did not clear before restarting")
}

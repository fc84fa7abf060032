package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/corvidae/pixback/internal/common/cliutil"
	"github.com/corvidae/pixback/internal/scheduler"
)

var (
	forceRunOnStart bool
	daemonize       bool
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the backup daemon",
	Long: `Start runs the scheduler loop until a SIGINT/SIGTERM is received
or an unrecoverable startup error occurs. With --daemon it forks into the
background and returns once the child has acquired its PID lock.`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVar(&forceRunOnStart, "force-run", false,
		"Drop the force-trigger sentinel immediately so the first wait, if any, is skipped")
	startCmd.Flags().BoolVar(&daemonize, "daemon", false,
		"Fork into the background instead of running in the foreground")
}

func runStart(cmd *cobra.Command, args []string) error {
	dir := outputDir()

	if daemonize {
		return startDaemonized(dir)
	}

	log := cliutil.NewLogger("pixbackd")
	sched := scheduler.New(dir, log)

	if forceRunOnStart {
		sentinel := scheduler.SentinelPath(dir)
		_ = os.MkdirAll(filepath.Dir(sentinel), 0o755)
		_ = os.WriteFile(sentinel, nil, 0o644)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sig
		log.Info("received signal, stopping", "signal", s)
		sched.Stop()
	}()

	log.Info("pixbackd starting", "output_dir", dir)
	if err := sched.Run(ctx); err != nil {
		log.Error("scheduler exited with a startup-fatal error", "error", err)
		return err
	}
	log.Info("pixbackd stopped")
	return nil
}

// startDaemonized re-execs the current binary without --daemon, detached
// from the controlling terminal, and waits for the child to either
// acquire its PID lock (success) or exit early (startup-fatal config
// error surfaced to the caller instead of silently backgrounding).
func startDaemonized(dir string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable path: %w", err)
	}

	// Built explicitly (never reused from os.Args) so that `restart`,
	// which reaches this function without "start" ever having been
	// parsed from the command line, forks the right subcommand instead
	// of re-execing itself as "restart" in a loop.
	childArgs := []string{"start", "--output-dir", dir,
		"--log-output", viper.GetString("log.output"),
		"--log-level", viper.GetString("log.level"),
	}
	if cfgFile != "" {
		childArgs = append(childArgs, "--config", cfgFile)
	}
	if forceRunOnStart {
		childArgs = append(childArgs, "--force-run")
	}

	c := exec.Command(exe, childArgs...)
	c.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	c.Stdin = nil
	c.Stdout = nil
	c.Stderr = nil

	if err := c.Start(); err != nil {
		return fmt.Errorf("fork daemon: %w", err)
	}

	pidPath := pidFilePath(dir)
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(pidPath); err == nil {
			fmt.Printf("pixbackd started in the background (pid %d)\n", c.Process.Pid)
			return nil
		}
		if exited, _ := childExited(c); exited {
			return fmt.Errorf("daemon exited immediately during startup; check logs")
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("timed out waiting for daemon to acquire its PID lock")
}

// childExited reports whether the forked process has already exited,
// without blocking — Process.Wait would block until it exits, which
// startDaemonized can't afford while polling for the PID lock.
func childExited(c *exec.Cmd) (bool, error) {
	if c.ProcessState != nil {
		return true, nil
	}
	err := c.Process.Signal(syscall.Signal(0))
	return err != nil, nil
}

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	logLines    int
	logNoFollow bool
	logFile     bool
	logSyslog   bool
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the daemon's audit log",
	Long: `Log prints the tail of today's audit file (logs/pixiv-backup-
YYYYMMDD.log) and, unless --no-follow is given, keeps polling for new
lines the way "tail -f" would. --syslog instead tails the process's
journald entries (identifier "pixbackd") via journalctl; --file is the
default and is mutually exclusive with --syslog.`,
	RunE: runLog,
}

func init() {
	logCmd.Flags().IntVarP(&logLines, "lines", "n", 20, "Number of trailing lines to print initially")
	logCmd.Flags().BoolVar(&logNoFollow, "no-follow", false, "Print the tail once and exit instead of following")
	logCmd.Flags().BoolVar(&logFile, "file", false, "Tail the audit log file (default)")
	logCmd.Flags().BoolVar(&logSyslog, "syslog", false, "Tail journald entries instead of the audit log file")
	logCmd.MarkFlagsMutuallyExclusive("file", "syslog")
}

// latestAuditFile finds the most recent logs/pixiv-backup-*.log file,
// preferring an uncompressed file over a rolled-over .xz one.
func latestAuditFile(dir string) (string, error) {
	logsDir := filepath.Join(dir, "logs")
	entries, err := os.ReadDir(logsDir)
	if err != nil {
		return "", fmt.Errorf("no audit logs found under %s: %w", logsDir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "pixiv-backup-") && strings.HasSuffix(e.Name(), ".log") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no audit logs found under %s", logsDir)
	}
	sort.Strings(names)
	return filepath.Join(logsDir, names[len(names)-1]), nil
}

// printFollowHint tells an interactive user how to stop following,
// since a backgrounded or piped invocation (the common case for this
// command) has no one to read it.
func printFollowHint() {
	if !logNoFollow && term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "following log output, press Ctrl+C to stop")
	}
}

func runLog(cmd *cobra.Command, args []string) error {
	if logSyslog {
		return runLogSyslog()
	}

	path, err := latestAuditFile(outputDir())
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	lines, err := tailLines(f, logLines)
	if err != nil {
		return err
	}
	for _, l := range lines {
		fmt.Println(l)
	}

	if logNoFollow {
		return nil
	}
	printFollowHint()

	offset, err := f.Seek(0, os.SEEK_END)
	if err != nil {
		return err
	}
	for {
		time.Sleep(1 * time.Second)
		info, err := f.Stat()
		if err != nil {
			return err
		}
		if info.Size() < offset {
			// The file was rotated out from under us; nothing further
			// to follow in this handle.
			return nil
		}
		if info.Size() == offset {
			continue
		}
		if _, err := f.Seek(offset, os.SEEK_SET); err != nil {
			return err
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			fmt.Println(scanner.Text())
		}
		offset = info.Size()
	}
}

// runLogSyslog shells out to journalctl for the process's own journald
// entries (distinct from the file-based audit log), matching the
// identifier the logs package registers with systemd-cat.
func runLogSyslog() error {
	args := []string{"-t", "pixbackd", "-n", fmt.Sprintf("%d", logLines)}
	if !logNoFollow {
		args = append(args, "-f")
		printFollowHint()
	}
	c := exec.Command("journalctl", args...)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	return c.Run()
}

// tailLines reads the last n lines of f without assuming the whole file
// fits comfortably in memory for typical daily audit file sizes.
func tailLines(f *os.File, n int) ([]string, error) {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var buf []string
	for scanner.Scan() {
		buf = append(buf, scanner.Text())
		if len(buf) > n {
			buf = buf[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return buf, nil
}

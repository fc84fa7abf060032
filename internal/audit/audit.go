// Package audit implements the per-day Audit Log (§4.8): an
// append-only file independent of the process logger, since the daemon's
// own durable trail must outlive whatever rotation/retention policy
// journald applies to the process log.
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/corvidae/pixback/internal/common/errors"
	"github.com/google/uuid"
)

// ExternalActionLogger is the reserved logger name for structured
// externally-triggered events (§4.8: "downstream tooling can filter
// on logger name alone").
const ExternalActionLogger = "external-action"

const dateLayout = "20060102"

// Log is the audit file writer. One Log owns one logs/ directory and
// rolls to a new daily file (compressing retired ones) as calendar days
// pass.
type Log struct {
	dir           string
	retentionDays int

	mu   sync.Mutex
	day  string
	file *os.File
}

// New opens (or creates) today's audit file under outputDir/logs/.
func New(outputDir string, retentionDays int) (*Log, error) {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	l := &Log{dir: filepath.Join(outputDir, "logs"), retentionDays: retentionDays}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, errors.ErrFilesystem.WithCause(err)
	}
	if err := l.rollIfNeeded(time.Now().UTC()); err != nil {
		return nil, err
	}
	return l, nil
}

// Close flushes and closes the current day's file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *Log) pathForDay(day string) string {
	return filepath.Join(l.dir, fmt.Sprintf("pixiv-backup-%s.log", day))
}

// rollIfNeeded opens a new day's file when the calendar day has changed
// since the last write, closing the previous one and compressing any
// files that have aged past retentionDays.
func (l *Log) rollIfNeeded(now time.Time) error {
	day := now.Format(dateLayout)
	if l.file != nil && l.day == day {
		return nil
	}

	if l.file != nil {
		_ = l.file.Close()
	}

	f, err := os.OpenFile(l.pathForDay(day), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.ErrFilesystem.WithCause(err)
	}
	l.file = f
	l.day = day

	compressRetired(l.dir, now, l.retentionDays)
	return nil
}

// write appends one "TS - logger - LEVEL - message" line (§4.8).
func (l *Log) write(logger, level, message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now().UTC()
	if err := l.rollIfNeeded(now); err != nil {
		return err
	}

	line := fmt.Sprintf("%s - %s - %s - %s\n", now.Format(time.RFC3339), logger, level, message)
	if _, err := l.file.WriteString(line); err != nil {
		return errors.ErrFilesystem.WithCause(err)
	}
	return nil
}

// Info appends a line under the given logger name at INFO severity.
func (l *Log) Info(logger, message string) error {
	return l.write(logger, "INFO", message)
}

// Warn appends a line under the given logger name at WARN severity.
func (l *Log) Warn(logger, message string) error {
	return l.write(logger, "WARN", message)
}

// Error appends a line under the given logger name at ERROR severity.
func (l *Log) Error(logger, message string) error {
	return l.write(logger, "ERROR", message)
}

// ExternalAction records a structured externally-triggered event — repair
// tool / admin UI actions correlated against the archive's own
// timeline — under the reserved external-action logger name.
func (l *Log) ExternalAction(event, source, action, status, ip, ua, detail string) error {
	line := fmt.Sprintf("event=%s source=%s action=%s status=%s ip=%s ua=%s detail=%s id=%s",
		event, source, action, status, ip, ua, detail, uuid.NewString())
	return l.write(ExternalActionLogger, "INFO", line)
}

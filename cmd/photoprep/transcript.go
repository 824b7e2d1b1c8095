package main

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"photoprep/internal/logging"
)

// transcript is a toolchain output sink backed by a file in the log
// directory. The file is created on the first write, so invocations that
// never run a script leave no transcript behind.
type transcript struct {
	logDir        string
	retentionDays int
	logger        *slog.Logger
	now           func() time.Time

	mu     sync.Mutex
	file   *os.File
	failed bool
}

func newTranscript(logDir string, retentionDays int, logger *slog.Logger) *transcript {
	return &transcript{logDir: logDir, retentionDays: retentionDays, logger: logger, now: time.Now}
}

func (t *transcript) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file == nil && !t.failed {
		t.open()
	}
	if t.file == nil {
		return len(p), nil
	}
	if _, err := t.file.Write(p); err != nil {
		t.logger.Warn("toolchain transcript write failed", logging.Error(err))
		t.failed = true
		_ = t.file.Close()
		t.file = nil
	}
	return len(p), nil
}

func (t *transcript) open() {
	if t.logDir == "" {
		t.failed = true
		return
	}
	logging.CleanupOldLogs(t.logger, t.retentionDays, logging.RetentionTarget{
		Dir:     t.logDir,
		Pattern: logging.ToolLogPattern,
	})
	path := logging.ToolLogPath(t.logDir, t.now())
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.logger.Warn("toolchain transcript unavailable",
			logging.String("path", path),
			logging.Error(err),
		)
		t.failed = true
		return
	}
	t.file = file
}

func (t *transcript) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	return err
}

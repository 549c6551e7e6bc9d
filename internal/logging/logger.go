// Package logging provides structured logging for the workflow plugin using slog.
//
// Usage:
//
//	if err := logging.Init(cfg.LogDir, cfg.LogLevel); err != nil {
//	    // handle error
//	}
//	defer logging.Close()
//
//	ctx = logging.WithHook(ctx, "phase-guard")
//	ctx = logging.WithInvocation(ctx, uuid.NewString())
//
//	logging.Info(ctx, "edit allowed", slog.String("file", path))
//
// Output is JSON lines appended to <log dir>/workflow-plugin.log. Nothing is
// ever written to stdout: the MCP transport owns it in serve mode and hooks
// use it for user-facing diagnostics.
package logging

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogFileName is the log file created inside the log directory.
const LogFileName = "workflow-plugin.log"

var (
	logger       *slog.Logger
	logFile      *os.File
	logBufWriter *bufio.Writer

	// mu protects logger, logFile and logBufWriter
	mu sync.RWMutex
)

// Init opens <dir>/workflow-plugin.log for appending and installs a JSON
// logger at the given level. If the file cannot be created, logs go to
// stderr instead.
func Init(dir, level string) error {
	mu.Lock()
	defer mu.Unlock()

	closeLocked()

	lvl := parseLogLevel(level)
	if level != "" && !isValidLogLevel(level) {
		fmt.Fprintf(os.Stderr, "[workflow] Warning: invalid log level %q, defaulting to INFO\n", level)
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		logger = createLogger(os.Stderr, lvl)
		return nil
	}

	f, err := os.OpenFile(filepath.Join(dir, LogFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		logger = createLogger(os.Stderr, lvl)
		return nil
	}

	logFile = f
	logBufWriter = bufio.NewWriterSize(f, 8192)
	logger = createLogger(logBufWriter, lvl)
	return nil
}

// InitWriter installs a logger writing to w. Used by tests and by callers
// that already own an output stream.
func InitWriter(w io.Writer, level string) {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
	logger = createLogger(w, parseLogLevel(level))
}

// Close flushes and closes the log file. Safe to call multiple times.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
}

func closeLocked() {
	if logBufWriter != nil {
		_ = logBufWriter.Flush()
		logBufWriter = nil
	}
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

// getLogger returns the current logger, or slog's default if Init was
// never called.
func getLogger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if logger == nil {
		return slog.Default()
	}
	return logger
}

func createLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// parseLogLevel parses a log level string. Empty or invalid values yield INFO.
func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isValidLogLevel(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG", "INFO", "WARN", "WARNING", "ERROR", "":
		return true
	default:
		return false
	}
}

// Debug logs at DEBUG level with context values automatically extracted.
func Debug(ctx context.Context, msg string, attrs ...any) {
	log(ctx, slog.LevelDebug, msg, attrs...)
}

// Info logs at INFO level with context values automatically extracted.
func Info(ctx context.Context, msg string, attrs ...any) {
	log(ctx, slog.LevelInfo, msg, attrs...)
}

// Warn logs at WARN level with context values automatically extracted.
func Warn(ctx context.Context, msg string, attrs ...any) {
	log(ctx, slog.LevelWarn, msg, attrs...)
}

// Error logs at ERROR level with context values automatically extracted.
func Error(ctx context.Context, msg string, attrs ...any) {
	log(ctx, slog.LevelError, msg, attrs...)
}

// LogDuration logs msg with duration_ms measured from start. Meant for defer.
func LogDuration(ctx context.Context, level slog.Level, msg string, start time.Time, attrs ...any) {
	all := make([]any, 0, len(attrs)+1)
	all = append(all, slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	all = append(all, attrs...)
	log(ctx, level, msg, all...)
}

func log(ctx context.Context, level slog.Level, msg string, attrs ...any) {
	l := getLogger()

	var all []any
	for _, a := range attrsFromContext(ctx) {
		all = append(all, a)
	}
	all = append(all, attrs...)

	l.Log(context.Background(), level, msg, all...)
}

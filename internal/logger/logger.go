package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"fruitcounter/internal/config"
)

// LogFileName is the file written inside the configured log directory.
const LogFileName = "app.log"

// Logger provides leveled logging (info/warning/error) to a JSON log file
// and a human-readable console.
type Logger struct {
	zl     zerolog.Logger
	file   *os.File
	logDir string
	mu     sync.Mutex
}

// NewLogger creates a Logger and ensures the log directory exists.
func NewLogger(cfg *config.Config) (*Logger, error) {
	if err := os.MkdirAll(cfg.LogDirectory, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	file, err := os.OpenFile(filepath.Join(cfg.LogDirectory, LogFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05"}
	l := newWithWriter(zerolog.MultiLevelWriter(console, file), cfg.LogLevel)
	l.file = file
	l.logDir = cfg.LogDirectory
	return l, nil
}

// NewWriterLogger logs to w only. Used by tests and the CLI.
func NewWriterLogger(w io.Writer, level string) *Logger {
	return newWithWriter(w, level)
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func newWithWriter(w io.Writer, level string) *Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return &Logger{zl: zerolog.New(w).Level(lvl).With().Timestamp().Logger()}
}

// Zerolog exposes the underlying logger for structured call sites.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zl
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.zl.Info().Msgf(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.zl.Warn().Msgf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.zl.Error().Msgf(format, v...)
}

// LogPath returns the log file path, or "" when logging to a writer.
func (l *Logger) LogPath() string {
	if l.logDir == "" {
		return ""
	}
	return filepath.Join(l.logDir, LogFileName)
}

// CleanLogs truncates the log file.
func (l *Logger) CleanLogs() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	if err := l.file.Truncate(0); err != nil {
		l.Error("Error truncating log file: %v", err)
		return err
	}

	l.Info("Log file content has been cleared.")
	return nil
}

// Close closes the log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

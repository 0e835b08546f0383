package lottery

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// DefaultLogger implements Logger using standard log package
type DefaultLogger struct{}

// NewDefaultLogger creates a logger writing through the standard log package
func NewDefaultLogger() *DefaultLogger {
	return &DefaultLogger{}
}

// Info logs an info message
func (l *DefaultLogger) Info(msg string, args ...any) {
	log.Printf("[INFO] "+msg, args...)
}

// Error logs an error message
func (l *DefaultLogger) Error(msg string, args ...any) {
	log.Printf("[ERROR] "+msg, args...)
}

// Debug logs a debug message
func (l *DefaultLogger) Debug(msg string, args ...any) {
	log.Printf("[DEBUG] "+msg, args...)
}

// SilentLogger implements Logger interface but does not output any logs
// This is useful for testing environments where log output is not desired
type SilentLogger struct{}

// NewSilentLogger creates a new silent logger instance
func NewSilentLogger() *SilentLogger {
	return &SilentLogger{}
}

// Info does nothing (silent)
func (l *SilentLogger) Info(msg string, args ...any) {}

// Error does nothing (silent)
func (l *SilentLogger) Error(msg string, args ...any) {}

// Debug does nothing (silent)
func (l *SilentLogger) Debug(msg string, args ...any) {}

// SlogLogger adapts the printf-style Logger interface onto a log/slog logger
type SlogLogger struct {
	logger *slog.Logger
}

// LogOptions configures NewSlogLogger
type LogOptions struct {
	Level      string    // debug, info, warn, error
	Format     string    // tint or text
	Writer     io.Writer // default: os.Stdout
	TimeFormat string    // default: 15:04:05
}

// NewSlogLogger builds a slog backed Logger; the tint format renders colored console output
func NewSlogLogger(opts LogOptions) *SlogLogger {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stdout
	}
	timeFormat := opts.TimeFormat
	if timeFormat == "" {
		timeFormat = time.TimeOnly
	}
	level := ParseLogLevel(opts.Level)

	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "text":
		handler = slog.NewTextHandler(writer, &slog.HandlerOptions{Level: level})
	default:
		handler = tint.NewHandler(writer, &tint.Options{
			Level:      level,
			TimeFormat: timeFormat,
		})
	}

	return &SlogLogger{logger: slog.New(handler)}
}

// NewSlogLoggerFrom wraps an existing slog logger
func NewSlogLoggerFrom(logger *slog.Logger) *SlogLogger {
	return &SlogLogger{logger: logger}
}

// Slog exposes the underlying slog logger
func (l *SlogLogger) Slog() *slog.Logger { return l.logger }

// Info logs an info message
func (l *SlogLogger) Info(msg string, args ...any) {
	l.logger.Info(fmt.Sprintf(msg, args...))
}

// Error logs an error message
func (l *SlogLogger) Error(msg string, args ...any) {
	l.logger.Error(fmt.Sprintf(msg, args...))
}

// Debug logs a debug message
func (l *SlogLogger) Debug(msg string, args ...any) {
	l.logger.Debug(fmt.Sprintf(msg, args...))
}

// ParseLogLevel maps a level name onto slog.Level, defaulting to info
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Package telemetry sets up structured logging for the command line tools.
package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

// LogLevel reads the level from LOG_LEVEL: DEBUG, INFO, WARN or ERROR.
// Anything else means INFO.
func LogLevel() slog.Level {
	switch strings.ToUpper(os.Getenv("LOG_LEVEL")) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger returns a logger writing to w. LOG_FORMAT=json selects JSON
// output; the default is text, since these tools run in a terminal.
func NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: LogLevel()}

	var handler slog.Handler
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// NewRunID returns a fresh identifier for one replay.
func NewRunID() string {
	return uuid.NewString()
}

// WithRunID returns a logger that tags every record with run_id.
func WithRunID(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With("run_id", runID)
}

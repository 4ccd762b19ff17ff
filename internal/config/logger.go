package config

import (
	"io"
	"log/slog"
	"os"
)

// Logger builds the process logger from LOG_LEVEL / LOG_FORMAT.
func (c Config) Logger() *slog.Logger {
	return NewLogger(os.Stdout, c.LogFormat, c.LogLevel)
}

func NewLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

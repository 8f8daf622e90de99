package app

import (
	"io"
	"log/slog"
)

// logLevel parses the configured level name. Anything slog does not
// recognize falls back to info rather than failing the app.
func (c *Config) logLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// newLogger builds the app's isolated logger from its configuration. The
// process-global slog default is never touched.
func (c *Config) newLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.logLevel()}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

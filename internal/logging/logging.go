// Package logging builds the slog logger used by the lodi commands.
package logging

import (
	"fmt"
	"io"
	"log/slog"
)

// New returns a text logger writing to w at the given level name
// ("DEBUG", "INFO", "WARN", "ERROR").
func New(w io.Writer, logLevel string) (*slog.Logger, error) {
	level, err := parseLogLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("error parsing log level: %w", err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

func parseLogLevel(logLevel string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return slog.LevelError, err
	}
	return level, nil
}

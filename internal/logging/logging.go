// Package logging configures the application logger. The TUI owns the
// terminal, so logs go to a file under the data directory.
package logging

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// New opens (or creates) the log file under dataDir and returns a
// logger writing to it. When the file cannot be opened the returned
// logger discards everything; a broken log destination must never take
// the application down.
func New(dataDir string) zerolog.Logger {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return zerolog.Nop()
	}

	path := filepath.Join(dataDir, "buswatch.log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop()
	}

	return zerolog.New(file).With().Timestamp().Logger()
}

// Level parses a level name, defaulting to info.
func Level(name string) zerolog.Level {
	level, err := zerolog.ParseLevel(name)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// Describe returns the resolved log file path for display.
func Describe(dataDir string) string {
	return filepath.Join(dataDir, "buswatch.log")
}

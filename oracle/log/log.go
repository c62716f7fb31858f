// Package log builds the daemon's key-value loggers.
package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	tmlog "github.com/tendermint/tendermint/libs/log"
)

// Logger is the structured logger handed to every oracle component
type Logger = tmlog.Logger

const (
	FormatPlain = "plain"
	FormatJSON  = "json"
)

// New returns a logger writing to w, filtered at level (debug, info, error, none)
func New(w io.Writer, level, format string) (Logger, error) {
	var logger Logger
	switch format {
	case "", FormatPlain:
		logger = tmlog.NewTMLogger(tmlog.NewSyncWriter(w))
	case FormatJSON:
		logger = tmlog.NewTMJSONLogger(tmlog.NewSyncWriter(w))
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	if level == "" {
		level = "info"
	}

	option, err := tmlog.AllowLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	return tmlog.NewFilter(logger, option), nil
}

// NewNop returns a logger that discards everything
func NewNop() Logger {
	return tmlog.NewNopLogger()
}

// OpenFile creates <home>/logs/<binary>.<pid>.log
func OpenFile(home string) (*os.File, error) {
	if home == "" {
		osHome, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		home = filepath.Join(osHome, ".oracled")
	}

	dir := filepath.Join(home, "logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	name := fmt.Sprintf("%s.%d.log", filepath.Base(os.Args[0]), os.Getpid())
	file, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	return file, nil
}

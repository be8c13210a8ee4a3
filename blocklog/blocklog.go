// Package blocklog provides the structured logger shared by every package
// in the editor core. It wraps zerolog the way sidekick wires
// github.com/rs/zerolog/log: one process-wide logger, leveled helper
// functions, and chained field builders at call sites.
package blocklog

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu  sync.RWMutex
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
)

// SetOutput redirects the package logger, e.g. to a test buffer or a JSON
// sink in production instead of the default console writer.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	log = zerolog.New(w).With().Timestamp().Logger()
}

// SetLevel adjusts the minimum emitted level, e.g. zerolog.DebugLevel.
func SetLevel(level zerolog.Level) {
	mu.Lock()
	defer mu.Unlock()
	log = log.Level(level)
}

func logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Debug starts a debug-level event.
func Debug() *zerolog.Event { return logger().Debug() }

// Info starts an info-level event.
func Info() *zerolog.Event { return logger().Info() }

// Warn starts a warn-level event.
func Warn() *zerolog.Event { return logger().Warn() }

// Error starts an error-level event.
func Error() *zerolog.Event { return logger().Error() }

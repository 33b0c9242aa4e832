// Package logger implements the core Logger on zerolog.
package logger

import (
	corelogger "github.com/kilianp07/pdptw/core/logger"
)

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger = corelogger.NopLogger

// New returns a Logger for the given component, using the settings of the
// last Configure call.
func New(component string) Logger {
	return NewZerologLogger(component)
}

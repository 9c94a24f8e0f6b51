// Package telemetry defines the logging seam shared by server components.
package telemetry

import "log"

// Logger exposes the logging capabilities required by server components.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc adapts functions into the Logger interface.
type LoggerFunc func(format string, args ...any)

// Printf implements Logger for LoggerFunc.
func (f LoggerFunc) Printf(format string, args ...any) {
	if f == nil {
		return
	}
	f(format, args...)
}

// WrapLogger adapts a standard library logger to the Logger interface.
// A nil logger wraps log.Default.
func WrapLogger(logger *log.Logger) Logger {
	if logger == nil {
		logger = log.Default()
	}
	return &loggerAdapter{logger: logger}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return LoggerFunc(nil)
}

type loggerAdapter struct {
	logger *log.Logger
}

func (l *loggerAdapter) Printf(format string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Printf(format, args...)
}

// Package logging provides loggers scoped to a context and a module name.
package logging

import "context"

// Logger is the log destination used throughout the daemon. It is
// deliberately compatible with *zap.SugaredLogger.
type Logger interface {
	Debugf(msg string, args ...interface{})
	Debugw(msg string, keyValuePairs ...interface{})
	Infof(msg string, args ...interface{})
	Warnf(msg string, args ...interface{})
	Errorf(msg string, args ...interface{})
}

// LoggerForModuleFunc creates loggers for a given module name.
type LoggerForModuleFunc func(module string) Logger

// GetContextLoggerFunc returns a function that returns a logger for the
// given module based on the provided context.
func GetContextLoggerFunc(module string) func(ctx context.Context) Logger {
	return func(ctx context.Context) Logger {
		if l, ok := ctx.Value(loggerKey).(LoggerForModuleFunc); ok {
			return l(module)
		}

		return nullLogger{}
	}
}

package logging

import "go.uber.org/zap"

// Zap returns a LoggerForModuleFunc backed by the provided zap logger,
// with each module logger named after its module.
func Zap(base *zap.SugaredLogger) LoggerForModuleFunc {
	return func(module string) Logger {
		return base.Named(module)
	}
}

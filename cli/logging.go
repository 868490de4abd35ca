package cli

import (
	"context"
	"os"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/penguin-xe/android-system-vold/logging"
)

var log = logging.GetContextLoggerFunc("cli")

var (
	logLevel     = app.Flag("log-level", "Console log level.").Default("info").Enum("debug", "info", "warning", "error")
	disableColor = app.Flag("disable-color", "Disable color output.").Envar("VOLD_DISABLE_COLOR").Bool()
)

// rootContext returns the context all commands run under, carrying the
// console logger.
func rootContext() context.Context {
	return logging.WithLogger(context.Background(), logging.Zap(consoleLogger()))
}

func consoleLogger() *zap.SugaredLogger {
	if *disableColor {
		color.NoColor = true
	}

	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder

	if color.NoColor {
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(ec),
		zapcore.Lock(zapcore.AddSync(os.Stderr)),
		consoleLogLevel(),
	)

	return zap.New(core).Sugar()
}

func consoleLogLevel() zapcore.Level {
	switch *logLevel {
	case "debug":
		return zapcore.DebugLevel
	case "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

package monitoring

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logger is single instance of logger
// default logger do nothing
var logger = zap.NewNop()

// sugaredLogger extend version on zap.Logger that allow
// using sting format functions
var sugaredLogger = logger.Sugar()

// RegisterLogger new logger as main logger for service
// RegisterLogger is NOT THREAD SAFE
func RegisterLogger(l *zap.Logger) {
	logger = l
	sugaredLogger = l.Sugar()
}

// Log returns correct registered logger
func Log() *zap.Logger {
	return logger
}

// Logs return sugared zap logger
func Logs() *zap.SugaredLogger {
	return sugaredLogger
}

// NewLogger creates zap logger for given level name
// "dev" gives development logger, "debug" production logger with debug level, everything else production logger
func NewLogger(level string) (*zap.Logger, error) {
	switch level {
	case "dev":
		return zap.NewDevelopment()
	case "debug":
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		return cfg.Build()
	default:
		return zap.NewProduction()
	}
}

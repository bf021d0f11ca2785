// Package logger builds the zap loggers used across zenkai.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func level(debug bool) zap.AtomicLevel {
	if debug {
		return zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zap.NewAtomicLevelAt(zapcore.WarnLevel)
}

// New creates a console logger writing to stderr. Only warnings and errors
// are shown unless debug is set.
func New(debug bool) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.Level = level(debug)
	config.OutputPaths = []string{"stderr"}
	config.DisableStacktrace = !debug
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if !debug {
		config.EncoderConfig.TimeKey = zapcore.OmitKey
		config.EncoderConfig.CallerKey = zapcore.OmitKey
	}
	return config.Build()
}

// NewJSON creates a JSON logger for running zenkai from hooks and cron jobs.
func NewJSON(debug bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Level = level(debug)
	config.OutputPaths = []string{"stderr"}
	config.EncoderConfig = zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	return config.Build()
}

// Sync flushes any buffered log entries. It is safe on a nil logger.
func Sync(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}
	return logger.Sync()
}

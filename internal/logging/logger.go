// Package logging builds the zap loggers every binary shares.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level can be raised or lowered at run time.
var Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// New builds the process logger: console encoding in dev, JSON in prod.
func New(env string) *zap.Logger {
	cfg := zap.Config{
		Level:            Level,
		Development:      env != "prod",
		Encoding:         "console",
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "name",
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
	}
	if env == "prod" {
		cfg.Encoding = "json"
	}
	return zap.Must(cfg.Build())
}

package utils

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide structured logger, passed by pointer through
// the composition graph so services and workers share one sink.
type Logger struct {
	sugar *zap.SugaredLogger
}

func NewLogger() *Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		z = zap.NewNop()
	}
	return &Logger{sugar: z.Sugar()}
}

// NewNopLogger returns a logger that discards everything. Used by tests.
func NewNopLogger() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

func (l *Logger) Infof(format string, args ...any) {
	if l == nil || l.sugar == nil {
		return
	}
	l.sugar.Infof(format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	if l == nil || l.sugar == nil {
		return
	}
	l.sugar.Warnf(format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	if l == nil || l.sugar == nil {
		return
	}
	l.sugar.Errorf(format, args...)
}

func (l *Logger) Sync() {
	if l == nil || l.sugar == nil {
		return
	}
	_ = l.sugar.Sync()
}

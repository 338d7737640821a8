// Package logging configures the process-wide zap logger.
package logging

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey struct{}

// New builds a logger for the given environment and level.
// "production" yields JSON output; anything else a console logger.
func New(env, level string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level.SetLevel(lvl)

	return cfg.Build()
}

// Init builds the logger and installs it as the zap global
func Init(env, level string) (*zap.Logger, error) {
	logger, err := New(env, level)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	logger.Info("Logger initialized", zap.String("level", logger.Level().String()), zap.String("env", env))
	return logger, nil
}

// WithContext stores a request-scoped logger in ctx
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the request-scoped logger, or the global one
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return logger
	}
	return zap.L()
}

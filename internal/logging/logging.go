// Package logging builds the process-wide zap logger used by every
// component. Field names are camelCase throughout (batchId, goalNumber,
// bankId, ...) so log lines stay greppable across packages.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production JSON logger, or a colorized console logger when
// env is "dev" — mirrors the two zap.NewProduction/zap.NewDevelopment
// entry points used across the reference services.
func New(env string) (*zap.Logger, error) {
	if env == "dev" {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// MustNew builds a logger from the LOG_ENV environment variable, falling
// back to production encoding, and exits the process if zap itself cannot
// be constructed (this should only happen on a malformed config).
func MustNew() *zap.Logger {
	logger, err := New(os.Getenv("LOG_ENV"))
	if err != nil {
		panic("logging: failed to build logger: " + err.Error())
	}
	return logger
}

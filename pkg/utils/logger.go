package utils

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevelEnv is the environment variable read when LoggerOptions.FilterFromEnv is set.
const LogLevelEnv = "LOG_LEVEL"

// LoggerOptions configures the process logger.
//
// Verbose selects the development encoder at debug level, otherwise the
// production JSON encoder at info level is used. When FilterFromEnv is set the
// level is taken from EnvVar (LogLevelEnv if empty); an unset or unparsable
// value falls back to the default level.
type LoggerOptions struct {
	Verbose       bool
	FilterFromEnv bool
	EnvVar        string
}

func (o LoggerOptions) envVar() string {
	if o.EnvVar == "" {
		return LogLevelEnv
	}
	return o.EnvVar
}

// NewSugaredLogger creates the process logger. It is meant to be called once at
// startup and the result passed down explicitly.
func NewSugaredLogger(opts LoggerOptions) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	if opts.Verbose {
		cfg = zap.NewDevelopmentConfig()
	}

	if opts.FilterFromEnv {
		if lvl, ok := levelFromEnv(opts.envVar()); ok {
			cfg.Level = zap.NewAtomicLevelAt(lvl)
		}
	}

	l, err := cfg.Build()
	if err != nil {
		if opts.Verbose {
			return nil, fmt.Errorf("failed to create development logger: %w", err)
		}
		return nil, fmt.Errorf("failed to create production logger: %w", err)
	}
	return l.Sugar(), nil
}

func levelFromEnv(key string) (zapcore.Level, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return zapcore.InfoLevel, false
	}
	lvl, err := zapcore.ParseLevel(raw)
	if err != nil {
		return zapcore.InfoLevel, false
	}
	return lvl, true
}

// Package logger builds the zap logger shared by the lustrezfs commands.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	ModeDev        = "dev"
	ModeProduction = "production"
)

// New returns a logger for mode. "dev" selects zap's development config;
// anything else selects the production config. Both write to stderr.
// verbose enables debug output.
func New(mode string, verbose bool) (*zap.Logger, error) {
	var cfg zap.Config
	if mode == ModeDev {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Sampling = nil
	}

	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Level = zap.NewAtomicLevelAt(Level(verbose))

	return cfg.Build()
}

// Level maps the verbose switch to a zap level
func Level(verbose bool) zapcore.Level {
	if verbose {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

package utils

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the structured application logger, SLog its sugared twin.
// Both are no-ops until InitLogger runs so packages can log from tests.
var (
	Log  = zap.NewNop()
	SLog = Log.Sugar()
)

// InitLogger builds the global logger. env "production" selects JSON output;
// anything else gets the colored development encoder.
func InitLogger(env, level string) error {
	var cfg zap.Config
	if strings.EqualFold(env, "production") {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return err
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	logger, err := cfg.Build()
	if err != nil {
		return err
	}
	Log = logger
	SLog = logger.Sugar()
	zap.ReplaceGlobals(logger)
	return nil
}

// SyncLogger flushes buffered log entries; call it before exit.
func SyncLogger() {
	_ = Log.Sync()
}

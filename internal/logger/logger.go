package credits

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// debug - development логгер, иначе production с уровнем level
func New(level string) (*zap.Logger, error) {
	if level == "" || level == "debug" {
		return zap.NewDevelopment()
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

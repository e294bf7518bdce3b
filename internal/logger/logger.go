package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Development bool
	Level       string
}

func New(cfg Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}

	if level := strings.TrimSpace(cfg.Level); level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		zcfg.Level = zap.NewAtomicLevelAt(parsed)
	}

	return zcfg.Build()
}

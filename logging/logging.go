// Package logging builds the process logger: zap to stderr, optionally tee'd to
// a size-rotated file.
package logging

import (
	"fmt"
	"os"

	"github.com/kasuganosora/battleevent/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a logger from cfg. Debug mode uses the development encoder and
// debug level; otherwise JSON at cfg.Level.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("logging: invalid level %q: %w", cfg.Level, err)
		}
	}

	var encCfg zapcore.EncoderConfig
	if cfg.Debug {
		level = zapcore.DebugLevel
		encCfg = zap.NewDevelopmentEncoderConfig()
	} else {
		encCfg = zap.NewProductionEncoderConfig()
	}
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var stderrEnc zapcore.Encoder
	if cfg.Debug {
		stderrEnc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		stderrEnc = zapcore.NewJSONEncoder(encCfg)
	}
	cores := []zapcore.Core{
		zapcore.NewCore(stderrEnc, zapcore.Lock(os.Stderr), level),
	}

	if cfg.File != "" {
		// file output is always JSON
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encCfg),
			zapcore.AddSync(FileWriter(cfg)),
			level,
		))
	}

	opts := []zap.Option{zap.AddCaller()}
	if cfg.Debug {
		opts = append(opts, zap.Development())
	}
	return zap.New(zapcore.NewTee(cores...), opts...), nil
}

// FileWriter returns the rotating writer for cfg.File.
func FileWriter(cfg config.LogConfig) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		LocalTime:  true,
	}
}

// Package logging builds the process-wide zap logger.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Dir           string
	MaxSizeMB     int
	RetentionDays int
	Level         zapcore.Level
}

// New returns a JSON logger writing to stdout and to a rotating file under
// opts.Dir. When the directory cannot be created the file sink is skipped.
func New(opts Options) (*zap.Logger, func(), error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encCfg)

	level := zap.NewAtomicLevelAt(opts.Level)
	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level),
	}

	var rotator *lumberjack.Logger
	var dirErr error
	if opts.Dir != "" {
		if dirErr = os.MkdirAll(opts.Dir, 0o755); dirErr == nil {
			rotator = &lumberjack.Logger{
				Filename: filepath.Join(opts.Dir, "app.log"),
				MaxSize:  positive(opts.MaxSizeMB, 50),
				MaxAge:   positive(opts.RetentionDays, 7),
				Compress: true,
			}
			cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), level))
		}
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	cleanup := func() {
		_ = logger.Sync()
		if rotator != nil {
			_ = rotator.Close()
		}
	}
	return logger, cleanup, dirErr
}

func positive(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

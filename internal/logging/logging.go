// Package logging builds the process-wide zap logger.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation settings for the log file.
const (
	maxSizeMB  = 10
	maxBackups = 5
	maxAgeDays = 30
)

// New returns a logger that writes JSON to a rotated file at Info and above,
// and to stdout at Debug and above. Development builds get a human readable
// console encoder on stdout. An empty path disables the file sink.
func New(logFilePath string, production bool) *zap.Logger {
	encCfg := encoderConfig()

	stdoutEncoder := zapcore.NewJSONEncoder(encCfg)
	stdoutLevel := zapcore.InfoLevel
	if !production {
		devConfig := encCfg
		devConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		stdoutEncoder = zapcore.NewConsoleEncoder(devConfig)
		stdoutLevel = zapcore.DebugLevel
	}

	cores := []zapcore.Core{
		zapcore.NewCore(stdoutEncoder, zapcore.Lock(os.Stdout), stdoutLevel),
	}
	if logFilePath != "" {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encCfg),
			zapcore.AddSync(rotator(logFilePath)),
			zapcore.InfoLevel,
		))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}

func rotator(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.MessageKey = "message"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

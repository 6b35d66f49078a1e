package node

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig configures the default zap-backed ErrorSink. LogFile empty means stderr
// only; when set, output is additionally written through a rotating lumberjack
// writer.
type LogConfig struct {
	LogFile    string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// NewZapErrorSink builds the default ErrorSink: a structured zap logger, optionally
// writing through a lumberjack rotating file in addition to stderr. The returned sink
// is a plain closure over the logger — it carries no reference back into any
// Validator, satisfying §9's "must not call back into the Validator" requirement by
// construction.
func NewZapErrorSink(cfg LogConfig) (ErrorSink, func() error, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stderr)), zap.InfoLevel),
	}
	if cfg.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 28),
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), zap.InfoLevel))
	}

	logger := zap.New(zapcore.NewTee(cores...))

	sink := func(kind ErrorCode, message string) {
		logger.Info("node event", zap.String("kind", string(kind)), zap.String("message", message))
	}
	return sink, logger.Sync, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

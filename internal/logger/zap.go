package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap's SugaredLogger.
type Logger struct {
	*zap.SugaredLogger
}

const defaultZapLevel = zapcore.DebugLevel

// The control loop logs from one goroutine and the HTTP side from many,
// so the writer is locked.
var stdout = zapcore.Lock(os.Stdout)

func toZapLevel(levelStr string) zapcore.Level {
	switch levelStr {
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return defaultZapLevel
	}
}

func encoderConfig(format string) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.RFC3339TimeEncoder
	cfg.NameKey = "component"
	if format == FormatJSON {
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		cfg.EncodeDuration = zapcore.MillisDurationEncoder
	} else {
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.EncodeDuration = zapcore.StringDurationEncoder
	}
	return cfg
}

// newCore builds a console core, or a JSON one for log shippers.
func newCore(cfg Config, ws zapcore.WriteSyncer) zapcore.Core {
	var encoder zapcore.Encoder
	if cfg.Format == FormatJSON {
		encoder = zapcore.NewJSONEncoder(encoderConfig(FormatJSON))
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig(FormatConsole))
	}
	return zapcore.NewCore(encoder, ws, zap.NewAtomicLevelAt(toZapLevel(cfg.Level)))
}

func newZapLogger(cfg Config, ws zapcore.WriteSyncer) *Logger {
	return &Logger{
		SugaredLogger: zap.New(newCore(cfg, ws)).Sugar(),
	}
}

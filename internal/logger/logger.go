// Package logger wraps zap for the whole process.
package logger

import (
	"sync"

	"go.uber.org/zap"
)

// Log levels accepted in config (log.level).
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// Output formats accepted in config (log.format).
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config is the log section of the service config.
type Config struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var (
	globalLogger *Logger
	once         sync.Once
)

// Get returns the process-wide logger. The first call fixes the settings;
// later calls return the same instance.
func Get(cfg Config) *Logger {
	once.Do(func() {
		globalLogger = newZapLogger(cfg, stdout)
	})
	return globalLogger
}

// Nop returns a logger that discards everything. Used by tests and by
// components constructed without a logger.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// Named returns a child logger tagged with the component name.
func (l *Logger) Named(component string) *Logger {
	if l == nil {
		return Nop()
	}
	return &Logger{SugaredLogger: l.SugaredLogger.Named(component)}
}

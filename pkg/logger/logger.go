// Package logger provides the process-wide zerolog logger used by qwenlink.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string `json:"level" mapstructure:"level" yaml:"level"`    // debug, info, warn, error
	Format string `json:"format" mapstructure:"format" yaml:"format"` // console, json
	File   string `json:"file" mapstructure:"file" yaml:"file"`       // optional log file, appended
}

var (
	globalLogger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	logFile      *os.File
	mu           sync.RWMutex
)

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Init configures the global logger. Calling it again replaces the previous
// output and closes a previously opened log file.
func Init(config LogConfig) error {
	return InitWithWriter(config, os.Stderr)
}

// InitWithWriter is Init with an explicit primary writer instead of stderr.
func InitWithWriter(config LogConfig, out io.Writer) error {
	mu.Lock()
	defer mu.Unlock()

	zerolog.SetGlobalLevel(parseLevel(config.Level))

	primary := out
	if strings.EqualFold(config.Format, "console") {
		primary = zerolog.ConsoleWriter{Out: out, TimeFormat: "2006-01-02T15:04:05-07:00"}
	}

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	output := primary
	if config.File != "" {
		f, err := os.OpenFile(config.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("open log file %s: %w", config.File, err)
		}
		logFile = f
		output = zerolog.MultiLevelWriter(primary, f)
	}

	globalLogger = zerolog.New(output).With().Timestamp().Logger()
	return nil
}

// SetLevel changes the global level without touching outputs. Used on config reload.
func SetLevel(level string) {
	zerolog.SetGlobalLevel(parseLevel(level))
}

// Get returns the global logger.
func Get() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := globalLogger
	return &l
}

// Component returns a child logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return Get().With().Str("component", name).Logger()
}

// Close closes the log file if one was opened.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// Debug returns a debug level event.
func Debug() *zerolog.Event { return Get().Debug() }

// Info returns an info level event.
func Info() *zerolog.Event { return Get().Info() }

// Warn returns a warn level event.
func Warn() *zerolog.Event { return Get().Warn() }

// Error returns an error level event.
func Error() *zerolog.Event { return Get().Error() }

// Fatal returns a fatal level event.
func Fatal() *zerolog.Event { return Get().Fatal() }

// Infof logs a formatted info message.
func Infof(format string, args ...any) {
	Get().Info().Msgf(format, args...)
}

// Warnf logs a formatted warn message.
func Warnf(format string, args ...any) {
	Get().Warn().Msgf(format, args...)
}

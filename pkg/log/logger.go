// Package log wraps zerolog behind the level-name API the rest of the
// gateway calls against: Debug/Info/Warn/Error/Fatal plus a
// package-level default logger. Output is colorized when attached to
// a terminal, structured JSON otherwise.
package log

import (
	"errors"
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// log level
const (
	LevelFatal = iota + 1
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
)

var logger = newLogger(LevelInfo, "amfgw")

// Logger is a leveled, prefixed wrapper around a zerolog.Logger.
type Logger struct {
	zl    zerolog.Logger
	level uint8
}

func newLogger(level uint8, prefix string) *Logger {
	var w io.Writer = os.Stderr
	if isatty.IsTerminal(os.Stderr.Fd()) {
		w = zerolog.ConsoleWriter{Out: colorable.NewColorableStderr(), TimeFormat: "15:04:05"}
	}
	zl := zerolog.New(w).
		With().Timestamp().Str("component", prefix).Logger()
	return &Logger{zl: zl, level: level}
}

// SetLevel adjusts the default logger's threshold.
func SetLevel(level uint8) error {
	if level < LevelFatal || level > LevelDebug {
		return errors.New("log: level out of range")
	}
	logger.level = level
	return nil
}

// SetPrefix changes the "component" field the default logger tags
// every record with.
func SetPrefix(prefix string) {
	logger.zl = logger.zl.With().Str("component", prefix).Logger()
}

// WithTrace returns a derived logger carrying a correlation id, scoped
// to a single packet's lifetime through the message handler.
func WithTrace(traceID int64) *Logger {
	return &Logger{zl: logger.zl.With().Int64("trace", traceID).Logger(), level: logger.level}
}

// Debug logs at debug level on this logger.
func (l *Logger) Debug(format string, v ...interface{}) {
	if l.level >= LevelDebug {
		l.zl.Debug().Msgf(format, v...)
	}
}

// Info logs at info level on this logger.
func (l *Logger) Info(format string, v ...interface{}) {
	if l.level >= LevelInfo {
		l.zl.Info().Msgf(format, v...)
	}
}

// Warn logs at warn level on this logger.
func (l *Logger) Warn(format string, v ...interface{}) {
	if l.level >= LevelWarn {
		l.zl.Warn().Msgf(format, v...)
	}
}

// Error logs at error level on this logger.
func (l *Logger) Error(format string, v ...interface{}) {
	if l.level >= LevelError {
		l.zl.Error().Msgf(format, v...)
	}
}

// Fatal logs and terminates the process, matching stdlib log.Fatalf.
func (l *Logger) Fatal(format string, v ...interface{}) {
	l.zl.Fatal().Msgf(format, v...)
}

// Debug logs at debug level on the default logger.
func Debug(format string, v ...interface{}) { logger.Debug(format, v...) }

// Info logs at info level on the default logger.
func Info(format string, v ...interface{}) { logger.Info(format, v...) }

// Warn logs at warn level on the default logger.
func Warn(format string, v ...interface{}) { logger.Warn(format, v...) }

// Error logs at error level on the default logger.
func Error(format string, v ...interface{}) { logger.Error(format, v...) }

// Fatal logs and terminates the process on the default logger.
func Fatal(format string, v ...interface{}) { logger.Fatal(format, v...) }

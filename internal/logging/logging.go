package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// LogLevel represents the severity of a log message
type LogLevel int32

const (
	// LevelDebug is the debug log level
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

// Options controls where log output goes.
type Options struct {
	Level string

	// FilePath enables a rotated log file in addition to stderr when non-empty.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Output replaces stderr as the console destination (used by tests).
	Output io.Writer
}

var (
	currentLevel atomic.Int32

	loggerMu sync.RWMutex
	logger   zerolog.Logger
)

func init() {
	currentLevel.Store(int32(levelFromEnv(LevelInfo)))
	logger = zerolog.New(consoleWriter(os.Stderr)).With().Timestamp().Logger()
}

// ParseLevel converts a level name to a LogLevel.
func ParseLevel(s string) (LogLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	}
	return LevelInfo, false
}

// levelFromEnv applies the DEBUG and LOG_LEVEL overrides on top of fallback.
func levelFromEnv(fallback LogLevel) LogLevel {
	if debug := os.Getenv("DEBUG"); debug != "" {
		switch strings.ToLower(debug) {
		case "1", "true", "yes", "on":
			return LevelDebug
		}
	}

	if lvl, ok := ParseLevel(os.Getenv("LOG_LEVEL")); ok {
		return lvl
	}

	return fallback
}

func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	noColor := true
	if f, ok := out.(*os.File); ok {
		noColor = !term.IsTerminal(int(f.Fd()))
	}
	return zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    noColor,
		TimeFormat: time.RFC3339,
	}
}

// Configure rebuilds the logger from opts. The returned closer releases the
// log file, if one was opened.
func Configure(opts Options) io.Closer {
	lvl, ok := ParseLevel(opts.Level)
	if !ok && opts.Level != "" {
		fmt.Fprintf(os.Stderr, "invalid log level %q, defaulting to info\n", opts.Level)
	}
	currentLevel.Store(int32(levelFromEnv(lvl)))

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	writers := []io.Writer{consoleWriter(out)}

	var lj *lumberjack.Logger
	if opts.FilePath != "" {
		lj = &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		writers = append(writers, lj)
	}

	loggerMu.Lock()
	logger = zerolog.New(io.MultiWriter(writers...)).With().Timestamp().Logger()
	loggerMu.Unlock()

	return closerFunc(func() error {
		if lj == nil {
			return nil
		}
		return lj.Close()
	})
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func current() *zerolog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	l := logger
	return &l
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

// Debug logs a debug message (only if DEBUG=true or the level is debug)
func Debug(format string, args ...interface{}) {
	if GetLevel() <= LevelDebug {
		current().Debug().Msgf(format, args...)
	}
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	if GetLevel() <= LevelInfo {
		current().Info().Msgf(format, args...)
	}
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	if GetLevel() <= LevelWarn {
		current().Warn().Msgf(format, args...)
	}
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	if GetLevel() <= LevelError {
		current().Error().Msgf(format, args...)
	}
}

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	current().Fatal().Msgf(format, args...)
}

// Printf logs a message regardless of level
func Printf(format string, args ...interface{}) {
	current().Log().Msgf(format, args...)
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}

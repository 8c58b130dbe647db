// Package flog is a minimal leveled logger for the allocator's own
// internal diagnostics: frame begin/end, slab page refill/retire,
// deferred-queue warnings, streaming eviction, promotion failures, and
// budget crossings. It mirrors the four-level severity scheme the teacher
// codebase's internal/diagnostic package uses for compiler diagnostics
// (Hint/Warning/Error plus an implicit info level), mapped here onto
// Debug/Info/Warn/Error, built on the standard library's log package
// rather than a third-party structured logging dependency since no
// example repo in the corpus imports one for this kind of internal,
// low-frequency diagnostic output.
package flog

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"
)

// Level is a logging severity, ordered least to most severe.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
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
		return "unknown"
	}
}

// ParseLevel parses a level name, defaulting to LevelInfo for unrecognized
// input. Accepts the FRAMEALLOC_LOG_LEVEL values debug|info|warn|error.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is a minimal leveled wrapper around the standard library's log
// package. The zero value is not usable; construct with New.
type Logger struct {
	level  atomic.Int32
	std    *log.Logger
	prefix string
}

// New creates a Logger writing to os.Stderr at the given minimum level.
func New(level Level, prefix string) *Logger {
	l := &Logger{
		std:    log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds),
		prefix: prefix,
	}
	l.level.Store(int32(level))

	return l
}

// NewFromEnv constructs a Logger using the FRAMEALLOC_LOG_LEVEL
// environment variable (debug|info|warn|error), defaulting to info if
// unset or unrecognized.
func NewFromEnv(prefix string) *Logger {
	return New(ParseLevel(os.Getenv("FRAMEALLOC_LOG_LEVEL")), prefix)
}

// SetLevel changes the minimum level logged, safe for concurrent use.
func (l *Logger) SetLevel(level Level) { l.level.Store(int32(level)) }

// Level returns the current minimum level.
func (l *Logger) Level() Level { return Level(l.level.Load()) }

func (l *Logger) enabled(level Level) bool { return level >= l.Level() }

func (l *Logger) log(level Level, format string, args ...interface{}) {
	if !l.enabled(level) {
		return
	}

	msg := fmt.Sprintf(format, args...)
	if l.prefix != "" {
		l.std.Printf("[%s] %s: %s", level, l.prefix, msg)
	} else {
		l.std.Printf("[%s] %s", level, msg)
	}
}

// Debugf logs at LevelDebug: frame begin/end, slab page refill/retire.
func (l *Logger) Debugf(format string, args ...interface{}) { l.log(LevelDebug, format, args...) }

// Infof logs at LevelInfo: streaming eviction and similar routine events.
func (l *Logger) Infof(format string, args ...interface{}) { l.log(LevelInfo, format, args...) }

// Warnf logs at LevelWarn: deferred-queue near-full, promotion failures,
// budget soft-limit crossings.
func (l *Logger) Warnf(format string, args ...interface{}) { l.log(LevelWarn, format, args...) }

// Errorf logs at LevelError: budget hard-limit crossings and similar
// serious conditions that do not themselves abort the process.
func (l *Logger) Errorf(format string, args ...interface{}) { l.log(LevelError, format, args...) }

// Default is the package-level logger used by call sites that do not
// carry their own Logger reference, configured from FRAMEALLOC_LOG_LEVEL
// at package init.
var Default = NewFromEnv("framealloc")

// Package corelog is a thin leveled wrapper over the standard library's log
// package, matching the teacher's own choice of plain "log" for every
// example/server entry point rather than a structured logging library.
package corelog

import (
	"log"
	"os"
)

// Level is a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is a minimal leveled logger, also satisfying junction.Logger's
// Printf(format, args...) surface so a *Logger can subscribe directly to a
// Junction's Log error action.
type Logger struct {
	min Level
	std *log.Logger
}

// New returns a Logger writing to os.Stderr with the standard log package's
// default timestamp flags, filtering anything below min.
func New(min Level) *Logger {
	return &Logger{min: min, std: log.New(os.Stderr, "", log.LstdFlags)}
}

func (l *Logger) Printf(format string, args ...any) {
	l.logAt(LevelInfo, format, args...)
}

func (l *Logger) Debugf(format string, args ...any) { l.logAt(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logAt(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logAt(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.logAt(LevelError, format, args...) }

func (l *Logger) logAt(level Level, format string, args ...any) {
	if level < l.min {
		return
	}
	l.std.Printf("["+level.String()+"] "+format, args...)
}

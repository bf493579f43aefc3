// Package logging provides a small leveled wrapper around the standard
// library logger shared by every component.
package logging

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

var current atomic.Int32

func init() {
	lvl := LevelInfo
	if v := os.Getenv("OTAKUBACK_LOG_LEVEL"); v != "" {
		lvl = ParseLevel(v)
	}
	current.Store(int32(lvl))
}

// SetLevel changes the process-wide minimum level.
func SetLevel(l Level) { current.Store(int32(l)) }

// Logger is a named component logger, e.g. logging.For("downloads").
type Logger struct {
	component string
}

// For returns a Logger tagged with component, used as a prefix on every line.
func For(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) log(level Level, format string, args ...any) {
	if Level(current.Load()) > level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	log.Printf("%s: %s", l.component, msg)
}

func (l *Logger) Debug(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *Logger) Error(format string, args ...any) { l.log(LevelError, format, args...) }

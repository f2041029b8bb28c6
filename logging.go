// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package zonepromise

import (
	"fmt"
	"log"
	"os"
	"sync"
)

// LogLevel identifies the severity of a [LogEntry].
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

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
		return "unknown"
	}
}

// LogEntry is one structured diagnostic emitted by the engine: an
// unhandled promise rejection, or a panic recovered from a microtask.
type LogEntry struct {
	Level   LogLevel
	Message string
	Fields  map[string]any
}

// Logger receives structured diagnostics from a [Loop]. Production code
// in this package never imports a concrete logging backend directly;
// callers wire one in by implementing this interface (see the logiface
// adapter in logging_adapter_test.go for an example using
// github.com/joeycumines/logiface).
type Logger interface {
	Log(entry LogEntry)
}

// LoggerFunc adapts a plain function to [Logger].
type LoggerFunc func(entry LogEntry)

func (f LoggerFunc) Log(entry LogEntry) { f(entry) }

// defaultLogger writes entries to the standard library logger, prefixed by
// level. It is the zero-dependency fallback used when no [WithLogger]
// option is supplied.
type defaultLogger struct {
	mu  sync.Mutex
	out *log.Logger
}

// NewDefaultLogger returns a [Logger] that writes to stderr via the
// standard library's log package.
func NewDefaultLogger() Logger {
	return &defaultLogger{out: log.New(os.Stderr, "", log.LstdFlags)}
}

func (d *defaultLogger) Log(entry LogEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(entry.Fields) == 0 {
		d.out.Printf("[zonepromise] %s: %s", entry.Level, entry.Message)
		return
	}
	d.out.Printf("[zonepromise] %s: %s %v", entry.Level, entry.Message, entry.Fields)
}

// NopLogger discards every entry.
func NopLogger() Logger { return LoggerFunc(func(LogEntry) {}) }

func (l *Loop) logf(level LogLevel, message string, fields map[string]any) {
	logger := l.logger
	if logger == nil {
		return
	}
	logger.Log(LogEntry{Level: level, Message: fmt.Sprint(message), Fields: fields})
}

// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package zonepromise_test

import (
	"errors"
	"testing"

	"github.com/joeycumines/logiface"

	"github.com/go-async/zonepromise"
)

// testEvent, testEventFactory and testEventWriter mirror the teacher's own
// minimal logiface.Event plumbing (coverage_extra_test.go), reused here to
// exercise github.com/joeycumines/logiface from this module's test suite the
// same way the teacher exercises it from its own.
type testEvent struct {
	logiface.UnimplementedEvent
	level  logiface.Level
	msg    string
	fields map[string]any
}

func (e *testEvent) Level() logiface.Level { return e.level }

func (e *testEvent) AddMessage(msg string) bool {
	e.msg = msg
	return true
}

func (e *testEvent) AddField(key string, val any) {
	if e.fields == nil {
		e.fields = make(map[string]any)
	}
	e.fields[key] = val
}

type testEventFactory struct{}

func (f *testEventFactory) NewEvent(level logiface.Level) *testEvent {
	return &testEvent{level: level}
}

type testEventWriter struct {
	onWrite func(*testEvent) error
}

func (w *testEventWriter) Write(event *testEvent) error {
	if w.onWrite != nil {
		return w.onWrite(event)
	}
	return nil
}

// logifaceLogger adapts a generic *logiface.Logger[logiface.Event] to
// zonepromise.Logger, translating a LogEntry into the matching builder
// level and attaching its fields via Builder.Interface before writing.
//
// Nothing in the production tree imports logiface: this adapter is the
// test-only shim SPEC_FULL.md promises, demonstrating that the Logger
// interface is just a seam, not a commitment to any particular backend.
type logifaceLogger struct {
	logger *logiface.Logger[logiface.Event]
}

func (l *logifaceLogger) Log(entry zonepromise.LogEntry) {
	var b *logiface.Builder[logiface.Event]
	switch entry.Level {
	case zonepromise.LevelDebug:
		b = l.logger.Debug()
	case zonepromise.LevelWarn:
		b = l.logger.Warning()
	case zonepromise.LevelError:
		b = l.logger.Err()
	default:
		b = l.logger.Info()
	}
	for k, v := range entry.Fields {
		b = b.Interface(k, v)
	}
	b.Log(entry.Message)
}

func TestLogifaceAdapter_WritesThroughToEvent(t *testing.T) {
	var written *testEvent
	writer := &testEventWriter{
		onWrite: func(event *testEvent) error {
			written = event
			return nil
		},
	}
	typedLogger := logiface.New[*testEvent](
		logiface.WithEventFactory[*testEvent](&testEventFactory{}),
		logiface.WithWriter[*testEvent](writer),
		logiface.WithLevel[*testEvent](logiface.LevelTrace),
	)

	adapter := &logifaceLogger{logger: typedLogger.Logger()}
	loop, err := zonepromise.New(zonepromise.WithLogger(adapter))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer loop.Shutdown()

	rejected := loop.Rejected(errors.New("boom"))
	_ = rejected

	// Drive a microtask through the logger directly, since the loop's own
	// unhandled-rejection flush timing is exercised by unhandled_test.go;
	// this test only needs to prove the adapter wiring itself works.
	done := make(chan struct{})
	_ = loop.ScheduleMicrotask(func() {
		defer close(done)
	})
	<-done

	adapter.Log(zonepromise.LogEntry{
		Level:   zonepromise.LevelWarn,
		Message: "adapter smoke test",
		Fields:  map[string]any{"promise": rejected},
	})

	if written == nil {
		t.Fatal("expected the logiface writer to receive an event")
	}
	if written.msg != "adapter smoke test" {
		t.Errorf("msg = %q, want %q", written.msg, "adapter smoke test")
	}
	if written.level != logiface.LevelWarning {
		t.Errorf("level = %v, want %v", written.level, logiface.LevelWarning)
	}
}

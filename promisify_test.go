// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package zonepromise_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-async/zonepromise"
	"github.com/go-async/zonepromise/ticker"
)

func newPromisifyLoop(t *testing.T) *zonepromise.Loop {
	t.Helper()
	loop, err := zonepromise.New(zonepromise.WithScheduler(ticker.NewInlineScheduler()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(loop.Shutdown)
	return loop
}

func awaitPromisified(t *testing.T, p *zonepromise.Promise) zonepromise.PromiseState {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for p.State() == zonepromise.Pending && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	return p.State()
}

func TestPromisify_ResolvesWithFnResult(t *testing.T) {
	loop := newPromisifyLoop(t)

	p := loop.Promisify(context.Background(), func(ctx context.Context) (any, error) {
		return "done", nil
	})

	if state := awaitPromisified(t, p); state != zonepromise.Fulfilled {
		t.Fatalf("state = %v, want Fulfilled", state)
	}
	if p.Value() != "done" {
		t.Fatalf("value = %v, want %q", p.Value(), "done")
	}
}

func TestPromisify_RejectsWithFnError(t *testing.T) {
	loop := newPromisifyLoop(t)
	boom := errors.New("boom")

	p := loop.Promisify(context.Background(), func(ctx context.Context) (any, error) {
		return nil, boom
	})

	if state := awaitPromisified(t, p); state != zonepromise.Rejected {
		t.Fatalf("state = %v, want Rejected", state)
	}
	if p.Reason() != boom {
		t.Fatalf("reason = %v, want %v", p.Reason(), boom)
	}
}

func TestPromisify_PanicBecomesPanicError(t *testing.T) {
	loop := newPromisifyLoop(t)

	p := loop.Promisify(context.Background(), func(ctx context.Context) (any, error) {
		panic("kaboom")
	})

	if state := awaitPromisified(t, p); state != zonepromise.Rejected {
		t.Fatalf("state = %v, want Rejected", state)
	}
	var panicErr zonepromise.PanicError
	if !errors.As(p.Reason(), &panicErr) {
		t.Fatalf("reason = %v (%T), want a PanicError", p.Reason(), p.Reason())
	}
	if panicErr.Value != "kaboom" {
		t.Fatalf("panic value = %v, want %q", panicErr.Value, "kaboom")
	}
}

func TestPromisify_ContextCanceledBeforeStartRejectsWithCtxErr(t *testing.T) {
	loop := newPromisifyLoop(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	p := loop.Promisify(ctx, func(ctx context.Context) (any, error) {
		called = true
		return "should not run", nil
	})

	if state := awaitPromisified(t, p); state != zonepromise.Rejected {
		t.Fatalf("state = %v, want Rejected", state)
	}
	if !errors.Is(p.Reason(), context.Canceled) {
		t.Fatalf("reason = %v, want context.Canceled", p.Reason())
	}
	_ = called
}

func TestPromisify_AfterShutdownRejectsImmediately(t *testing.T) {
	loop, err := zonepromise.New(zonepromise.WithScheduler(ticker.NewInlineScheduler()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	loop.Shutdown()

	p := loop.Promisify(context.Background(), func(ctx context.Context) (any, error) {
		return "too late", nil
	})

	if got := p.State(); got != zonepromise.Rejected {
		t.Fatalf("state = %v, want Rejected", got)
	}
	if p.Reason() != zonepromise.ErrLoopTerminated {
		t.Fatalf("reason = %v, want ErrLoopTerminated", p.Reason())
	}
}

// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package gojabridge_test

import (
	"testing"
	"time"

	"github.com/dop251/goja"

	"github.com/go-async/zonepromise"
	"github.com/go-async/zonepromise/gojabridge"
	"github.com/go-async/zonepromise/ticker"
)

func TestRuntime_PromiseResolvesThroughThen(t *testing.T) {
	loop, err := zonepromise.New(zonepromise.WithScheduler(ticker.NewInlineScheduler()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer loop.Shutdown()

	vm := goja.New()
	if _, err := gojabridge.New(loop, vm); err != nil {
		t.Fatalf("gojabridge.New failed: %v", err)
	}

	_, err = vm.RunString(`
		var seen;
		new Promise(function(resolve, reject) {
			resolve(42);
		}).then(function(v) {
			seen = v * 2;
		});
	`)
	if err != nil {
		t.Fatalf("RunString failed: %v", err)
	}

	seen := vm.Get("seen")
	if goja.IsUndefined(seen) {
		t.Fatal("expected the then() reaction to have run")
	}
	if got := seen.ToInteger(); got != 84 {
		t.Fatalf("seen = %d, want 84", got)
	}
}

func TestRuntime_PromiseRejectionReachesCatch(t *testing.T) {
	loop, err := zonepromise.New(zonepromise.WithScheduler(ticker.NewInlineScheduler()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer loop.Shutdown()

	vm := goja.New()
	if _, err := gojabridge.New(loop, vm); err != nil {
		t.Fatalf("gojabridge.New failed: %v", err)
	}

	_, err = vm.RunString(`
		var caught;
		new Promise(function(resolve, reject) {
			reject(new Error("nope"));
		}).catch(function(e) {
			caught = e.message;
		});
	`)
	if err != nil {
		t.Fatalf("RunString failed: %v", err)
	}

	caught := vm.Get("caught")
	if goja.IsUndefined(caught) {
		t.Fatal("expected the catch() reaction to have run")
	}
	if caught.String() != "nope" {
		t.Fatalf("caught = %q, want %q", caught.String(), "nope")
	}
}

func TestRuntime_QueueMicrotaskRunsAfterSyncCode(t *testing.T) {
	// Deliberately uses the default GoroutineScheduler, not InlineScheduler:
	// queueMicrotask's whole point is that it runs *after* the current
	// synchronous script finishes, and InlineScheduler drains the instant
	// Wake is called, which would run it before the next statement of the
	// very script that scheduled it.
	loop, err := zonepromise.New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer loop.Shutdown()

	vm := goja.New()
	if _, err := gojabridge.New(loop, vm); err != nil {
		t.Fatalf("gojabridge.New failed: %v", err)
	}

	_, err = vm.RunString(`
		var order = [];
		queueMicrotask(function() { order.push("microtask"); });
		order.push("sync");
	`)
	if err != nil {
		t.Fatalf("RunString failed: %v", err)
	}

	// goja.Runtime is not safe for concurrent access, so the test must not
	// poll vm.Get from this goroutine while the JS-queued microtask might
	// still be running on the drain goroutine. Scheduling a second, plain
	// Go microtask establishes a happens-before edge instead: it is FIFO
	// after the JS one on the engine's single-consumer queue, so closing
	// this channel means the JS callback has already finished touching vm.
	done := make(chan struct{})
	if err := loop.ScheduleMicrotask(func() { close(done) }); err != nil {
		t.Fatalf("ScheduleMicrotask failed: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the microtask queue to drain")
	}

	order, ok := vm.Get("order").Export().([]any)
	if !ok || len(order) != 2 {
		t.Fatalf("expected 2 entries in order, got %v", vm.Get("order").Export())
	}
	if order[0] != "sync" || order[1] != "microtask" {
		t.Fatalf("expected [sync, microtask], got %v", order)
	}
}

// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package ticker provides the pluggable "physical tick bootstrap" that
// drives a single virtual tick (one drain-to-empty of a microtask queue).
//
// A host JavaScript engine picks the cheapest available primitive to
// schedule a physical tick, in order of preference: a resolved host
// promise, setImmediate/MessageChannel, a zero-delay timer. Go has none of
// these, so [Scheduler] is the explicit substitute the language needs: one
// async primitive, chosen once at construction, that the engine asks to
// "wake me up and drain."
package ticker

import "sync"

// Scheduler bootstraps physical ticks for a drain function. Wake is called
// whenever a new microtask or tick finalizer is enqueued, whether or not a
// tick is already scheduled; it must arrange for drain to be invoked exactly once, at some later point
// chosen by the scheduler's own strategy. Wake must never call drain
// synchronously on the calling goroutine unless the Scheduler documents
// that (see [InlineScheduler]).
type Scheduler interface {
	// Start binds the scheduler to a drain function. Called once.
	Start(drain func())
	// Wake requests a physical tick. Safe to call from any goroutine,
	// any number of times; implementations must coalesce redundant wakes.
	Wake()
	// Stop releases any background resources. Wake may still be called
	// after Stop returns, e.g. when a promise rejects after the owning
	// loop has shut down.
	Stop()
}

// GoroutineScheduler runs a single dedicated goroutine that blocks on a
// buffered wakeup channel and calls drain once per wake. This is the
// default: it is the cheapest async primitive Go offers for this job, the
// same way a host engine prefers a resolved promise over a timer.
type GoroutineScheduler struct {
	wake  chan struct{}
	done  chan struct{}
	once  sync.Once
	start sync.Once
}

// NewGoroutineScheduler constructs a [GoroutineScheduler].
func NewGoroutineScheduler() *GoroutineScheduler {
	return &GoroutineScheduler{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (s *GoroutineScheduler) Start(drain func()) {
	s.start.Do(func() {
		go func() {
			for {
				select {
				case <-s.wake:
					drain()
				case <-s.done:
					return
				}
			}
		}()
	})
}

func (s *GoroutineScheduler) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
		// A tick is already scheduled; the pending send will drain
		// whatever is in the queue by the time it runs.
	}
}

func (s *GoroutineScheduler) Stop() {
	s.once.Do(func() { close(s.done) })
}

// InlineScheduler drains synchronously on the calling goroutine, the
// moment Wake is called. It is intended for test harnesses and for
// programs that want to pump the tick loop explicitly from a single
// goroutine they already own, matching the spec's accessor "intended for
// embedding test harnesses."
type InlineScheduler struct {
	drain func()
}

// NewInlineScheduler constructs an [InlineScheduler].
func NewInlineScheduler() *InlineScheduler { return &InlineScheduler{} }

func (s *InlineScheduler) Start(drain func()) { s.drain = drain }
func (s *InlineScheduler) Wake() {
	if s.drain != nil {
		s.drain()
	}
}
func (s *InlineScheduler) Stop() {}

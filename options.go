// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package zonepromise

import "github.com/go-async/zonepromise/ticker"

// loopOptions holds configuration resolved from a chain of [Option] values.
type loopOptions struct {
	debugMode               bool
	strictMicrotaskOrdering bool
	scheduler               ticker.Scheduler
	logger                  Logger
	rejectionMapper         func(reason any) any
}

// Option configures a [Loop] at construction time.
type Option interface {
	apply(*loopOptions) error
}

type optionFunc func(*loopOptions) error

func (f optionFunc) apply(o *loopOptions) error { return f(o) }

// WithDebugMode enables creation-stack and long-stack capture. Disabled by
// default, since walking runtime.Callers on every promise construction is
// not free.
func WithDebugMode(enabled bool) Option {
	return optionFunc(func(o *loopOptions) error {
		o.debugMode = enabled
		return nil
	})
}

// WithStrictMicrotaskOrdering forces the microtask queue to be fully
// drained, including microtasks scheduled by microtasks, before the
// physical-tick bootstrap is allowed to return. This is the engine's only
// supported ordering and exists as a named option for parity with the
// ambient stack's options idiom and to allow a future relaxed mode.
func WithStrictMicrotaskOrdering(enabled bool) Option {
	return optionFunc(func(o *loopOptions) error {
		o.strictMicrotaskOrdering = enabled
		return nil
	})
}

// WithScheduler overrides the [ticker.Scheduler] used to bootstrap physical
// ticks. Defaults to [ticker.NewGoroutineScheduler].
func WithScheduler(s ticker.Scheduler) Option {
	return optionFunc(func(o *loopOptions) error {
		o.scheduler = s
		return nil
	})
}

// WithLogger overrides the [Logger] used for engine diagnostics. Defaults
// to [NewDefaultLogger].
func WithLogger(l Logger) Option {
	return optionFunc(func(o *loopOptions) error {
		o.logger = l
		return nil
	})
}

// WithRejectionMapper installs a function that transforms every rejection
// reason at the moment a promise rejects, e.g. to redact sensitive fields
// or wrap a bare value in a richer error type. The mapped reason is what
// gets stored: it is what [Promise.Reason] returns, what Catch/Then
// handlers observe, and what an unhandled-rejection listener is reported.
// Equivalent at runtime to [Loop.SetRejectionMapper]; see that method to
// change the mapper after construction.
func WithRejectionMapper(mapper func(reason any) any) Option {
	return optionFunc(func(o *loopOptions) error {
		o.rejectionMapper = mapper
		return nil
	})
}

func resolveOptions(opts []Option) (*loopOptions, error) {
	cfg := &loopOptions{strictMicrotaskOrdering: true}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

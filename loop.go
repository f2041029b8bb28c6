// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package zonepromise

import (
	"sync"
	"sync/atomic"

	"github.com/go-async/zonepromise/internal/ring"
	"github.com/go-async/zonepromise/ticker"
)

// Loop is the microtask engine: a FIFO of pending continuations, a
// [ticker.Scheduler] that bootstraps physical ticks to drain it, and the
// global [Zone] every promise falls back to when no [NewScope] is active.
//
// A Loop is safe for concurrent use. Settling a [Promise] from any
// goroutine only ever enqueues work; the work itself always runs serialized
// on whatever goroutine the Scheduler chooses to drain on (a single
// dedicated goroutine, for the default [ticker.GoroutineScheduler]), so two
// continuations are never executing at the same instant. This is the Go
// expression of the spec's "single-threaded cooperative, no locks between
// callbacks" requirement: the lock is real (it has to be, given Go's
// runtime), but it is held only at the plumbing layer, never visible to
// callback code.
type Loop struct {
	microtasks *ring.Queue
	zones      *zoneRegistry
	global     *Zone
	unhandled  *unhandledTracker

	state     *fastState
	debugMode bool
	logger    Logger

	// cfgMu guards the two pieces of Loop state that can be reconfigured
	// live, after construction: scheduler and rejectionMapper. Everything
	// else on Loop is either immutable after New or uses its own
	// synchronization (state, microtasks, finalizers). Grounded on the
	// teacher's tickAnchorMu, which guards TickAnchor the same way.
	cfgMu           sync.RWMutex
	scheduler       ticker.Scheduler
	rejectionMapper func(any) any

	nextPromiseID atomic.Uint64
	draining      atomic.Bool

	finalizersMu sync.Mutex
	finalizers   []func()

	promisifyWg sync.WaitGroup
	promisifyMu sync.Mutex
}

// New constructs a ready-to-use [Loop]. The returned loop starts its
// scheduler immediately; there is no separate Run call, since the only
// "running" this engine does is draining microtasks, which begins the
// moment the first one is scheduled.
func New(opts ...Option) (*Loop, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	sched := cfg.scheduler
	if sched == nil {
		sched = ticker.NewGoroutineScheduler()
	}
	logger := cfg.logger
	if logger == nil {
		logger = NewDefaultLogger()
	}

	l := &Loop{
		microtasks:      ring.New(),
		scheduler:       sched,
		zones:           newZoneRegistry(),
		unhandled:       newUnhandledTracker(),
		state:           newFastState(),
		debugMode:       cfg.debugMode,
		logger:          logger,
		rejectionMapper: cfg.rejectionMapper,
	}
	l.global = newZone(l, nil, nil)
	l.global.closed = true // the global zone never finalizes
	l.state.TryTransition(stateAwake, stateRunning)
	sched.Start(l.drain)
	return l, nil
}

var (
	defaultLoopOnce sync.Once
	defaultLoopVal  *Loop
)

// Default returns a lazily-constructed package-wide [Loop], used by [NewPromise]
// (the package-level promise constructor), [Resolved], [Rejected] and the
// combinators when called without an explicit Loop.
func Default() *Loop {
	defaultLoopOnce.Do(func() {
		l, err := New()
		if err != nil {
			panic(err) // New() with no options cannot fail
		}
		defaultLoopVal = l
	})
	return defaultLoopVal
}

// ScheduleMicrotask enqueues fn to run on a later virtual tick, after
// whatever synchronous code scheduled it returns. Returns [ErrLoopTerminated]
// if the loop has already shut down.
func (l *Loop) ScheduleMicrotask(fn func()) error {
	if !l.state.CanAcceptWork() {
		return ErrLoopTerminated
	}
	l.microtasks.Push(fn)
	l.Scheduler().Wake()
	return nil
}

// addTickFinalizer queues fn to run once the current (or next) drain
// reaches an empty queue, after every microtask scheduled during the drain
// (including microtasks scheduled by microtasks) has executed. Used for
// the unhandled-rejection flush.
func (l *Loop) addTickFinalizer(fn func()) {
	l.finalizersMu.Lock()
	l.finalizers = append(l.finalizers, fn)
	l.finalizersMu.Unlock()
	l.Scheduler().Wake()
}

// drain is the Scheduler's entry point for one physical tick: run every
// microtask currently queued, including ones enqueued by microtasks that
// ran earlier in the same drain, then run tick finalizers, repeating until
// both are empty.
func (l *Loop) drain() {
	if !l.draining.CompareAndSwap(false, true) {
		return // a drain is already in progress
	}
	defer l.draining.Store(false)

	for {
		ranAny := false
		for {
			fn, ok := l.microtasks.Pop()
			if !ok {
				break
			}
			ranAny = true
			l.safeExecute(fn)
		}

		l.finalizersMu.Lock()
		pending := l.finalizers
		l.finalizers = nil
		l.finalizersMu.Unlock()
		for _, fn := range pending {
			ranAny = true
			l.safeExecute(fn)
		}

		if !ranAny {
			return
		}
	}
}

// safeExecute runs fn with panic recovery, logging and swallowing the
// panic rather than taking down the drain goroutine: a panicking
// microtask must not stop every other pending continuation from running.
func (l *Loop) safeExecute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logf(LevelError, "microtask panicked", map[string]any{"panic": r})
		}
	}()
	fn()
}

// Shutdown stops the scheduler. Pending microtasks that have not yet run
// are discarded; in-flight [Promisify] goroutines are allowed to finish,
// but their resolution will observe [ErrLoopTerminated] when they try to
// schedule back onto this loop and fall back to resolving directly.
func (l *Loop) Shutdown() {
	if !l.state.TryTransition(stateRunning, stateTerminating) {
		return
	}
	l.promisifyWg.Wait()
	l.Scheduler().Stop()
	l.state.TryTransition(stateTerminating, stateTerminated)
}

func (l *Loop) nextID() uint64 { return l.nextPromiseID.Add(1) }

// Scheduler returns the [ticker.Scheduler] currently bootstrapping this
// loop's physical ticks.
func (l *Loop) Scheduler() ticker.Scheduler {
	l.cfgMu.RLock()
	defer l.cfgMu.RUnlock()
	return l.scheduler
}

// SetScheduler swaps in a new [ticker.Scheduler] at runtime: the previous
// one is stopped and the replacement started against the same drain entry
// point, mirroring the teacher's SetFastPathEnabled-style live
// reconfiguration of engine behavior without a restart. Safe to call from
// any goroutine while the loop is running; a nil s is ignored.
func (l *Loop) SetScheduler(s ticker.Scheduler) {
	if s == nil {
		return
	}
	l.cfgMu.Lock()
	prev := l.scheduler
	l.scheduler = s
	l.cfgMu.Unlock()
	if prev != nil {
		prev.Stop()
	}
	s.Start(l.drain)
}

// RejectionMapper returns the function currently transforming rejection
// reasons at the moment of rejection, or nil if none is set.
func (l *Loop) RejectionMapper() func(any) any {
	l.cfgMu.RLock()
	defer l.cfgMu.RUnlock()
	return l.rejectionMapper
}

// SetRejectionMapper installs mapper as the function applied to every
// rejection reason, at the moment a promise rejects, before the reason is
// stored or observed by any handler. Pass nil to clear it.
func (l *Loop) SetRejectionMapper(mapper func(any) any) {
	l.cfgMu.Lock()
	l.rejectionMapper = mapper
	l.cfgMu.Unlock()
}

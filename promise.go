// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package zonepromise

import (
	"sync"
	"sync/atomic"
)

// PromiseState is the settlement state of a [Promise].
type PromiseState int32

const (
	Pending PromiseState = iota
	Fulfilled
	Rejected
)

func (s PromiseState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Fulfilled:
		return "fulfilled"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// listener is a reaction registered via Then/Catch/Finally. Unlike the
// teacher's ChainedPromise (whose onFulfilled/onRejected return a bare
// Result and signal failure only by panicking), handlers here return
// (any, error): Go has explicit error returns, and forcing every rejection
// through a panic would fight the language instead of using it.
type listener struct {
	onFulfilled func(any) (any, error)
	onRejected  func(any) (any, error)
	target      *Promise
	zone        *Zone
}

// Promise represents the eventual result of an asynchronous operation,
// following Promises/A+ with one addition: every continuation registered
// on it remembers the [Zone] active when it was registered, and is always
// invoked back inside that zone, regardless of which goroutine causes the
// promise to settle.
type Promise struct {
	id   uint64
	loop *Loop
	zone *Zone

	mu     sync.Mutex
	state  atomic.Int32
	value  any
	err    error
	h0     listener
	h0Used bool
	extra  []listener

	creationStack []uintptr
	prev          *Promise
	prevDepth     int

	handled atomic.Bool
}

// NewPromise constructs a pending [Promise] on the default [Loop] and runs
// executor synchronously, exactly like the JavaScript Promise constructor.
func NewPromise(executor func(resolve func(any), reject func(error))) *Promise {
	return Default().New(executor)
}

// New constructs a pending [Promise] on l.
func (l *Loop) New(executor func(resolve func(any), reject func(error))) *Promise {
	p := l.newPending()
	if executor == nil {
		return p
	}
	func() {
		defer func() {
			if r := recover(); r != nil {
				p.reject(PanicError{Value: r})
			}
		}()
		executor(p.resolve, p.reject)
	}()
	return p
}

func (l *Loop) newPending() *Promise {
	p := &Promise{
		id:   l.nextID(),
		loop: l,
		zone: l.ActiveZone(),
	}
	p.state.Store(int32(Pending))
	if l.debugMode {
		p.creationStack = captureCreationStack()
	}
	p.zone.incref()
	return p
}

// State returns the current settlement state. Safe from any goroutine.
func (p *Promise) State() PromiseState { return PromiseState(p.state.Load()) }

// Value returns the fulfillment value, or nil if not fulfilled.
func (p *Promise) Value() any {
	if p.state.Load() == int32(Fulfilled) {
		return p.value
	}
	return nil
}

// Reason returns the rejection reason, or nil if not rejected.
func (p *Promise) Reason() error {
	if p.state.Load() == int32(Rejected) {
		return p.err
	}
	return nil
}

// Zone returns the zone this promise was created in.
func (p *Promise) Zone() *Zone { return p.zone }

// addHandler attaches h, running it immediately (via a microtask) if the
// promise is already settled, or storing it for later otherwise.
//
// Grounded on the teacher's ChainedPromise.addHandler: an optimistic
// lock-free read of the current state handles the common already-settled
// case without taking the mutex, falling back to a locked re-check only
// while still pending. The single-handler fast path (h0/h0Used) avoids an
// allocation for the overwhelmingly common case of one listener; this
// version drops the teacher's type-punning of the overflow storage (it
// reused the `result` field as a []handler via an interface assertion to
// save a struct field) in favor of a plain `extra []listener` field, since
// Go doesn't need to economize a struct field the way that trick did.
func (p *Promise) addHandler(h listener) {
	if state := p.state.Load(); state != int32(Pending) {
		p.scheduleHandler(h, PromiseState(state))
		return
	}

	p.mu.Lock()
	if state := p.state.Load(); state != int32(Pending) {
		p.mu.Unlock()
		p.scheduleHandler(h, PromiseState(state))
		return
	}
	if !p.h0Used {
		p.h0 = h
		p.h0Used = true
	} else {
		p.extra = append(p.extra, h)
	}
	p.mu.Unlock()
}

func (p *Promise) scheduleHandler(h listener, state PromiseState) {
	l := p.loop
	_ = l.ScheduleMicrotask(func() {
		p.executeHandler(h, state)
	})
}

// executeHandler runs a single listener's reaction, switching into its
// captured zone first, and propagates the result (or the handler's error,
// or a recovered panic) to h.target.
func (p *Promise) executeHandler(h listener, state PromiseState) {
	run := func() {
		var fn func(any) (any, error)
		var arg any
		if state == Fulfilled {
			fn = h.onFulfilled
			arg = p.value
		} else {
			fn = h.onRejected
			arg = p.err
		}

		if fn == nil {
			if h.target == nil {
				return
			}
			if state == Fulfilled {
				h.target.resolve(arg)
			} else {
				h.target.reject(arg)
			}
			return
		}

		result, err := p.invokeHandler(fn, arg)
		if h.target == nil {
			return
		}
		if err != nil {
			h.target.reject(err)
			return
		}
		h.target.resolve(result)
	}

	if h.zone != nil && h.zone != p.loop.ActiveZone() {
		p.loop.UsePSD(h.zone, run)
		return
	}
	run()
}

// invokeHandler calls fn with panic protection, converting a panic into a
// [PanicError] the same way the teacher's executeHandler does.
func (p *Promise) invokeHandler(fn func(any) (any, error), arg any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, PanicError{Value: r}
		}
	}()
	return fn(arg)
}

// Then registers reactions and returns a new [Promise] settled by
// whichever one runs. A nil onFulfilled/onRejected passes the settlement
// through unchanged, exactly as in JavaScript.
func (p *Promise) Then(onFulfilled, onRejected func(any) (any, error)) *Promise {
	child := p.loop.newPending()
	p.handled.Store(true)
	p.addHandler(listener{
		onFulfilled: onFulfilled,
		onRejected:  onRejected,
		target:      child,
		zone:        p.loop.ActiveZone(),
	})
	child.linkTo(p)
	return child
}

// Catch registers a rejection reaction. Equivalent to
// Then(nil, func(any) (any, error) { ... }).
func (p *Promise) Catch(onRejected func(reason error) (any, error)) *Promise {
	return p.Then(nil, func(v any) (any, error) {
		reason, _ := v.(error)
		return onRejected(reason)
	})
}

// CatchIf registers a rejection reaction that only runs when filter
// returns true for the rejection reason; otherwise the rejection passes
// through to the returned promise unchanged. This is the Go-idiomatic
// expression of a filtered catch: Go has no reason.name/instanceof to
// match JavaScript's two-argument catch against, so the filter is an
// explicit predicate instead (see DESIGN.md's Open Question on filtered
// catch).
func (p *Promise) CatchIf(filter func(reason error) bool, onRejected func(reason error) (any, error)) *Promise {
	return p.Then(nil, func(v any) (any, error) {
		reason, _ := v.(error)
		if !filter(reason) {
			return nil, reason
		}
		return onRejected(reason)
	})
}

// Finally registers fn to run on settlement regardless of outcome. fn
// receives nothing and returns nothing: it cannot change the outcome, and
// a panic inside it (including one re-raised by fn's own recover) is
// recovered and discarded, and the original settlement propagates
// unchanged. This matches the teacher's
// ChainedPromise.Finally, which documents the same deviation as an
// intentional adaptation to Go (spec.md leaves the exact Finally-panic
// behavior as an Open Question; see DESIGN.md).
func (p *Promise) Finally(fn func()) *Promise {
	// A panic in fn is recovered and discarded here, before invokeHandler's
	// own recover ever sees it: a cleanup callback panicking must not
	// convert the original settlement into a rejection.
	runFinally := func() {
		defer func() { recover() }()
		fn()
	}
	run := func(v any) (any, error) {
		runFinally()
		return v, nil
	}
	runErr := func(v any) (any, error) {
		runFinally()
		return nil, v.(error)
	}
	return p.Then(run, runErr)
}

func (p *Promise) resolve(value any) {
	if pr, ok := value.(*Promise); ok && pr == p {
		p.reject(&TypeError{Message: "A promise cannot be resolved with itself."})
		return
	}

	if pr, ok := value.(*Promise); ok {
		pr.addHandler(listener{target: p, zone: p.zone})
		return
	}

	p.mu.Lock()
	if p.state.Load() != int32(Pending) {
		p.mu.Unlock()
		return
	}
	h0, useH0 := p.h0, p.h0Used
	extra := p.extra
	p.h0, p.h0Used, p.extra = listener{}, false, nil
	p.value = value
	p.state.Store(int32(Fulfilled))
	if useH0 {
		p.scheduleHandler(h0, Fulfilled)
	}
	for _, h := range extra {
		p.scheduleHandler(h, Fulfilled)
	}
	p.mu.Unlock()

	p.zone.decref()
}

func (p *Promise) reject(reason any) {
	if mapper := p.loop.RejectionMapper(); mapper != nil {
		reason = mapper(reason)
	}

	err, ok := reason.(error)
	if !ok && reason != nil {
		err = WrapError("rejected with non-error value", &nonErrorReason{value: reason})
	}

	p.mu.Lock()
	if p.state.Load() != int32(Pending) {
		p.mu.Unlock()
		return
	}
	h0, useH0 := p.h0, p.h0Used
	extra := p.extra
	p.h0, p.h0Used, p.extra = listener{}, false, nil
	p.err = err
	p.state.Store(int32(Rejected))
	if useH0 {
		p.scheduleHandler(h0, Rejected)
	}
	for _, h := range extra {
		p.scheduleHandler(h, Rejected)
	}
	p.mu.Unlock()

	// Always register: whether this rejection is ultimately reported
	// depends on whether Then/Catch marked p handled by the time the
	// tick's unhandled-rejection sweep runs, not on whether a handler
	// happened to be attached at the instant of rejection.
	p.loop.unhandled.track(p.loop, p)
	p.zone.decref()
}

// nonErrorReason wraps a non-error rejection value (e.g. a rejected
// promise's reason being a plain string or struct) so it still satisfies
// the error interface the rest of the engine is built around.
type nonErrorReason struct{ value any }

func (e *nonErrorReason) Error() string { return "zonepromise: non-error rejection reason" }
func (e *nonErrorReason) Value() any    { return e.value }

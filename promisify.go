// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package zonepromise

import (
	"context"
)

// Promisify is the wrapped entry point the spec calls for when a host
// cannot patch a global await primitive (see doc.go and [NewScope]): it
// runs fn on a new goroutine, captures the zone active on the calling
// goroutine, and re-enters that zone when scheduling the settlement back
// onto the microtask queue, so fn's result is delivered to continuations
// as if it had never left the zone that spawned it.
//
// Grounded on the teacher's Loop.Promisify (promisify.go): same
// Goexit/panic/context-cancellation handling, single-owner resolution via
// the microtask queue with a direct-resolution fallback if the loop has
// already shut down, same shutdown-tracking WaitGroup.
func (l *Loop) Promisify(ctx context.Context, fn func(ctx context.Context) (any, error)) *Promise {
	l.promisifyMu.Lock()
	if !l.state.CanAcceptWork() {
		l.promisifyMu.Unlock()
		return l.Rejected(ErrLoopTerminated)
	}
	zone := l.ActiveZone()
	p := l.newPending()
	l.promisifyWg.Add(1)
	l.promisifyMu.Unlock()

	go func() {
		defer l.promisifyWg.Done()
		completed := false

		select {
		case <-ctx.Done():
			completed = true
			l.settleAcross(zone, func() { p.reject(ctx.Err()) })
			return
		default:
		}

		defer func() {
			if r := recover(); r != nil {
				l.settleAcross(zone, func() { p.reject(PanicError{Value: r}) })
			} else if !completed {
				l.settleAcross(zone, func() { p.reject(ErrGoexit) })
			}
		}()

		res, err := fn(ctx)
		if err != nil {
			l.settleAcross(zone, func() { p.reject(err) })
		} else {
			l.settleAcross(zone, func() { p.resolve(res) })
		}
		completed = true
	}()

	return p
}

// settleAcross schedules fn to run back inside zone, on the microtask
// queue; if the loop has already shut down it falls back to running fn
// directly so the promise always settles rather than hanging forever.
func (l *Loop) settleAcross(zone *Zone, fn func()) {
	err := l.ScheduleMicrotask(func() {
		l.UsePSD(zone, fn)
	})
	if err != nil {
		fn()
	}
}

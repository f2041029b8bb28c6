// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package zonepromise

// Wrap binds the zone active on the calling goroutine at the moment Wrap
// is called into a reusable callback: every call to the returned func
// re-enters that zone, invokes fn, and restores whichever zone was active
// before returning. This is the entry point external callback sources (a
// timer, a socket event, any callback fired from outside this engine's own
// drain cycle) should be wrapped in, so that code scheduling promises from
// such a callback observes the zone that was active when the callback was
// registered, not whatever happens to be active on the goroutine invoking
// it.
//
// If no drain is already in progress when the wrapped func is called, it
// also opens a virtual tick around fn: anything fn schedules is drained
// before the wrapped func returns, the same way a host engine's callback
// dispatch is always followed by a microtask checkpoint. A call made from
// inside an already-running drain (e.g. a wrapped func invoked
// synchronously by a handler) does not nest a second drain; the ambient
// one picks up whatever it scheduled.
//
// A panic inside fn is recovered and, if onError is non-nil, passed to it
// as a [PanicError]; otherwise it is silently discarded, mirroring
// [safeExecute]'s "a panicking callback must not take down the caller"
// rule elsewhere in this package. onError itself runs inside the bound
// zone, before the caller's zone is restored.
func (l *Loop) Wrap(fn func(), onError func(error)) func() {
	zone := l.ActiveZone()
	return func() {
		_, restore := l.zones.push(zone)
		ownsTick := l.draining.CompareAndSwap(false, true)

		func() {
			defer restore()
			defer func() {
				if r := recover(); r != nil {
					if onError != nil {
						onError(PanicError{Value: r})
					}
				}
			}()
			fn()
		}()

		if ownsTick {
			l.draining.Store(false)
			l.drain()
		}
	}
}

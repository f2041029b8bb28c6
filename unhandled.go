// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package zonepromise

import "sync"

// UnhandledRejection is the detail payload of the "unhandledrejection"
// [CustomEvent] dispatched through [UnhandledRejections]. Grounded on the
// teacher's eventtarget.go CustomEvent (the closest thing in the corpus to
// the DOM's dispatchable, default-preventable unhandledrejection event this
// mirrors): the payload travels via Event.Detail rather than an embedded
// struct, since DispatchEvent's listeners only ever see a *Event, and an
// embedded Event's address does not let a listener recover the outer type.
type UnhandledRejection struct {
	Promise *Promise
	Reason  any
}

// UnhandledRejections is the process-wide [EventTarget] unhandled
// rejections are dispatched through. Call PreventDefault on the event
// inside a listener to suppress the fallback log line a [Loop] emits for
// events nobody claimed.
var UnhandledRejections = NewEventTarget()

// unhandledTracker records rejected promises pending an end-of-tick
// unhandled-rejection sweep. Grounded on the teacher's
// trackRejection/checkUnhandledRejections pair (promise.go), simplified
// from its CAS/channel-synchronized design to a plain mutex-guarded slice:
// this bookkeeping runs at most once per rejection and once per tick
// flush, nowhere near hot enough to need a lock-free path. A slice, not a
// map, because reporting order must be the rejection order: callers
// depending on "the first recorded rejection" within a tick (e.g.
// [Loop.Follow]) need a true FIFO, and Go map iteration order is
// randomized.
type unhandledTracker struct {
	mu      sync.Mutex
	pending []*Promise
	queued  bool
}

func newUnhandledTracker() *unhandledTracker {
	return &unhandledTracker{}
}

// track registers p (already rejected) as a candidate for reporting,
// scheduling a flush at the end of the current tick if one is not already
// scheduled. Whether it actually reports depends on whether a handler was
// attached by flush time: [Promise.Then] always marks p handled, even
// when called after the rejection, so attaching a .catch in the same tick
// a promise rejects still suppresses the report.
func (t *unhandledTracker) track(l *Loop, p *Promise) {
	t.mu.Lock()
	t.pending = append(t.pending, p)
	needsFlush := !t.queued
	if needsFlush {
		t.queued = true
	}
	t.mu.Unlock()

	if needsFlush {
		l.addTickFinalizer(func() { t.flush(l) })
	}
}

func (t *unhandledTracker) flush(l *Loop) {
	t.mu.Lock()
	pending := t.pending
	t.pending = nil
	t.queued = false
	t.mu.Unlock()

	for _, p := range pending {
		if p.handled.Load() {
			continue
		}
		// The rejection mapper already ran inside Promise.reject, at the
		// moment of rejection; p.err is already the mapped reason.
		reportUnhandled(l, p, p.err)
	}
}

func reportUnhandled(l *Loop, p *Promise, reason any) {
	for z := p.zone; z != nil; z = z.parent {
		if z.onUnhandled != nil {
			z.onUnhandled(p)
			return
		}
	}

	event := NewCustomEventWithOptions("unhandledrejection", &UnhandledRejection{
		Promise: p,
		Reason:  reason,
	}, false, true)
	notCanceled := UnhandledRejections.DispatchEvent(event.EventPtr())
	if notCanceled {
		l.logf(LevelWarn, "unhandled promise rejection", map[string]any{
			"promise": p.id,
			"reason":  reason,
		})
	}
}

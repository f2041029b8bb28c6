// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package zonepromise

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Zone is a process-wide async-context scope. Every promise remembers the
// zone active when it was created; every continuation re-enters the zone
// that was active when it was registered, no matter which goroutine ends
// up settling the promise it reacts to. Zones nest: [Loop.NewScope] and [Loop.Follow] push a child of the
// calling goroutine's current zone and pop it back on return.
//
// A Zone has no literal analogue in the teacher's event loop (which has no
// async-context concept at all); it is grounded instead on the loop's own
// getGoroutineID/isLoopThread idiom, used here to give "the currently
// active zone" goroutine-local semantics without a language-level
// goroutine-local-storage primitive.
type Zone struct {
	id          uint64
	parent      *Zone
	loop        *Loop
	props       map[string]any
	onUnhandled func(*Promise)

	mu         sync.Mutex
	ref        int64
	closed     bool
	finalizers []func()
}

var nextZoneID atomic.Uint64

func newZone(loop *Loop, parent *Zone, props map[string]any) *Zone {
	z := &Zone{
		id:     nextZoneID.Add(1),
		parent: parent,
		loop:   loop,
		props:  props,
	}
	if parent != nil {
		z.onUnhandled = parent.onUnhandled
	}
	return z
}

// ID is a process-unique identifier, useful for log correlation.
func (z *Zone) ID() uint64 { return z.id }

// Parent returns the zone this zone was created inside, or nil for the
// global zone.
func (z *Zone) Parent() *Zone { return z.parent }

// Loop returns the [Loop] that owns this zone.
func (z *Zone) Loop() *Loop { return z.loop }

// Get looks up a property set when the zone (or an ancestor) was created.
func (z *Zone) Get(key string) (any, bool) {
	for zn := z; zn != nil; zn = zn.parent {
		if v, ok := zn.props[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// OnUnhandled sets the callback invoked for a rejected promise created in
// this zone (or a descendant that did not override it) that reaches the
// end of a tick with no rejection handler attached.
func (z *Zone) OnUnhandled(fn func(*Promise)) { z.onUnhandled = fn }

func (z *Zone) incref() {
	atomic.AddInt64(&z.ref, 1)
}

func (z *Zone) decref() {
	if atomic.AddInt64(&z.ref, -1) == 0 {
		z.scheduleFinalize()
	}
}

// scheduleFinalize defers maybeFinalize to the current tick's
// finalizer-processing phase, rather than running it inline. This matters
// for callers like [Loop.Follow] that observe zone completion via
// OnFinalize and need to know about every rejection that went unhandled in
// the zone: unhandled-rejection reporting is itself a deferred tick
// finalizer (see unhandledTracker.track), registered before decref runs
// inside Promise.reject. Running maybeFinalize inline could let a zone
// finalize, and Follow resolve, before a rejection recorded in the same
// tick had a chance to be reported. Deferring both to the finalizer phase,
// in the order they were registered, avoids the race. The global zone is
// exempted: it is closed at construction, never receives OnFinalize
// callbacks, and finalizing it on every top-level settlement would be
// pure overhead.
func (z *Zone) scheduleFinalize() {
	if z == z.loop.global {
		z.maybeFinalize()
		return
	}
	z.loop.addTickFinalizer(z.maybeFinalize)
}

func (z *Zone) maybeFinalize() {
	z.mu.Lock()
	if !z.closed || atomic.LoadInt64(&z.ref) != 0 {
		z.mu.Unlock()
		return
	}
	finalizers := z.finalizers
	z.finalizers = nil
	z.mu.Unlock()
	for _, fn := range finalizers {
		fn()
	}
}

// OnFinalize registers fn to run once this zone has been closed (its
// NewScope/Follow body has returned) and every promise created inside it
// has settled and been fully handled. Mirrors the storage API's need to
// release a transactional resource exactly when nothing can still use it.
func (z *Zone) OnFinalize(fn func()) {
	z.mu.Lock()
	if z.closed && atomic.LoadInt64(&z.ref) == 0 {
		z.mu.Unlock()
		fn()
		return
	}
	z.finalizers = append(z.finalizers, fn)
	z.mu.Unlock()
}

func (z *Zone) close() {
	z.mu.Lock()
	z.closed = true
	z.mu.Unlock()
	z.scheduleFinalize()
}

// zoneRegistry tracks the currently active zone per goroutine, giving Zone
// switching goroutine-local semantics without a language-level TLS
// primitive. Grounded on the teacher's getGoroutineID/isLoopThread pattern
// (loop.go), reused here for an entirely different purpose: identifying
// "whose zone is this" rather than "are we on the loop thread".
type zoneRegistry struct {
	mu      sync.RWMutex
	current map[uint64]*Zone
}

func newZoneRegistry() *zoneRegistry {
	return &zoneRegistry{current: make(map[uint64]*Zone)}
}

func (r *zoneRegistry) get(global *Zone) *Zone {
	gid := goroutineID()
	r.mu.RLock()
	z, ok := r.current[gid]
	r.mu.RUnlock()
	if !ok {
		return global
	}
	return z
}

func (r *zoneRegistry) push(z *Zone) (gid uint64, restore func()) {
	gid = goroutineID()
	r.mu.Lock()
	prev, had := r.current[gid]
	r.current[gid] = z
	r.mu.Unlock()
	return gid, func() {
		r.mu.Lock()
		if had {
			r.current[gid] = prev
		} else {
			delete(r.current, gid)
		}
		r.mu.Unlock()
	}
}

// set pins z as the active zone for the calling goroutine until changed
// again or cleared with a nil z, with no restore on return. Unlike push,
// this is a permanent reassignment, not a scoped re-entry: grounded on the
// spec's runtime accessor for the active zone, distinct from
// [Loop.NewScope]/[Loop.UsePSD]'s stack-like push/pop.
func (r *zoneRegistry) set(z *Zone) {
	gid := goroutineID()
	r.mu.Lock()
	if z == nil {
		delete(r.current, gid)
	} else {
		r.current[gid] = z
	}
	r.mu.Unlock()
}

// goroutineID returns the current goroutine's numeric ID by parsing the
// "goroutine NNN [...]" header runtime.Stack produces. It is a diagnostic
// trick, not a public API: treat the returned value as an opaque key for
// "current execution context", nothing more.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}

// ActiveZone returns the zone active on the calling goroutine for l, or
// l's global zone if none has been entered.
func (l *Loop) ActiveZone() *Zone {
	return l.zones.get(l.global)
}

// SetActiveZone pins z as the active zone for the calling goroutine, with
// no corresponding restore: unlike [Loop.NewScope] and [Loop.UsePSD], this
// is a permanent reassignment the caller is responsible for undoing (with
// another SetActiveZone call, typically back to the previous result of
// ActiveZone) if it wants to leave the zone later. Pass nil to reset to
// the global zone. Intended for hosts embedding this engine behind their
// own async boundary, where a scoped push/pop is not expressive enough.
func (l *Loop) SetActiveZone(z *Zone) {
	l.zones.set(z)
}

// NewScope pushes a new child of the active zone, runs fn synchronously
// inside it, then pops back to the previous zone and closes the new zone
// (queuing its finalizers once every promise it spawned has settled).
//
// Any promise created by fn, or by a continuation that re-enters this
// zone via [Loop.Promisify], belongs to the returned zone.
func (l *Loop) NewScope(fn func(), props map[string]any) *Zone {
	return l.newScope(props, nil, fn)
}

// newScope is NewScope's implementation, with an extra setup hook that
// runs against the new zone after it is constructed but before it is
// pushed as active or fn runs. [Loop.Follow] uses this to register its
// rejection-tracking OnUnhandled callback before any work inside the zone
// has a chance to reject.
func (l *Loop) newScope(props map[string]any, setup func(z *Zone), fn func()) *Zone {
	parent := l.ActiveZone()
	z := newZone(l, parent, props)
	if setup != nil {
		setup(z)
	}
	_, restore := l.zones.push(z)
	func() {
		defer restore()
		fn()
	}()
	z.close()
	return z
}

// UsePSD ("use partial/preserved scope data") re-enters z for the duration
// of fn, then restores whichever zone was active beforehand. Used by
// [Loop.Promisify] and the goja bridge to rebind a captured zone across a
// goroutine or host-await boundary.
func (l *Loop) UsePSD(z *Zone, fn func()) {
	_, restore := l.zones.push(z)
	defer restore()
	fn()
}

// Follow runs fn inside a new child zone, like [Loop.NewScope], but instead
// of the zone it returns a [Promise] tracking the zone's work as a
// whole: fn is not an executor, it just kicks work off (by creating
// promises, spawning further Then chains, calling Promisify, and so on)
// however it likes. The returned promise resolves with nil once every
// promise created in the zone has settled (the zone's ref count reaches
// zero), unless any of them rejected and went unhandled within the zone,
// in which case it rejects with the first such reason recorded. A
// rejection whose promise has a handler attached by the end of the tick
// in which it rejected (e.g. a Catch attached inside fn to a promise fn
// then rejects) never reaches Follow at all: the zone's own OnUnhandled
// callback only fires for rejections nothing inside the zone claimed.
func (l *Loop) Follow(fn func(), props map[string]any) *Promise {
	p, resolve, reject := l.WithResolvers()

	var mu sync.Mutex
	var recorded bool
	var firstReason error

	scope := l.newScope(props, func(z *Zone) {
		z.OnUnhandled(func(rp *Promise) {
			mu.Lock()
			if !recorded {
				recorded = true
				firstReason = rp.Reason()
			}
			mu.Unlock()
		})
	}, fn)

	scope.OnFinalize(func() {
		mu.Lock()
		reason, got := firstReason, recorded
		mu.Unlock()
		if got {
			reject(reason)
		} else {
			resolve(nil)
		}
	})

	return p
}

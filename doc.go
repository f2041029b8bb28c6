// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package zonepromise implements a Promise/A+ engine with its own emulated
// microtask queue and a zone system for tracking async context across
// promise chains.
//
// # Why not the host scheduler
//
// A goroutine that resolves a [Promise] is not the goroutine that runs its
// continuations: continuations are always deferred onto a private microtask
// queue and drained by a single logical consumer, the [Loop]. This lets a
// chain of Then/Catch/Finally calls keep acting as one logical unit of work
// even though, underneath, settlement can come from arbitrary goroutines.
// Callers that need to keep a transactional resource (a *sql.Tx, a bound
// context) open across a resolution handler can do so as long as they never
// cross a real goroutine boundary without going through [Loop.Promisify] or
// a [Zone].
//
// # Zones
//
// A [Zone] is a process-wide, ref-counted async-context scope.
// [Loop.NewScope] pushes a new zone and runs a function inside it; any
// promise created while that zone is active remembers it, and any
// continuation registered while that zone is active re-enters the same
// zone before running, regardless of which goroutine settles the promise.
// [Loop.Follow] does the same but, instead of the zone, returns a [Promise]
// that settles once the work started in the zone has settled.
//
// # Long stack traces
//
// When debug mode is enabled (see [WithDebugMode]), every promise records a
// back-link to the promise it was derived from. [Promise.Stack] lazily
// walks that chain and renders a JavaScript-style "long stack trace" the
// first time it is read.
//
// # Unhandled rejections
//
// A rejected promise with no attached rejection handler by the end of the
// tick in which it settled is reported through the package-level
// [UnhandledRejections] event target, mirroring the browser's
// unhandledrejection event (including PreventDefault semantics).
package zonepromise

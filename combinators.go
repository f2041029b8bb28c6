// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package zonepromise

import "sync"

// Resolved returns a promise already fulfilled with v, on the default Loop.
func Resolved(v any) *Promise { return Default().Resolved(v) }

// Resolved returns a promise already fulfilled with v.
func (l *Loop) Resolved(v any) *Promise {
	p := l.newPending()
	p.resolve(v)
	return p
}

// Rejected returns a promise already rejected with reason, on the default Loop.
func Rejected(reason error) *Promise { return Default().Rejected(reason) }

// Rejected returns a promise already rejected with reason.
func (l *Loop) Rejected(reason error) *Promise {
	p := l.newPending()
	p.reject(reason)
	return p
}

// WithResolvers returns a new pending promise along with functions to
// settle it, mirroring ES2024's Promise.withResolvers().
func WithResolvers() (p *Promise, resolve func(any), reject func(error)) {
	return Default().WithResolvers()
}

// WithResolvers is the [Loop]-scoped form of the package-level WithResolvers.
func (l *Loop) WithResolvers() (p *Promise, resolve func(any), reject func(error)) {
	p = l.newPending()
	return p, p.resolve, p.reject
}

// All returns a promise that fulfills with the slice of every input's
// value, in input order, once all fulfill; it rejects as soon as any input
// rejects, with that rejection's reason.
func All(promises []*Promise) *Promise { return Default().All(promises) }

func (l *Loop) All(promises []*Promise) *Promise {
	out := l.newPending()
	if len(promises) == 0 {
		out.resolve([]any{})
		return out
	}

	values := make([]any, len(promises))
	var mu sync.Mutex
	remaining := len(promises)

	for i, in := range promises {
		i := i
		in.Then(func(v any) (any, error) {
			mu.Lock()
			values[i] = v
			remaining--
			done := remaining == 0
			mu.Unlock()
			if done {
				out.resolve(values)
			}
			return nil, nil
		}, func(reason any) (any, error) {
			out.reject(reason)
			return nil, nil
		})
	}
	return out
}

// Race settles exactly like whichever input promise settles first.
func Race(promises []*Promise) *Promise { return Default().Race(promises) }

func (l *Loop) Race(promises []*Promise) *Promise {
	out := l.newPending()
	for _, in := range promises {
		in.Then(func(v any) (any, error) {
			out.resolve(v)
			return nil, nil
		}, func(reason any) (any, error) {
			out.reject(reason)
			return nil, nil
		})
	}
	return out
}

// SettledOutcome is one input's result, as recorded by [AllSettled].
type SettledOutcome struct {
	Status PromiseState // Fulfilled or Rejected
	Value  any
	Reason error
}

// AllSettled fulfills with a []SettledOutcome once every input has
// settled, regardless of how. It never rejects.
func AllSettled(promises []*Promise) *Promise { return Default().AllSettled(promises) }

func (l *Loop) AllSettled(promises []*Promise) *Promise {
	out := l.newPending()
	if len(promises) == 0 {
		out.resolve([]SettledOutcome{})
		return out
	}

	results := make([]SettledOutcome, len(promises))
	var mu sync.Mutex
	remaining := len(promises)

	settle := func(i int, outcome SettledOutcome) {
		mu.Lock()
		results[i] = outcome
		remaining--
		done := remaining == 0
		mu.Unlock()
		if done {
			out.resolve(results)
		}
	}

	for i, in := range promises {
		i := i
		in.Then(func(v any) (any, error) {
			settle(i, SettledOutcome{Status: Fulfilled, Value: v})
			return nil, nil
		}, func(reason any) (any, error) {
			err, _ := reason.(error)
			settle(i, SettledOutcome{Status: Rejected, Reason: err})
			return nil, nil
		})
	}
	return out
}

// Any fulfills with the first input to fulfill. If every input rejects, it
// rejects with an [AggregateError] collecting every reason in input order.
func Any(promises []*Promise) *Promise { return Default().Any(promises) }

func (l *Loop) Any(promises []*Promise) *Promise {
	out := l.newPending()
	if len(promises) == 0 {
		out.reject(&AggregateError{Message: ErrNoPromiseResolved.Error(), Errors: nil})
		return out
	}

	errs := make([]error, len(promises))
	var mu sync.Mutex
	remaining := len(promises)

	for i, in := range promises {
		i := i
		in.Then(func(v any) (any, error) {
			out.resolve(v)
			return nil, nil
		}, func(reason any) (any, error) {
			err, _ := reason.(error)
			mu.Lock()
			errs[i] = err
			remaining--
			done := remaining == 0
			mu.Unlock()
			if done {
				out.reject(&AggregateError{Message: "all promises were rejected", Errors: errs})
			}
			return nil, nil
		})
	}
	return out
}

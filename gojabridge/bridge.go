// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package gojabridge gives the zonepromise engine a literal, testable
// implementation of host-promise patching: github.com/dop251/goja embeds a
// real JavaScript interpreter in Go, with a real host Promise and real
// await, which a bare Go program has neither of. Binding goja's global
// Promise constructor to a [zonepromise.Loop] means an `await` inside a
// goja async function genuinely crosses the zone/microtask boundary the
// rest of this module only has to simulate for native Go callers via
// [zonepromise.Loop.Promisify].
//
// Grounded on the teacher's sibling goja-eventloop module (adapter.go):
// same approach of replacing the VM's global Promise constructor with one
// backed by the engine, and hand-wiring then/catch/finally onto the
// resulting object since goja has no way to subclass a host constructor.
package gojabridge

import (
	"fmt"

	"github.com/dop251/goja"

	"github.com/go-async/zonepromise"
)

// Runtime binds a goja VM's Promise constructor to a zonepromise [zonepromise.Loop],
// so promises created from JavaScript running inside the VM settle through
// the same zone-aware microtask queue as promises created from Go.
type Runtime struct {
	vm   *goja.Runtime
	loop *zonepromise.Loop
	zone *zonepromise.Zone
}

// New binds a fresh [Runtime] to loop, installing a Promise constructor and
// a queueMicrotask global on vm.
func New(loop *zonepromise.Loop, vm *goja.Runtime) (*Runtime, error) {
	r := &Runtime{vm: vm, loop: loop}
	if err := vm.Set("queueMicrotask", r.queueMicrotask); err != nil {
		return nil, err
	}
	promiseCtor := vm.ToValue(r.promiseConstructor).(*goja.Object)
	if err := vm.Set("Promise", promiseCtor); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Runtime) queueMicrotask(call goja.FunctionCall) goja.Value {
	fn := call.Argument(0)
	callable, ok := goja.AssertFunction(fn)
	if !ok {
		return goja.Undefined()
	}
	zone := r.loop.ActiveZone()
	_ = r.loop.ScheduleMicrotask(func() {
		r.loop.UsePSD(zone, func() {
			_, _ = callable(goja.Undefined())
		})
	})
	return goja.Undefined()
}

// promiseConstructor backs `new Promise(executor)` from JavaScript,
// creating a real [zonepromise.Promise] and exposing then/catch/finally on
// the JS-visible object. Every callback goja invokes through those methods
// re-enters the zone active when that method was called, which is how an
// `await` inside a goja async function ends up zone-bound: async/await
// desugars to .then chains internally in goja, same as in a real engine.
func (r *Runtime) promiseConstructor(call goja.ConstructorCall) *goja.Object {
	executor := call.Argument(0)
	callable, ok := goja.AssertFunction(executor)
	if !ok {
		panic(r.vm.NewTypeError("Promise executor must be a function"))
	}

	zone := r.loop.ActiveZone()
	var p *zonepromise.Promise
	r.loop.UsePSD(zone, func() {
		p = r.loop.New(func(resolve func(any), reject func(error)) {
			_, err := callable(goja.Undefined(),
				r.vm.ToValue(func(v goja.Value) { resolve(v.Export()) }),
				r.vm.ToValue(func(reason goja.Value) { reject(exportErr(reason)) }),
			)
			if err != nil {
				reject(err)
			}
		})
	})

	obj := call.This
	r.bindMethods(obj, p)
	return obj
}

func (r *Runtime) bindMethods(obj *goja.Object, p *zonepromise.Promise) {
	_ = obj.Set("_zonePromise", p)

	_ = obj.Set("then", r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		onFulfilled := toHandler(r.vm, call.Argument(0))
		onRejected := toHandler(r.vm, call.Argument(1))
		child := p.Then(onFulfilled, onRejected)
		return r.wrap(child)
	}))

	_ = obj.Set("catch", r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		onRejected := toHandler(r.vm, call.Argument(0))
		child := p.Then(nil, onRejected)
		return r.wrap(child)
	}))

	_ = obj.Set("finally", r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		fn := call.Argument(0)
		callable, ok := goja.AssertFunction(fn)
		child := p.Finally(func() {
			if ok {
				_, _ = callable(goja.Undefined())
			}
		})
		return r.wrap(child)
	}))
}

func (r *Runtime) wrap(p *zonepromise.Promise) *goja.Object {
	obj := r.vm.NewObject()
	r.bindMethods(obj, p)
	return obj
}

func toHandler(vm *goja.Runtime, fn goja.Value) func(any) (any, error) {
	if fn == nil || goja.IsUndefined(fn) {
		return nil
	}
	callable, ok := goja.AssertFunction(fn)
	if !ok {
		return nil
	}
	return func(v any) (any, error) {
		ret, err := callable(goja.Undefined(), toJSValue(vm, v))
		if err != nil {
			return nil, err
		}
		return ret.Export(), nil
	}
}

// toJSValue re-exposes v to JS, recovering the original goja.Value for a
// rejection reason that started life as a JS throw: a plain vm.ToValue
// round-trip through [jsRejection] (an unexported-field Go struct) would
// reflect to an empty object, losing properties like Error.message that
// `catch(e)` handlers expect to read.
func toJSValue(vm *goja.Runtime, v any) goja.Value {
	if jr, ok := v.(*jsRejection); ok {
		return jr.original
	}
	return vm.ToValue(v)
}

// exportErr converts a rejection reason thrown/passed from JS into a Go
// error, so it can travel through [zonepromise.Promise.Reason] like any
// native rejection. Preserves the original goja.Value so toJSValue can
// hand the exact same JS object back to a later catch handler.
func exportErr(v goja.Value) error {
	if v == nil {
		return nil
	}
	if err, ok := v.Export().(error); ok {
		return err
	}
	return &jsRejection{original: v}
}

type jsRejection struct{ original goja.Value }

func (e *jsRejection) Error() string {
	return fmt.Sprintf("zonepromise: javascript rejection: %v", e.original.Export())
}

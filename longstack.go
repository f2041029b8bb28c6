// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package zonepromise

import (
	"fmt"
	"runtime"
)

const (
	maxStackDepth  = 32 // frames captured per promise via runtime.Callers
	maxBackLinks   = 100
	maxRenderDepth = 20
)

func captureCreationStack() []uintptr {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(3, pcs)
	if n == 0 {
		return nil
	}
	return pcs[:n]
}

func formatStack(pcs []uintptr) string {
	if len(pcs) == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs)
	var out string
	for {
		frame, more := frames.Next()
		if frame.Function != "" {
			if out != "" {
				out += "\n"
			}
			out += fmt.Sprintf("%s (%s:%d)", frame.Function, frame.File, frame.Line)
		}
		if !more {
			break
		}
	}
	return out
}

// linkTo records p as derived from parent, for [Promise.Stack] to walk
// later. Depth is capped at maxBackLinks: once parent's chain is that
// deep, p records no back-link at all, and neither does anything derived
// from p, the same bound the spec's long stacks place on "up to 100
// back-links".
func (p *Promise) linkTo(parent *Promise) {
	if parent == nil {
		return
	}
	if parent.prevDepth >= maxBackLinks {
		p.prev = nil
		p.prevDepth = maxBackLinks
		return
	}
	p.prev = parent
	p.prevDepth = parent.prevDepth + 1
}

// CreationStackTrace returns a formatted stack trace of where this promise
// was created, one line per frame as "package.function (file:line)". Empty
// unless [WithDebugMode] was enabled when the promise was created. Unlike
// [Promise.Stack], it does not walk back through prior links in the chain.
func (p *Promise) CreationStackTrace() string {
	return formatStack(p.creationStack)
}

// Stack lazily renders a long stack trace: this promise's own creation
// stack, then each ancestor's, joined by "From previous: ", up to
// maxRenderDepth frames of chain. Empty unless [WithDebugMode] was enabled
// when the chain was created.
func (p *Promise) Stack() string {
	if len(p.creationStack) == 0 && p.prev == nil {
		return ""
	}
	out := formatStack(p.creationStack)
	cur := p.prev
	for depth := 0; cur != nil && depth < maxRenderDepth; depth++ {
		frame := formatStack(cur.creationStack)
		if frame == "" {
			cur = cur.prev
			continue
		}
		if out != "" {
			out += "\nFrom previous: "
		}
		out += frame
		cur = cur.prev
	}
	return out
}

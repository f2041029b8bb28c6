// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package ring holds the microtask queue's backing buffer: a simple
// mutex-guarded FIFO of thunks, chunked so a long-running drain doesn't
// repeatedly reallocate a single growing slice.
//
// This is a deliberate simplification of the chunked-ingress pattern this
// package is grounded on: that source used a lock-free MPSC ring plus an
// overflow chunk list to support many concurrent producers racing a single
// consumer with no locks at all. This engine's microtask queue has exactly
// one consumer (the tick scheduler) and allows any goroutine to be a
// producer, but producers here are rare relative to ticks (one push per
// scheduled continuation, not per byte), so a mutex around the push/pop
// path is simpler to audit and costs nothing the single consumer would
// notice.
package ring

import "sync"

const chunkSize = 256

type chunk struct {
	items [chunkSize]func()
	next  *chunk
}

// Queue is a FIFO of thunks, safe for concurrent Push from many goroutines
// and Pop from exactly one.
type Queue struct {
	mu         sync.Mutex
	head, tail *chunk
	headIdx    int // next item to pop, within head
	tailIdx    int // next free slot, within tail
	len        int
}

// New constructs an empty Queue.
func New() *Queue {
	c := &chunk{}
	return &Queue{head: c, tail: c}
}

// Push enqueues fn. Safe for concurrent use.
func (q *Queue) Push(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.tailIdx == chunkSize {
		nc := &chunk{}
		q.tail.next = nc
		q.tail = nc
		q.tailIdx = 0
	}
	q.tail.items[q.tailIdx] = fn
	q.tailIdx++
	q.len++
}

// Pop dequeues the oldest thunk, or returns ok=false if the queue is empty.
func (q *Queue) Pop() (fn func(), ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.len == 0 {
		return nil, false
	}
	fn = q.head.items[q.headIdx]
	q.head.items[q.headIdx] = nil
	q.headIdx++
	q.len--
	if q.headIdx == chunkSize {
		if q.head.next != nil {
			q.head = q.head.next
		} else {
			// Keep this chunk (will be reused once tail catches up),
			// but reset it so it can be re-filled.
			*q.head = chunk{}
			q.tail = q.head
			q.tailIdx = 0
		}
		q.headIdx = 0
	}
	return fn, true
}

// Len reports the number of queued thunks. Approximate under concurrent
// pushes, exact once nothing else is running.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.len
}

// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package zonepromise_test

import (
	"errors"
	"testing"

	"github.com/go-async/zonepromise"
	"github.com/go-async/zonepromise/ticker"
)

type redactedError struct{ original error }

func (e *redactedError) Error() string { return "redacted: " + e.original.Error() }

func mapToRedacted(reason any) any {
	err, ok := reason.(error)
	if !ok {
		return reason
	}
	return &redactedError{original: err}
}

func TestRejectionMapper_AppliesAtRejectionNotJustToDiagnostics(t *testing.T) {
	loop, err := zonepromise.New(
		zonepromise.WithScheduler(ticker.NewInlineScheduler()),
		zonepromise.WithRejectionMapper(mapToRedacted),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer loop.Shutdown()

	original := errors.New("secret")
	p, _, reject := loop.WithResolvers()

	var caught error
	p.Catch(func(reason error) (any, error) {
		caught = reason
		return nil, nil
	})
	reject(original)

	if p.Reason() == original {
		t.Fatal("Reason() must observe the mapped reason, not the original")
	}
	if caught == nil {
		t.Fatal("Catch never ran")
	}
	if caught.Error() != "redacted: secret" {
		t.Fatalf("Catch observed %q, want the mapped reason", caught.Error())
	}
}

func TestLoop_SetRejectionMapper_ChangesMapperAtRuntime(t *testing.T) {
	loop, err := zonepromise.New(zonepromise.WithScheduler(ticker.NewInlineScheduler()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer loop.Shutdown()

	if mapper := loop.RejectionMapper(); mapper != nil {
		t.Fatal("expected no rejection mapper by default")
	}

	loop.SetRejectionMapper(mapToRedacted)
	if loop.RejectionMapper() == nil {
		t.Fatal("SetRejectionMapper did not take effect")
	}

	original := errors.New("secret")
	rejected := loop.Rejected(original)
	if rejected.Reason().Error() != "redacted: secret" {
		t.Fatalf("reason = %v, want the mapped reason", rejected.Reason())
	}
}

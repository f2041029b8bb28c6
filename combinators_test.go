// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package zonepromise_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-async/zonepromise"
	"github.com/go-async/zonepromise/ticker"
)

func newCombinatorLoop(t *testing.T) *zonepromise.Loop {
	t.Helper()
	loop, err := zonepromise.New(zonepromise.WithScheduler(ticker.NewInlineScheduler()))
	require.NoError(t, err)
	t.Cleanup(loop.Shutdown)
	return loop
}

func TestAll_FulfillsWithValuesInOrder(t *testing.T) {
	loop := newCombinatorLoop(t)
	p1, r1, _ := loop.WithResolvers()
	p2, r2, _ := loop.WithResolvers()
	p3, r3, _ := loop.WithResolvers()

	out := loop.All([]*zonepromise.Promise{p1, p2, p3})

	r2("b")
	r1("a")
	r3("c")

	require.Equal(t, zonepromise.Fulfilled, out.State())
	assert.Equal(t, []any{"a", "b", "c"}, out.Value())
}

func TestAll_RejectsOnFirstRejection(t *testing.T) {
	loop := newCombinatorLoop(t)
	p1, _, _ := loop.WithResolvers()
	p2, _, reject2 := loop.WithResolvers()

	out := loop.All([]*zonepromise.Promise{p1, p2})

	boom := errors.New("boom")
	reject2(boom)

	require.Equal(t, zonepromise.Rejected, out.State())
	assert.Equal(t, boom, out.Reason())
}

func TestAll_EmptyInputFulfillsImmediately(t *testing.T) {
	loop := newCombinatorLoop(t)
	out := loop.All(nil)
	require.Equal(t, zonepromise.Fulfilled, out.State())
	assert.Equal(t, []any{}, out.Value())
}

func TestRace_SettlesLikeFirstToSettle(t *testing.T) {
	loop := newCombinatorLoop(t)
	p1, _, reject1 := loop.WithResolvers()
	p2, resolve2, _ := loop.WithResolvers()

	out := loop.Race([]*zonepromise.Promise{p1, p2})
	resolve2("fast")

	require.Equal(t, zonepromise.Fulfilled, out.State())
	assert.Equal(t, "fast", out.Value())

	// A later settlement of the loser must not change the outcome.
	reject1(errors.New("too slow"))
	assert.Equal(t, zonepromise.Fulfilled, out.State())
}

func TestAllSettled_NeverRejects(t *testing.T) {
	loop := newCombinatorLoop(t)
	p1, resolve1, _ := loop.WithResolvers()
	p2, _, reject2 := loop.WithResolvers()

	out := loop.AllSettled([]*zonepromise.Promise{p1, p2})

	boom := errors.New("boom")
	resolve1("ok")
	reject2(boom)

	require.Equal(t, zonepromise.Fulfilled, out.State())
	outcomes := out.Value().([]zonepromise.SettledOutcome)
	require.Len(t, outcomes, 2)
	assert.Equal(t, zonepromise.Fulfilled, outcomes[0].Status)
	assert.Equal(t, "ok", outcomes[0].Value)
	assert.Equal(t, zonepromise.Rejected, outcomes[1].Status)
	assert.Equal(t, boom, outcomes[1].Reason)
}

func TestAny_FulfillsWithFirstSuccess(t *testing.T) {
	loop := newCombinatorLoop(t)
	p1, _, reject1 := loop.WithResolvers()
	p2, resolve2, _ := loop.WithResolvers()

	out := loop.Any([]*zonepromise.Promise{p1, p2})
	reject1(errors.New("first failure"))
	resolve2("eventual success")

	require.Equal(t, zonepromise.Fulfilled, out.State())
	assert.Equal(t, "eventual success", out.Value())
}

func TestAny_RejectsWithAggregateErrorWhenAllFail(t *testing.T) {
	loop := newCombinatorLoop(t)
	p1, _, reject1 := loop.WithResolvers()
	p2, _, reject2 := loop.WithResolvers()

	out := loop.Any([]*zonepromise.Promise{p1, p2})
	e1, e2 := errors.New("one"), errors.New("two")
	reject1(e1)
	reject2(e2)

	require.Equal(t, zonepromise.Rejected, out.State())
	var agg *zonepromise.AggregateError
	require.ErrorAs(t, out.Reason(), &agg)
	assert.Equal(t, []error{e1, e2}, agg.Errors)
}

func TestWithResolvers_ResolveSettlesTheReturnedPromise(t *testing.T) {
	loop := newCombinatorLoop(t)
	p, resolve, _ := loop.WithResolvers()
	resolve("value")
	require.Equal(t, zonepromise.Fulfilled, p.State())
	assert.Equal(t, "value", p.Value())
}

func TestResolvedRejected_ConstructAlreadySettledPromises(t *testing.T) {
	loop := newCombinatorLoop(t)
	boom := errors.New("boom")
	assert.Equal(t, zonepromise.Fulfilled, loop.Resolved("ok").State())
	assert.Equal(t, zonepromise.Rejected, loop.Rejected(boom).State())
}

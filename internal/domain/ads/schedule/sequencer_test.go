// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/adscheduler/internal/domain/ads/model"
	"github.com/ManuGH/adscheduler/internal/domain/ads/testkit"
)

func TestBatch_PartialFailure(t *testing.T) {
	errBoom := errors.New("decoder crashed")
	c, host, handler := newHarness(t, DefaultOptions(), postroll("p1"), postroll("p2"), postroll("p3"))
	rec := record(c)
	host.OpenMedia()
	handler.FailPlay("p2", errBoom)

	e := host.EndMedia()
	require.NotNil(t, e.Deferral())
	waitChan(t, e.Deferral().Completed())
	waitIdle(t, c)

	want := []string{
		"play:p1:start", "play:p1:done",
		"play:p2:start", "play:p2:failed",
		"play:p3:start", "play:p3:done",
	}
	if diff := cmp.Diff(want, handler.Events()); diff != "" {
		t.Fatalf("batch sequence mismatch (-want +got):\n%s", diff)
	}

	done := rec.completions()
	require.Len(t, done, 3)
	assert.Equal(t, "p1", done[0].Ad.ID)
	assert.NoError(t, done[0].Err)
	assert.Equal(t, "p2", done[1].Ad.ID)
	assert.ErrorIs(t, done[1].Err, errBoom)
	assert.Equal(t, "p3", done[2].Ad.ID)
	assert.NoError(t, done[2].Err)
	assert.ElementsMatch(t, []string{"p1", "p2", "p3"}, c.HandledIDs())
}

func TestBatch_HostCancelStopsRemaining(t *testing.T) {
	c, host, handler := newHarness(t, DefaultOptions(), preroll("a"), preroll("b"))
	rec := record(c)
	host.OpenMedia()
	handler.BlockPlay("a")

	e := host.StartMedia()
	d := e.Deferral()
	require.NotNil(t, d)
	waitForEvent(t, handler, "play:a:start")

	d.Cancel()
	waitChan(t, d.Completed())
	waitIdle(t, c)

	assert.Equal(t, []string{"play:a:start", "play:a:canceled"}, handler.Events())
	done := rec.completions()
	require.Len(t, done, 1)
	assert.True(t, done[0].Canceled)
	assert.NoError(t, done[0].Err)
	assert.True(t, c.IsHandled("a"))
	assert.False(t, c.IsHandled("b"))
}

func TestBatch_NoDeferralWhenHostDisallows(t *testing.T) {
	mid := midroll("m1", time.Minute, 0)
	c, host, handler := newHarness(t, DefaultOptions(), preroll("a"), mid)
	host.SetAllowMediaStartingDeferrals(false)
	host.OpenMedia()
	handler.BlockPlay("a")

	// StartMedia returns without a deferral, so main content is not held
	// while the preroll plays.
	e := host.StartMedia()
	assert.Nil(t, e.Deferral())
	waitForEvent(t, handler, "play:a:start")
	assert.True(t, c.IsHandled("a"))

	// The preroll owns the single play slot; a midroll crossed meanwhile
	// is ignored and stays eligible.
	host.ReachMarker(model.PlayMarker(mid))
	assert.False(t, c.IsHandled("m1"))
	assert.Equal(t, []string{"play:a:start"}, playStarts(handler.Events()))

	handler.ReleasePlay("a")
	waitForEvent(t, handler, "play:a:done")
	waitIdle(t, c)

	host.ReachMarker(model.PlayMarker(mid))
	waitForEvent(t, handler, "play:m1:done")
	waitIdle(t, c)
}

func TestBatch_NoEligibleAdsTakesNoDeferral(t *testing.T) {
	c, host, handler := newHarness(t, DefaultOptions(), preroll("a"))
	host.OpenMedia()
	c.MarkHandled("a")

	e := host.StartMedia()
	assert.Nil(t, e.Deferral())
	assert.Empty(t, handler.Events())
}

func TestBatch_ProgressForwarded(t *testing.T) {
	c, host, handler := newHarness(t, DefaultOptions(), preroll("a"))
	rec := record(c)
	host.OpenMedia()

	e := host.StartMedia()
	waitChan(t, e.Deferral().Completed())
	waitForEvent(t, handler, "play:a:done")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{"a"}, rec.starting)
	assert.Equal(t, []model.AdProgress{
		model.ProgressStarted,
		model.ProgressFirstQuartile,
		model.ProgressMidpoint,
		model.ProgressThirdQuartile,
		model.ProgressComplete,
	}, rec.progress["a"])
}

func TestPlayAd_NilSourceIsNoop(t *testing.T) {
	ad := preroll("a")
	ad.Source = nil
	c, _, handler := newHarness(t, DefaultOptions())
	rec := record(c)

	require.NoError(t, c.playAd(t.Context(), ad))
	assert.Empty(t, handler.Events())
	assert.Empty(t, rec.completions())
}

func TestBatch_UnsubscribedHooksNotCalled(t *testing.T) {
	c, host, handler := newHarness(t, DefaultOptions(), preroll("a"))
	calls := 0
	reg := c.Subscribe(Hooks{OnAdStarting: func(*model.Advertisement) { calls++ }})
	require.NoError(t, reg.Close())
	require.NoError(t, reg.Close())
	host.OpenMedia()

	e := host.StartMedia()
	waitChan(t, e.Deferral().Completed())
	waitForEvent(t, handler, "play:a:done")
	waitIdle(t, c)
	assert.Zero(t, calls)
}

func TestBatch_StartupPositionSkipsEarlierAds(t *testing.T) {
	c, host, handler := newHarness(t, DefaultOptions(),
		preroll("pre"),
		midroll("early", 5*time.Second, 0),
		midroll("late", time.Minute, 0),
	)
	host.SetStartupPosition(10 * time.Second)
	host.OpenMedia()

	assert.True(t, c.IsHandled("pre"))
	assert.True(t, c.IsHandled("early"))
	assert.False(t, c.IsHandled("late"))

	e := host.StartMedia()
	assert.Nil(t, e.Deferral())

	host.Seek(2 * time.Second)
	assert.False(t, host.Seek(8*time.Second).Canceled)
	assert.Empty(t, playStarts(handler.Events()))

	c.Unhandle("early")
	host.Seek(2 * time.Second)
	assert.True(t, host.Seek(8*time.Second).Canceled)
	waitForEvent(t, handler, "play:early:done")
	waitIdle(t, c)
}

// crashingHandler panics when asked to play uri.
type crashingHandler struct {
	*testkit.StepperHandler
	uri string
}

func (h crashingHandler) PlayAd(ctx context.Context, src *model.Source, progress model.ProgressFunc) error {
	if src.URI == h.uri {
		panic("player crashed")
	}
	return h.StepperHandler.PlayAd(ctx, src, progress)
}

func newCrashingHarness(t *testing.T, uri string, ads ...*model.Advertisement) (*Controller, *testkit.FakeHost, *testkit.StepperHandler) {
	t.Helper()
	host := testkit.NewFakeHost(10 * time.Minute)
	stepper := testkit.NewStepperHandler()
	c, err := New(Config{Host: host, Handler: crashingHandler{StepperHandler: stepper, uri: uri}, Options: DefaultOptions()})
	require.NoError(t, err)
	require.NoError(t, c.Update(ads))
	require.NoError(t, c.Initialize())
	t.Cleanup(func() { _ = c.Close() })
	return c, host, stepper
}

func TestMidroll_HandlerPanicIsContained(t *testing.T) {
	boom := midroll("boom", time.Minute, 0)
	next := midroll("next", 2*time.Minute, 0)
	c, host, stepper := newCrashingHarness(t, "boom", boom, next)
	host.OpenMedia()

	host.ReachMarker(model.PlayMarker(boom))
	waitIdle(t, c)
	assert.True(t, c.IsHandled("boom"))

	host.ReachMarker(model.PlayMarker(next))
	waitForEvent(t, stepper, "play:next:done")
	waitIdle(t, c)
}

func TestBatch_HandlerPanicCompletesDeferral(t *testing.T) {
	c, host, stepper := newCrashingHarness(t, "p1", postroll("p1"), postroll("p2"))
	host.OpenMedia()

	e := host.EndMedia()
	require.NotNil(t, e.Deferral())
	waitChan(t, e.Deferral().Completed())
	waitIdle(t, c)

	assert.True(t, c.IsHandled("p1"))
	assert.Empty(t, stepper.Events(), "the batch stops at the panicking ad")

	mid := midroll("m1", time.Minute, 0)
	require.NoError(t, c.Add(mid))
	host.ReachMarker(model.PlayMarker(mid))
	waitForEvent(t, stepper, "play:m1:done")
}

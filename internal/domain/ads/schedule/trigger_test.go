// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/adscheduler/internal/domain/ads/model"
)

func TestEvaluateMarkers_BackwardIsNoop(t *testing.T) {
	c, host, handler := newHarness(t, DefaultOptions(), midroll("m1", time.Minute, 0))
	host.OpenMedia()

	assert.False(t, c.EvaluateMarkers(2*time.Minute, 30*time.Second))
	assert.False(t, c.EvaluateMarkers(time.Minute, time.Minute))
	assert.Empty(t, handler.Events())
	assert.Empty(t, c.HandledIDs())
}

func TestEvaluateMarkers_BackwardAllowedWhenNotForwardOnly(t *testing.T) {
	opts := DefaultOptions()
	opts.EvaluateOnForwardOnly = false
	c, host, handler := newHarness(t, opts, midroll("m1", time.Minute, 0))
	host.OpenMedia()

	// (2m, 30s] is empty, so nothing fires even though evaluation runs.
	assert.False(t, c.EvaluateMarkers(2*time.Minute, 30*time.Second))
	assert.Empty(t, playStarts(handler.Events()))
}

func TestEvaluateMarkers_AtMostOneTrigger(t *testing.T) {
	opts := DefaultOptions()
	opts.SeekToAdPosition = false
	c, host, handler := newHarness(t, opts,
		midroll("m1", time.Minute, 0),
		midroll("m2", 2*time.Minute, 0),
		midroll("m3", 3*time.Minute, 0),
	)
	host.OpenMedia()

	require.True(t, c.EvaluateMarkers(0, 5*time.Minute))
	waitForEvent(t, handler, "play:m1:done")
	waitIdle(t, c)

	assert.Equal(t, []string{"play:m1:start"}, playStarts(handler.Events()))
	assert.Equal(t, []string{"m1"}, c.HandledIDs())
	assert.Empty(t, host.PositionHistory(), "sync position equals target, no jump expected")
}

func TestEvaluateMarkers_HalfOpenWindow(t *testing.T) {
	c, host, handler := newHarness(t, DefaultOptions(), midroll("m1", time.Minute, 0))
	host.OpenMedia()

	assert.False(t, c.EvaluateMarkers(time.Minute, 2*time.Minute), "marker at window start must not fire")
	require.True(t, c.EvaluateMarkers(30*time.Second, time.Minute), "marker at window end fires")
	waitForEvent(t, handler, "play:m1:done")
}

func TestEvaluateMarkers_SeekToAdPosition(t *testing.T) {
	c, host, handler := newHarness(t, DefaultOptions(), midroll("m1", time.Minute, 30*time.Second))
	host.OpenMedia()

	ev := host.Seek(5 * time.Minute)
	assert.True(t, ev.Canceled)
	waitForEvent(t, handler, "play:m1:done")
	waitIdle(t, c)
	assert.Equal(t, []time.Duration{90 * time.Second}, host.PositionHistory())
}

func TestEvaluateMarkers_HandledOnce(t *testing.T) {
	c, host, handler := newHarness(t, DefaultOptions(), midroll("m1", time.Minute, 30*time.Second))
	host.OpenMedia()

	require.True(t, c.EvaluateMarkers(0, 5*time.Minute))
	waitForEvent(t, handler, "play:m1:done")
	waitIdle(t, c)

	assert.False(t, c.EvaluateMarkers(0, 5*time.Minute))
	assert.False(t, c.EvaluateMarkers(30*time.Second, 2*time.Minute))
	assert.Len(t, playStarts(handler.Events()), 1)

	c.Unhandle("m1")
	require.True(t, c.EvaluateMarkers(0, 5*time.Minute))
	waitForEvent(t, handler, "play:m1:done")
	waitIdle(t, c)
	assert.Len(t, playStarts(handler.Events()), 2)
}

func TestEvaluateMarkers_SkipsHandledSlot(t *testing.T) {
	c, host, handler := newHarness(t, DefaultOptions(), midroll("m1", time.Minute, 30*time.Second))
	host.OpenMedia()
	c.MarkHandled("m1")

	// Landing inside [1m, 1m30s) of a handled ad jumps past the slot.
	assert.False(t, c.EvaluateMarkers(30*time.Second, 70*time.Second))
	assert.Equal(t, []time.Duration{90 * time.Second}, host.PositionHistory())

	// Landing beyond the slot leaves the position alone.
	assert.False(t, c.EvaluateMarkers(30*time.Second, 3*time.Minute))
	assert.Len(t, host.PositionHistory(), 1)
	assert.Empty(t, playStarts(handler.Events()))
}

func TestMarkerReached_PlaysMidroll(t *testing.T) {
	ad := midroll("m1", time.Minute, 20*time.Second)
	c, host, handler := newHarness(t, DefaultOptions(), ad)
	host.OpenMedia()

	host.ReachMarker(model.PlayMarker(ad))
	waitForEvent(t, handler, "play:m1:done")
	waitIdle(t, c)

	assert.True(t, c.IsHandled("m1"))
	assert.Equal(t, []time.Duration{80 * time.Second}, host.PositionHistory())
}

func TestMarkerReached_ZeroSlotKeepsPosition(t *testing.T) {
	ad := midroll("m1", time.Minute, 0)
	c, host, handler := newHarness(t, DefaultOptions(), ad)
	host.OpenMedia()

	host.ReachMarker(model.PlayMarker(ad))
	waitForEvent(t, handler, "play:m1:done")
	waitIdle(t, c)
	assert.Empty(t, host.PositionHistory())
}

func TestMarkerReached_IgnoredWhilePlaying(t *testing.T) {
	a := midroll("a", time.Minute, 0)
	b := midroll("b", 2*time.Minute, 0)
	c, host, handler := newHarness(t, DefaultOptions(), a, b)
	host.OpenMedia()
	handler.BlockPlay("a")

	host.ReachMarker(model.PlayMarker(a))
	waitForEvent(t, handler, "play:a:start")
	host.ReachMarker(model.PlayMarker(b))

	assert.False(t, c.IsHandled("b"))
	handler.ReleasePlay("a")
	waitForEvent(t, handler, "play:a:done")
	waitIdle(t, c)
	assert.Equal(t, []string{"play:a:start"}, playStarts(handler.Events()))
}

func TestScrub_InterruptsOnCrossing(t *testing.T) {
	c, host, handler := newHarness(t, DefaultOptions(), midroll("m1", time.Minute, 0))
	host.OpenMedia()

	ev := host.Scrub(30*time.Second, 90*time.Second, 3*time.Minute)
	assert.True(t, ev.Canceled)
	assert.Equal(t, 90*time.Second, ev.Position)
	waitForEvent(t, handler, "play:m1:done")
	waitIdle(t, c)
}

func TestScrub_EvaluatesOnCompletionWithoutInterrupt(t *testing.T) {
	opts := DefaultOptions()
	opts.InterruptScrub = false
	c, host, handler := newHarness(t, opts, midroll("m1", time.Minute, 0))
	host.OpenMedia()

	ev := host.Scrub(30*time.Second, 90*time.Second, 3*time.Minute)
	assert.True(t, ev.Canceled, "completion crosses the marker")
	assert.Equal(t, 3*time.Minute, ev.Position)
	waitForEvent(t, handler, "play:m1:done")
	waitIdle(t, c)
}

func TestEvaluateMarkers_WithoutSession(t *testing.T) {
	c, host, _ := newHarness(t, DefaultOptions(), midroll("m1", time.Minute, 0))
	host.OpenMedia()
	require.NoError(t, c.Uninitialize())

	assert.False(t, c.EvaluateMarkers(0, 5*time.Minute))
}

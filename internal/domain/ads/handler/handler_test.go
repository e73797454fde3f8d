// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package handler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/adscheduler/internal/domain/ads/model"
)

// fakePlayer plays immediately unless hold is set, in which case it waits
// for ctx without reporting progress.
type fakePlayer struct {
	mu       sync.Mutex
	uri      string
	hold     bool
	err      error
	plays    int
	unloads  int
	progress []model.AdProgress
}

func (p *fakePlayer) Play(ctx context.Context, progress model.ProgressFunc) error {
	p.mu.Lock()
	p.plays++
	hold, err := p.hold, p.err
	p.mu.Unlock()
	if hold {
		<-ctx.Done()
		return ctx.Err()
	}
	if err != nil {
		return err
	}
	for _, pr := range []model.AdProgress{model.ProgressStarted, model.ProgressComplete} {
		progress(pr)
	}
	return nil
}

func (p *fakePlayer) Unload() {
	p.mu.Lock()
	p.unloads++
	p.mu.Unlock()
}

func (p *fakePlayer) counts() (plays, unloads int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.plays, p.unloads
}

// countingFactory builds a fresh fakePlayer per load and remembers them.
type countingFactory struct {
	mu      sync.Mutex
	players []*fakePlayer
	unit    func(p *fakePlayer) *AdUnit
	err     error
}

func (f *countingFactory) Load(_ context.Context, src *model.Source) (*AdUnit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p := &fakePlayer{uri: src.URI}
	f.players = append(f.players, p)
	if f.unit != nil {
		return f.unit(p), nil
	}
	return &AdUnit{Player: p}, nil
}

func (f *countingFactory) loads() []*fakePlayer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakePlayer(nil), f.players...)
}

func newTestHandler(cfg Config) (*Handler, *countingFactory) {
	h := New(cfg)
	f := &countingFactory{}
	h.Register("video", f)
	return h, f
}

func src(uri string) *model.Source {
	return &model.Source{Type: "video", URI: uri}
}

func TestPlayAd_NoFactory(t *testing.T) {
	h := New(Config{})
	err := h.PlayAd(context.Background(), &model.Source{Type: "vpaid", URI: "x"}, nil)
	assert.ErrorIs(t, err, ErrNoFactory)
}

func TestPlayAd_LoadsPlaysAndUnloads(t *testing.T) {
	h, f := newTestHandler(Config{})
	var got []model.AdProgress
	err := h.PlayAd(context.Background(), src("a"), func(p model.AdProgress) { got = append(got, p) })
	require.NoError(t, err)

	require.Len(t, f.loads(), 1)
	plays, unloads := f.loads()[0].counts()
	assert.Equal(t, 1, plays)
	assert.Equal(t, 1, unloads)
	assert.Equal(t, []model.AdProgress{model.ProgressStarted, model.ProgressComplete}, got)
}

func TestPlayAd_ReusesPreloadedUnit(t *testing.T) {
	h, f := newTestHandler(Config{})
	require.NoError(t, h.PreloadAd(context.Background(), src("a")))
	require.NoError(t, h.PlayAd(context.Background(), src("a"), func(model.AdProgress) {}))

	assert.Len(t, f.loads(), 1)
}

func TestPlayAd_UnloadsMismatchedPreload(t *testing.T) {
	h, f := newTestHandler(Config{})
	require.NoError(t, h.PreloadAd(context.Background(), src("a")))
	require.NoError(t, h.PlayAd(context.Background(), src("b"), func(model.AdProgress) {}))

	loads := f.loads()
	require.Len(t, loads, 2)
	plays, unloads := loads[0].counts()
	assert.Zero(t, plays)
	assert.Equal(t, 1, unloads)
}

func TestPreloadAd_ReplacesSlot(t *testing.T) {
	h, f := newTestHandler(Config{})
	require.NoError(t, h.PreloadAd(context.Background(), src("a")))
	require.NoError(t, h.PreloadAd(context.Background(), src("b")))

	loads := f.loads()
	require.Len(t, loads, 2)
	_, unloads := loads[0].counts()
	assert.Equal(t, 1, unloads)

	h.Reset()
	_, unloads = loads[1].counts()
	assert.Equal(t, 1, unloads)
}

func TestPreloadAd_CanceledUnloads(t *testing.T) {
	h, f := newTestHandler(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	f.unit = func(p *fakePlayer) *AdUnit {
		cancel()
		return &AdUnit{Player: p}
	}

	err := h.PreloadAd(ctx, src("a"))
	assert.ErrorIs(t, err, context.Canceled)
	_, unloads := f.loads()[0].counts()
	assert.Equal(t, 1, unloads)
}

func TestPlayAd_LoadErrorWrapped(t *testing.T) {
	h, f := newTestHandler(Config{})
	errNet := errors.New("connection reset")
	f.err = errNet

	err := h.PlayAd(context.Background(), src("a"), nil)
	assert.ErrorIs(t, err, errNet)
}

func TestPlayAd_StartTimeout(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	h, f := newTestHandler(Config{StartTimeout: 8 * time.Second, Clock: clock})
	f.unit = func(p *fakePlayer) *AdUnit {
		p.hold = true
		return &AdUnit{Player: p}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- h.PlayAd(context.Background(), src("a"), func(model.AdProgress) {}) }()

	require.Eventually(t, func() bool { return clock.Pending() == 1 }, time.Second, time.Millisecond)
	clock.Advance(8 * time.Second)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrStartTimeout)
		assert.NotErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("play did not time out")
	}
}

func TestPlayAd_StartedAdIsNotTimedOut(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	h, _ := newTestHandler(Config{StartTimeout: time.Second, Clock: clock})

	require.NoError(t, h.PlayAd(context.Background(), src("a"), func(model.AdProgress) {}))
	assert.Zero(t, clock.Pending())
}

func TestPlayAd_CancellationIsNotTimeout(t *testing.T) {
	h, f := newTestHandler(Config{StartTimeout: time.Hour})
	f.unit = func(p *fakePlayer) *AdUnit {
		p.hold = true
		return &AdUnit{Player: p}
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.PlayAd(ctx, src("a"), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrStartTimeout)
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package schedule

import (
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ManuGH/adscheduler/internal/domain/ads/model"
	"github.com/ManuGH/adscheduler/internal/domain/ads/testkit"
)

const waitFor = 2 * time.Second

func newHarness(t *testing.T, opts Options, ads ...*model.Advertisement) (*Controller, *testkit.FakeHost, *testkit.StepperHandler) {
	t.Helper()
	host := testkit.NewFakeHost(10 * time.Minute)
	handler := testkit.NewStepperHandler()
	c, err := New(Config{Host: host, Handler: handler, Options: opts})
	require.NoError(t, err)
	require.NoError(t, c.Update(ads))
	require.NoError(t, c.Initialize())
	t.Cleanup(func() { _ = c.Close() })
	return c, host, handler
}

func midroll(id string, at, slot time.Duration) *model.Advertisement {
	ad := model.NewMidroll(testkit.Source(id), at, slot)
	ad.ID = id
	return ad
}

func preroll(id string) *model.Advertisement {
	ad := model.NewPreroll(testkit.Source(id))
	ad.ID = id
	return ad
}

func postroll(id string) *model.Advertisement {
	ad := model.NewPostroll(testkit.Source(id))
	ad.ID = id
	return ad
}

func waitForEvent(t *testing.T, h *testkit.StepperHandler, ev string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return slices.Contains(h.Events(), ev)
	}, waitFor, 5*time.Millisecond, "handler never recorded %q, got %v", ev, h.Events())
}

func waitIdle(t *testing.T, c *Controller) {
	t.Helper()
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.playing == nil
	}, waitFor, 5*time.Millisecond)
}

func waitChan(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for channel")
	}
}

func playStarts(events []string) []string {
	var out []string
	for _, ev := range events {
		if len(ev) > 5 && ev[:5] == "play:" && ev[len(ev)-6:] == ":start" {
			out = append(out, ev)
		}
	}
	return out
}

// recorder collects lifecycle notifications.
type recorder struct {
	mu        sync.Mutex
	starting  []string
	progress  map[string][]model.AdProgress
	completed []AdCompleted
}

func record(c *Controller) *recorder {
	r := &recorder{progress: make(map[string][]model.AdProgress)}
	c.Subscribe(Hooks{
		OnAdStarting: func(ad *model.Advertisement) {
			r.mu.Lock()
			r.starting = append(r.starting, ad.ID)
			r.mu.Unlock()
		},
		OnAdProgress: func(ad *model.Advertisement, p model.AdProgress) {
			r.mu.Lock()
			r.progress[ad.ID] = append(r.progress[ad.ID], p)
			r.mu.Unlock()
		},
		OnAdCompleted: func(ev AdCompleted) {
			r.mu.Lock()
			r.completed = append(r.completed, ev)
			r.mu.Unlock()
		},
	})
	return r
}

func (r *recorder) completions() []AdCompleted {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AdCompleted(nil), r.completed...)
}

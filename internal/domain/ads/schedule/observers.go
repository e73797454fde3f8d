// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package schedule

import (
	"sort"
	"sync"
	"time"

	"github.com/ManuGH/adscheduler/internal/domain/ads/model"
)

// AdCompleted reports the end of one ad. Err is nil on success and on
// cancellation; Canceled distinguishes the two.
type AdCompleted struct {
	Ad       *model.Advertisement
	Err      error
	Canceled bool
	Elapsed  time.Duration
}

// Hooks are the ad lifecycle notifications loaders subscribe to for their
// tracking beacons. Nil fields are skipped. Hooks run on the goroutine that
// plays the ad and must not call Update, Uninitialize or Close.
type Hooks struct {
	OnAdStarting  func(ad *model.Advertisement)
	OnAdProgress  func(ad *model.Advertisement, p model.AdProgress)
	OnAdCompleted func(ev AdCompleted)
}

type observerSet struct {
	mu    sync.Mutex
	next  int
	hooks map[int]Hooks
}

func (s *observerSet) add(h Hooks) *registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hooks == nil {
		s.hooks = make(map[int]Hooks)
	}
	id := s.next
	s.next++
	s.hooks[id] = h
	return &registration{undo: func() {
		s.mu.Lock()
		delete(s.hooks, id)
		s.mu.Unlock()
	}}
}

// snapshot returns hooks in subscription order.
func (s *observerSet) snapshot() []Hooks {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.hooks))
	for id := range s.hooks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Hooks, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.hooks[id])
	}
	return out
}

func (s *observerSet) starting(ad *model.Advertisement) {
	for _, h := range s.snapshot() {
		if h.OnAdStarting != nil {
			h.OnAdStarting(ad)
		}
	}
}

func (s *observerSet) progress(ad *model.Advertisement, p model.AdProgress) {
	for _, h := range s.snapshot() {
		if h.OnAdProgress != nil {
			h.OnAdProgress(ad, p)
		}
	}
}

func (s *observerSet) completed(ev AdCompleted) {
	for _, h := range s.snapshot() {
		if h.OnAdCompleted != nil {
			h.OnAdCompleted(ev)
		}
	}
}

// registration implements ports.Registration.
type registration struct {
	once sync.Once
	undo func()
}

func (r *registration) Close() error {
	r.once.Do(r.undo)
	return nil
}

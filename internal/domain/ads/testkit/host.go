// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package testkit provides scripted host players, deferrals and ad handlers
// for driving the schedule controller deterministically.
package testkit

import (
	"sync"
	"time"

	"github.com/ManuGH/adscheduler/internal/domain/ads/model"
	"github.com/ManuGH/adscheduler/internal/domain/ads/ports"
)

// FakeHost is an in-memory host player. Host notifications are raised
// explicitly by the test through OpenMedia, Seek, ReachMarker and friends;
// SetPosition only records the jump and never raises Seeked.
type FakeHost struct {
	mu             sync.Mutex
	markers        []model.Marker
	listeners      map[int]ports.HostListener
	nextListener   int
	duration       time.Duration
	position       time.Duration
	startup        time.Duration
	hasStartup     bool
	allowDeferrals bool
	positions      []time.Duration
}

var _ ports.HostPlayer = (*FakeHost)(nil)

func NewFakeHost(duration time.Duration) *FakeHost {
	return &FakeHost{
		listeners:      make(map[int]ports.HostListener),
		duration:       duration,
		allowDeferrals: true,
	}
}

func (h *FakeHost) Markers() []model.Marker {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]model.Marker(nil), h.markers...)
}

func (h *FakeHost) AddMarker(m model.Marker) {
	h.mu.Lock()
	h.markers = append(h.markers, m)
	h.mu.Unlock()
}

func (h *FakeHost) RemoveMarker(m model.Marker) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, existing := range h.markers {
		if existing == m {
			h.markers = append(h.markers[:i:i], h.markers[i+1:]...)
			return true
		}
	}
	return false
}

func (h *FakeHost) Duration() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.duration
}

func (h *FakeHost) SetDuration(d time.Duration) {
	h.mu.Lock()
	h.duration = d
	h.mu.Unlock()
}

func (h *FakeHost) Position() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.position
}

func (h *FakeHost) SetPosition(pos time.Duration) {
	h.mu.Lock()
	h.position = pos
	h.positions = append(h.positions, pos)
	h.mu.Unlock()
}

// MoveTo advances playback without raising events or recording history.
func (h *FakeHost) MoveTo(pos time.Duration) {
	h.mu.Lock()
	h.position = pos
	h.mu.Unlock()
}

// PositionHistory returns every position set through SetPosition.
func (h *FakeHost) PositionHistory() []time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]time.Duration(nil), h.positions...)
}

func (h *FakeHost) StartupPosition() (time.Duration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.startup, h.hasStartup
}

func (h *FakeHost) SetStartupPosition(pos time.Duration) {
	h.mu.Lock()
	h.startup = pos
	h.hasStartup = true
	h.mu.Unlock()
}

func (h *FakeHost) AllowMediaStartingDeferrals() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.allowDeferrals
}

func (h *FakeHost) SetAllowMediaStartingDeferrals(allow bool) {
	h.mu.Lock()
	h.allowDeferrals = allow
	h.mu.Unlock()
}

func (h *FakeHost) Subscribe(l ports.HostListener) ports.Registration {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextListener
	h.nextListener++
	h.listeners[id] = l
	return &hostRegistration{host: h, id: id}
}

// Subscribers returns the number of live listener registrations.
func (h *FakeHost) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

func (h *FakeHost) snapshot() []ports.HostListener {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]ports.HostListener, 0, len(h.listeners))
	for i := 0; i < h.nextListener; i++ {
		if l, ok := h.listeners[i]; ok {
			out = append(out, l)
		}
	}
	return out
}

// OpenMedia raises MediaOpened.
func (h *FakeHost) OpenMedia() {
	for _, l := range h.snapshot() {
		l.MediaOpened()
	}
}

// StartMedia raises MediaStarting and returns the event so the test can
// inspect the deferral taken on it.
func (h *FakeHost) StartMedia() *FakeEvent {
	e := &FakeEvent{}
	for _, l := range h.snapshot() {
		l.MediaStarting(e)
	}
	return e
}

// EndMedia raises MediaEnding.
func (h *FakeHost) EndMedia() *FakeEvent {
	e := &FakeEvent{}
	h.mu.Lock()
	h.position = h.duration
	h.mu.Unlock()
	for _, l := range h.snapshot() {
		l.MediaEnding(e)
	}
	return e
}

// ReachMarker moves playback onto m and raises MarkerReached.
func (h *FakeHost) ReachMarker(m model.Marker) {
	h.mu.Lock()
	h.position = m.Time
	h.mu.Unlock()
	for _, l := range h.snapshot() {
		l.MarkerReached(m)
	}
}

// Seek jumps to "to" and raises Seeked.
func (h *FakeHost) Seek(to time.Duration) *ports.PositionEvent {
	h.mu.Lock()
	e := &ports.PositionEvent{Previous: h.position, Position: to}
	h.position = to
	h.mu.Unlock()
	for _, l := range h.snapshot() {
		l.Seeked(e)
	}
	return e
}

// Scrub raises a scrub gesture through steps. It stops early once a
// listener cancels the gesture and returns the last event raised.
func (h *FakeHost) Scrub(steps ...time.Duration) *ports.PositionEvent {
	h.mu.Lock()
	from := h.position
	h.mu.Unlock()

	e := &ports.PositionEvent{Previous: from, Position: from}
	for _, l := range h.snapshot() {
		l.ScrubbingStarted(e)
	}
	for _, step := range steps {
		e = &ports.PositionEvent{Previous: from, Position: step}
		h.mu.Lock()
		h.position = step
		h.mu.Unlock()
		for _, l := range h.snapshot() {
			l.Scrubbing(e)
		}
		if e.Canceled {
			return e
		}
	}
	done := &ports.PositionEvent{Previous: from, Position: e.Position}
	for _, l := range h.snapshot() {
		l.ScrubbingCompleted(done)
	}
	return done
}

type hostRegistration struct {
	host *FakeHost
	id   int
}

func (r *hostRegistration) Close() error {
	r.host.mu.Lock()
	delete(r.host.listeners, r.id)
	r.host.mu.Unlock()
	return nil
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package testkit

import (
	"sync"

	"github.com/ManuGH/adscheduler/internal/domain/ads/ports"
)

// FakeEvent is a deferrable host event.
type FakeEvent struct {
	mu       sync.Mutex
	deferral *FakeDeferral
}

var _ ports.DeferrableEvent = (*FakeEvent)(nil)

func (e *FakeEvent) GetDeferral() ports.Deferral {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deferral == nil {
		e.deferral = NewFakeDeferral()
	}
	return e.deferral
}

// Deferral returns the deferral taken on the event, or nil.
func (e *FakeEvent) Deferral() *FakeDeferral {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deferral
}

// FakeDeferral lets tests observe completion and cancel from the host side.
type FakeDeferral struct {
	canceled     chan struct{}
	completed    chan struct{}
	cancelOnce   sync.Once
	completeOnce sync.Once
}

var _ ports.Deferral = (*FakeDeferral)(nil)

func NewFakeDeferral() *FakeDeferral {
	return &FakeDeferral{
		canceled:  make(chan struct{}),
		completed: make(chan struct{}),
	}
}

func (d *FakeDeferral) Complete() {
	d.completeOnce.Do(func() { close(d.completed) })
}

func (d *FakeDeferral) Canceled() <-chan struct{} {
	return d.canceled
}

// Cancel withdraws the deferral the way a host does when it gives up.
func (d *FakeDeferral) Cancel() {
	d.cancelOnce.Do(func() { close(d.canceled) })
}

// Completed is closed once Complete was called.
func (d *FakeDeferral) Completed() <-chan struct{} {
	return d.completed
}

func (d *FakeDeferral) IsCompleted() bool {
	select {
	case <-d.completed:
		return true
	default:
		return false
	}
}

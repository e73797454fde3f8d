// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ports defines the collaborator contracts the ad schedule core
// consumes. The surrounding player UI implements them.
package ports

import (
	"time"

	"github.com/ManuGH/adscheduler/internal/domain/ads/model"
)

// Registration undoes a subscription when closed. Close is idempotent.
type Registration interface {
	Close() error
}

// MarkerTimeline is the host's mutable, ordered marker collection.
// Markers returns a snapshot in collection order.
type MarkerTimeline interface {
	Markers() []model.Marker
	AddMarker(m model.Marker)
	RemoveMarker(m model.Marker) bool
}

// HostPlayer is the media player surface the controller attaches to.
// Implementations may deliver listener callbacks from any goroutine, but must
// not invoke them while holding locks the controller could re-enter through
// the methods below.
type HostPlayer interface {
	MarkerTimeline

	Duration() time.Duration
	Position() time.Duration
	SetPosition(pos time.Duration)
	// StartupPosition reports the position playback begins at, if any.
	StartupPosition() (time.Duration, bool)
	AllowMediaStartingDeferrals() bool

	Subscribe(l HostListener) Registration
}

// HostListener receives the host lifecycle and position notifications.
type HostListener interface {
	MediaOpened()
	MediaStarting(e DeferrableEvent)
	MediaEnding(e DeferrableEvent)
	MarkerReached(m model.Marker)
	Seeked(e *PositionEvent)
	ScrubbingStarted(e *PositionEvent)
	Scrubbing(e *PositionEvent)
	ScrubbingCompleted(e *PositionEvent)
}

// PositionEvent describes a discontinuous position change. Listeners set
// Canceled to ask the host to abandon the seek or scrub.
type PositionEvent struct {
	// Previous is the position before the jump (scrub start for scrubs).
	Previous time.Duration
	Position time.Duration
	Canceled bool
}

// DeferrableEvent lets a listener hold the host lifecycle step open.
type DeferrableEvent interface {
	GetDeferral() Deferral
}

// Deferral keeps the host waiting until Complete is called. Canceled is
// closed when the host gives up waiting; Complete after that is a no-op.
type Deferral interface {
	Complete()
	Canceled() <-chan struct{}
}

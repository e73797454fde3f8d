// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import "time"

// MarkerType distinguishes the controller's reserved marker kinds from any
// other markers the host timeline carries.
type MarkerType string

const (
	MarkerPlay    MarkerType = "ad_play"
	MarkerPreload MarkerType = "ad_preload"
)

// MinMarkerTime is the earliest position a preload marker may be placed at.
const MinMarkerTime = time.Millisecond

// Reserved reports whether markers of this type are owned by the controller.
func (t MarkerType) Reserved() bool {
	return t == MarkerPlay || t == MarkerPreload
}

// Marker is a (type, text, time) triple on the host timeline. Text carries the
// Advertisement ID for reserved types.
type Marker struct {
	Type MarkerType
	Text string
	Time time.Duration
}

// PlayMarker returns the marker that triggers ad at its resolved time.
func PlayMarker(ad *Advertisement) Marker {
	return Marker{Type: MarkerPlay, Text: ad.ID, Time: ad.Time}
}

// PreloadMarker returns the marker placed lead before trigger.
func PreloadMarker(id string, trigger, lead time.Duration) Marker {
	return Marker{Type: MarkerPreload, Text: id, Time: PreloadMarkerTime(trigger, lead)}
}

// PreloadMarkerTime clamps trigger-lead so it never reaches zero or below.
func PreloadMarkerTime(trigger, lead time.Duration) time.Duration {
	t := trigger - lead
	if t < MinMarkerTime {
		return MinMarkerTime
	}
	return t
}

// InWindow reports whether the marker lies in the half-open crossing window
// (from, to].
func (m Marker) InWindow(from, to time.Duration) bool {
	return m.Time > from && m.Time <= to
}

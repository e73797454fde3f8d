// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package schedule

import (
	"fmt"
	"time"
)

// Options tunes trigger evaluation and preloading. The zero value disables
// preloading and forward-only evaluation; use DefaultOptions.
type Options struct {
	// PreloadTime is how far ahead of its trigger an ad is preloaded.
	PreloadTime time.Duration
	// PreloadAds adds a preload marker for every midroll.
	PreloadAds bool
	// PreloadPostroll adds a preload marker near the end of media for the
	// first eligible postroll.
	PreloadPostroll bool
	// EvaluateOnForwardOnly ignores backward seeks and scrubs.
	EvaluateOnForwardOnly bool
	// SeekToAdPosition moves the main content to the ad's slot end (or its
	// trigger point for zero-length slots) when a seek jumps over it.
	SeekToAdPosition bool
	// InterruptScrub evaluates markers while the user is still scrubbing.
	InterruptScrub bool
}

// DefaultOptions mirrors the player defaults.
func DefaultOptions() Options {
	return Options{
		PreloadTime:           5 * time.Second,
		PreloadAds:            true,
		PreloadPostroll:       true,
		EvaluateOnForwardOnly: true,
		SeekToAdPosition:      true,
		InterruptScrub:        true,
	}
}

// Validate rejects settings the controller cannot honour.
func (o Options) Validate() error {
	if o.PreloadTime < 0 {
		return fmt.Errorf("preload time must be >= 0, got %v", o.PreloadTime)
	}
	return nil
}

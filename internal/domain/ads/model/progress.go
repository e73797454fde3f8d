// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

// AdProgress is a playback milestone reported by the ad player.
type AdProgress string

const (
	ProgressStarted       AdProgress = "started"
	ProgressFirstQuartile AdProgress = "first_quartile"
	ProgressMidpoint      AdProgress = "midpoint"
	ProgressThirdQuartile AdProgress = "third_quartile"
	ProgressComplete      AdProgress = "complete"
)

// ProgressFunc receives milestones in order. Implementations must not block.
type ProgressFunc func(AdProgress)

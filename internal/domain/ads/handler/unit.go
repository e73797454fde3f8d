// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package handler

import (
	"context"
	"errors"
	"time"

	"github.com/ManuGH/adscheduler/internal/domain/ads/model"
)

var (
	// ErrNoFactory is returned when no factory is registered for a source type.
	ErrNoFactory = errors.New("no ad factory registered for source type")
	// ErrStartTimeout is returned when an ad did not start within StartTimeout.
	ErrStartTimeout = errors.New("ad did not start in time")
	// ErrCompanionsRequired is returned when the companion rule of a unit was
	// violated. Every companion shown for the unit has been rolled back.
	ErrCompanionsRequired = errors.New("required companion ads failed to load")
)

// Player is one loaded ad creative.
type Player interface {
	// Play blocks until the creative finished, failed or ctx was canceled.
	// The first progress call marks the ad as started.
	Play(ctx context.Context, progress model.ProgressFunc) error
	// Unload releases the creative. It is called exactly once per unit.
	Unload()
}

// CompanionRule is how many companions of a unit must show for the unit to
// play.
type CompanionRule string

const (
	CompanionRuleNone CompanionRule = "none"
	CompanionRuleAny  CompanionRule = "any"
	CompanionRuleAll  CompanionRule = "all"
)

// Companion is a creative shown next to the player while the ad runs.
type Companion struct {
	ID       string
	AdSlotID string
	Resource string
	Width    int
	Height   int
}

// Icon is an industry icon overlaid on the ad. Only icons with a static
// image resource are scheduled.
type Icon struct {
	Program        string
	StaticResource string
	ClickThrough   string
	// Offset delays the icon from ad start.
	Offset time.Duration
	// Duration hides the icon again; zero keeps it until the ad ends.
	Duration time.Duration
}

// AdUnit is what a Factory builds for a source.
type AdUnit struct {
	Player        Player
	Companions    []Companion
	CompanionRule CompanionRule
	Icons         []Icon
}

// Factory loads the ad unit for a source.
type Factory interface {
	Load(ctx context.Context, src *model.Source) (*AdUnit, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, src *model.Source) (*AdUnit, error)

func (f FactoryFunc) Load(ctx context.Context, src *model.Source) (*AdUnit, error) {
	return f(ctx, src)
}

// CompanionHost places companion creatives into the page.
type CompanionHost interface {
	// ShowCompanion displays c. The returned undo removes it again; a nil
	// undo counts as a failed load.
	ShowCompanion(ctx context.Context, c Companion) (undo func(), err error)
}

// IconHost renders icons over the ad player.
type IconHost interface {
	ShowIcon(icon Icon)
	HideIcon(icon Icon)
}

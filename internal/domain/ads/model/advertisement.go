// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package model holds the advertisement and marker types shared by the
// schedule controller, the ad handler and the loaders that feed them.
package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUnknownKind classifies advertisements whose Kind is not one of the
	// preroll/midroll/postroll variants.
	ErrUnknownKind = errors.New("unknown advertisement kind")
	// ErrNilAdvertisement is returned when a nil advertisement is passed to a
	// mutating API.
	ErrNilAdvertisement = errors.New("advertisement is nil")
)

// Kind tags the Advertisement variant.
type Kind string

const (
	KindPreroll  Kind = "preroll"
	KindMidroll  Kind = "midroll"
	KindPostroll Kind = "postroll"
)

// Valid reports whether k is one of the known variants.
func (k Kind) Valid() bool {
	switch k {
	case KindPreroll, KindMidroll, KindPostroll:
		return true
	}
	return false
}

// Source describes where an ad comes from. It is opaque to the scheduler;
// only the ad handler interprets Type and Payload.
type Source struct {
	// Type selects the player factory (e.g. "vast", "vpaid").
	Type string
	// URI is an optional remote reference to the ad document.
	URI string
	// Payload carries an already-resolved ad document, if any.
	Payload any
}

// Advertisement is a closed tagged union over Kind. Time, TimePercentage and
// Duration are only meaningful for KindMidroll.
type Advertisement struct {
	ID     string
	Kind   Kind
	Source *Source

	// Time is the absolute trigger offset into the main content.
	Time time.Duration
	// TimePercentage, when set, is resolved to Time (0..100 of the media
	// duration) once the duration is known.
	TimePercentage *float64
	// Duration is the length of the ad slot in the main content. Positive
	// values make the controller skip the slot after (or instead of) playing.
	Duration time.Duration
}

// NewPreroll creates a preroll advertisement with a fresh ID.
func NewPreroll(src *Source) *Advertisement {
	return &Advertisement{ID: uuid.NewString(), Kind: KindPreroll, Source: src}
}

// NewMidroll creates a midroll triggered at an absolute offset.
func NewMidroll(src *Source, at, slot time.Duration) *Advertisement {
	return &Advertisement{ID: uuid.NewString(), Kind: KindMidroll, Source: src, Time: at, Duration: slot}
}

// NewMidrollPercent creates a midroll triggered at a percentage of the media
// duration. Time stays zero until ResolveTime is called.
func NewMidrollPercent(src *Source, percent float64, slot time.Duration) *Advertisement {
	p := percent
	return &Advertisement{ID: uuid.NewString(), Kind: KindMidroll, Source: src, TimePercentage: &p, Duration: slot}
}

// NewPostroll creates a postroll advertisement with a fresh ID.
func NewPostroll(src *Source) *Advertisement {
	return &Advertisement{ID: uuid.NewString(), Kind: KindPostroll, Source: src}
}

// Validate fails fast on configuration bugs.
func (a *Advertisement) Validate() error {
	if a == nil {
		return ErrNilAdvertisement
	}
	if !a.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, a.Kind)
	}
	if a.ID == "" {
		return errors.New("advertisement id is empty")
	}
	if a.Kind != KindMidroll {
		return nil
	}
	if a.Time < 0 {
		return fmt.Errorf("midroll %s: negative time %v", a.ID, a.Time)
	}
	if a.Duration < 0 {
		return fmt.Errorf("midroll %s: negative duration %v", a.ID, a.Duration)
	}
	if p := a.TimePercentage; p != nil && (*p < 0 || *p > 100) {
		return fmt.Errorf("midroll %s: time percentage %v out of range", a.ID, *p)
	}
	return nil
}

// HasSource reports whether the advertisement can ever be played.
func (a *Advertisement) HasSource() bool {
	return a != nil && a.Source != nil
}

// ResolveTime converts TimePercentage into an absolute Time against the media
// duration. Midrolls without a percentage are left untouched.
func (a *Advertisement) ResolveTime(mediaDuration time.Duration) {
	if a.Kind != KindMidroll || a.TimePercentage == nil {
		return
	}
	a.Time = time.Duration(float64(mediaDuration) * *a.TimePercentage / 100)
}

// SlotEnd is the main-content position right after the ad slot.
func (a *Advertisement) SlotEnd() time.Duration {
	return a.Time + a.Duration
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package handler resolves ad sources to concrete players and runs them:
// preloading into a single reusable slot, enforcing the start timeout and
// activating companion ads and icons around playback.
package handler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/adscheduler/internal/domain/ads/model"
	"github.com/ManuGH/adscheduler/internal/domain/ads/ports"
	"github.com/ManuGH/adscheduler/internal/log"
	"github.com/ManuGH/adscheduler/internal/telemetry"
)

// Config wires a Handler. Companions and Icons are optional.
type Config struct {
	Companions CompanionHost
	Icons      IconHost
	// StartTimeout bounds how long an ad may take to report its first
	// progress. Zero disables the bound.
	StartTimeout time.Duration
	Clock        Clock
}

// Handler implements ports.AdHandler on top of registered factories.
type Handler struct {
	cfg    Config
	clock  Clock
	logger zerolog.Logger
	tracer trace.Tracer

	mu        sync.Mutex
	factories map[string]Factory
	preloaded *preloadedUnit
}

type preloadedUnit struct {
	src  *model.Source
	unit *AdUnit
}

var _ ports.AdHandler = (*Handler)(nil)

func New(cfg Config) *Handler {
	clock := cfg.Clock
	if clock == nil {
		clock = RealClock{}
	}
	return &Handler{
		cfg:       cfg,
		clock:     clock,
		logger:    log.WithComponent("handler"),
		tracer:    telemetry.Tracer("adscheduler.handler"),
		factories: make(map[string]Factory),
	}
}

// Register installs f for sources of the given type, replacing any
// previous factory.
func (h *Handler) Register(sourceType string, f Factory) {
	h.mu.Lock()
	h.factories[sourceType] = f
	h.mu.Unlock()
}

// PreloadAd loads src into the preload slot. A unit already sitting in the
// slot is unloaded.
func (h *Handler) PreloadAd(ctx context.Context, src *model.Source) error {
	unit, err := h.load(ctx, src)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		unit.Player.Unload()
		return err
	}

	h.mu.Lock()
	prev := h.preloaded
	h.preloaded = &preloadedUnit{src: src, unit: unit}
	h.mu.Unlock()
	if prev != nil {
		prev.unit.Player.Unload()
	}
	return nil
}

// PlayAd plays src, reusing the preloaded unit when it matches.
func (h *Handler) PlayAd(ctx context.Context, src *model.Source, progress model.ProgressFunc) error {
	logger := log.WithContext(ctx, h.logger)

	unit := h.takePreloaded(src)
	if unit == nil {
		var err error
		if unit, err = h.load(ctx, src); err != nil {
			return err
		}
	} else {
		logger.Debug().Str(log.FieldEvent, "handler.preload_reused").Msg("playing preloaded ad unit")
	}
	defer unit.Player.Unload()

	act, err := h.activate(ctx, unit)
	if err != nil {
		return err
	}
	defer act.deactivate()

	return h.play(ctx, unit.Player, progress)
}

// Reset unloads the preload slot.
func (h *Handler) Reset() {
	h.mu.Lock()
	prev := h.preloaded
	h.preloaded = nil
	h.mu.Unlock()
	if prev != nil {
		prev.unit.Player.Unload()
	}
}

func (h *Handler) load(ctx context.Context, src *model.Source) (*AdUnit, error) {
	if src == nil {
		return nil, errors.New("handler: nil source")
	}
	h.mu.Lock()
	f, ok := h.factories[src.Type]
	h.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoFactory, src.Type)
	}

	unit, err := f.Load(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("load %s ad %q: %w", src.Type, src.URI, err)
	}
	if unit == nil || unit.Player == nil {
		return nil, fmt.Errorf("load %s ad %q: factory returned no player", src.Type, src.URI)
	}
	return unit, nil
}

// takePreloaded claims the preloaded unit for src. A unit preloaded for a
// different source is unloaded.
func (h *Handler) takePreloaded(src *model.Source) *AdUnit {
	h.mu.Lock()
	p := h.preloaded
	h.preloaded = nil
	h.mu.Unlock()
	if p == nil {
		return nil
	}
	if sameSource(p.src, src) {
		return p.unit
	}
	p.unit.Player.Unload()
	return nil
}

func sameSource(a, b *model.Source) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.Type == b.Type && a.URI == b.URI
}

// play runs p, abandoning it with ErrStartTimeout when no progress arrives
// within StartTimeout.
func (h *Handler) play(ctx context.Context, p Player, progress model.ProgressFunc) error {
	timeout := h.cfg.StartTimeout
	if timeout <= 0 {
		return p.Play(ctx, progress)
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var started atomic.Bool
	timer := h.clock.AfterFunc(timeout, func() {
		if !started.Load() {
			cancel(ErrStartTimeout)
		}
	})
	defer timer.Stop()

	err := p.Play(ctx, func(pr model.AdProgress) {
		if started.CompareAndSwap(false, true) {
			timer.Stop()
		}
		if progress != nil {
			progress(pr)
		}
	})
	if err != nil && errors.Is(context.Cause(ctx), ErrStartTimeout) {
		return fmt.Errorf("%w after %v", ErrStartTimeout, timeout)
	}
	return err
}

// spanError marks span failed with err.
func spanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

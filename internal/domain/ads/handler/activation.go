// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package handler

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/adscheduler/internal/log"
	"github.com/ManuGH/adscheduler/internal/metrics"
	"github.com/ManuGH/adscheduler/internal/telemetry"
)

// activation is the companion and icon state of one playing unit.
type activation struct {
	undos []func()
	icons *iconSchedule
}

// activate shows the unit's companions and schedules its icons. When the
// companion rule is violated every companion shown is rolled back and
// ErrCompanionsRequired is returned.
func (h *Handler) activate(ctx context.Context, unit *AdUnit) (*activation, error) {
	ctx, span := h.tracer.Start(ctx, "adsched.handler.activate")
	defer span.End()

	undos, err := h.showCompanions(ctx, span, unit)
	if err != nil {
		spanError(span, err)
		return nil, err
	}
	return &activation{
		undos: undos,
		icons: h.scheduleIcons(unit.Icons),
	}, nil
}

func (h *Handler) showCompanions(ctx context.Context, span trace.Span, unit *AdUnit) ([]func(), error) {
	if len(unit.Companions) == 0 || h.cfg.Companions == nil {
		return nil, nil
	}
	logger := log.WithContext(ctx, h.logger)

	var undos []func()
	failed := 0
	for _, c := range unit.Companions {
		undo, err := h.cfg.Companions.ShowCompanion(ctx, c)
		if err != nil || undo == nil {
			failed++
			logger.Debug().
				Err(err).
				Str(log.FieldEvent, "handler.companion_failed").
				Str("companion_id", c.ID).
				Msg("companion ad failed to load")
			continue
		}
		undos = append(undos, undo)
	}

	rule := unit.CompanionRule
	if rule == "" {
		rule = CompanionRuleNone
	}
	attempted := len(unit.Companions)
	span.SetAttributes(telemetry.CompanionAttributes(string(rule), len(undos), failed)...)

	violated := false
	switch rule {
	case CompanionRuleAny:
		violated = failed == attempted
	case CompanionRuleAll:
		violated = failed > 0
	}
	if !violated {
		return undos, nil
	}

	rollback(undos)
	metrics.IncCompanionFailure(string(rule))
	logger.Warn().
		Str(log.FieldEvent, "handler.companions_rolled_back").
		Str("rule", string(rule)).
		Int("failed", failed).
		Int("attempted", attempted).
		Msg("companion rule violated, companions rolled back")
	return nil, fmt.Errorf("%w: rule %s, %d of %d failed", ErrCompanionsRequired, rule, failed, attempted)
}

func rollback(undos []func()) {
	for i := len(undos) - 1; i >= 0; i-- {
		undos[i]()
	}
}

// deactivate cancels pending icons, hides visible ones and removes the
// companions.
func (a *activation) deactivate() {
	a.icons.cancel()
	rollback(a.undos)
}

// iconSchedule owns the timers of one unit's icons.
type iconSchedule struct {
	host IconHost

	mu      sync.Mutex
	closed  bool
	timers  []Timer
	visible map[int]Icon
}

func (h *Handler) scheduleIcons(icons []Icon) *iconSchedule {
	s := &iconSchedule{host: h.cfg.Icons, visible: make(map[int]Icon)}
	if s.host == nil {
		return s
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, icon := range icons {
		if icon.StaticResource == "" {
			continue
		}
		s.timers = append(s.timers, h.clock.AfterFunc(icon.Offset, func() {
			s.show(h.clock, i, icon)
		}))
	}
	return s
}

func (s *iconSchedule) show(clock Clock, i int, icon Icon) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.visible[i] = icon
	s.host.ShowIcon(icon)
	if icon.Duration > 0 {
		s.timers = append(s.timers, clock.AfterFunc(icon.Duration, func() {
			s.hide(i)
		}))
	}
}

func (s *iconSchedule) hide(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	icon, ok := s.visible[i]
	if s.closed || !ok {
		return
	}
	delete(s.visible, i)
	s.host.HideIcon(icon)
}

// cancel stops every pending timer and hides the icons still showing.
// Callbacks that already fired either finished or see closed.
func (s *iconSchedule) cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, t := range s.timers {
		t.Stop()
	}
	for i, icon := range s.visible {
		s.host.HideIcon(icon)
		delete(s.visible, i)
	}
}

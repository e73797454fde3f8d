// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package scenario

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/adscheduler/internal/domain/ads/model"
	"github.com/ManuGH/adscheduler/internal/domain/ads/schedule"
	"github.com/ManuGH/adscheduler/internal/domain/ads/testkit"
	"github.com/ManuGH/adscheduler/internal/log"
)

// Runner replays steps against an initialized controller. Each step waits
// for ad playback it caused to finish before the next one starts, the way a
// real player pauses main content during an ad.
type Runner struct {
	Controller *schedule.Controller
	Host       *testkit.FakeHost
	Logger     zerolog.Logger
}

// Run executes steps in order.
func (r *Runner) Run(ctx context.Context, steps []Step) error {
	for i, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.Logger.Info().
			Str(log.FieldEvent, "sim.step").
			Int("step", i).
			Str("action", string(s.Action)).
			Dur(log.FieldPosition, r.Host.Position()).
			Msg("replaying step")
		if err := r.step(ctx, s); err != nil {
			return fmt.Errorf("step %d (%s): %w", i, s.Action, err)
		}
		if err := r.Controller.WaitIdle(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) step(ctx context.Context, s Step) error {
	switch s.Action {
	case ActionOpen:
		r.Host.OpenMedia()
	case ActionStart:
		return waitDeferral(ctx, r.Host.StartMedia())
	case ActionEnd:
		return waitDeferral(ctx, r.Host.EndMedia())
	case ActionPlay:
		return r.playTo(ctx, s.To)
	case ActionSeek:
		e := r.Host.Seek(s.To)
		r.Logger.Debug().Bool("canceled", e.Canceled).Dur(log.FieldPosition, e.Position).Msg("seek raised")
	case ActionScrub:
		e := r.Host.Scrub(s.Through...)
		r.Logger.Debug().Bool("canceled", e.Canceled).Dur(log.FieldPosition, e.Position).Msg("scrub raised")
	case ActionHandle:
		r.Controller.MarkHandled(s.Ad)
	case ActionUnhandle:
		r.Controller.Unhandle(s.Ad)
	case ActionRemove:
		r.Controller.Remove(s.Ad)
	default:
		return fmt.Errorf("unknown action %q", s.Action)
	}
	return nil
}

// playTo advances playback in real time, reaching every marker on the way.
// Markers sharing a timestamp are all reached.
func (r *Runner) playTo(ctx context.Context, to time.Duration) error {
	for {
		pos := r.Host.Position()
		var due []model.Marker
		for _, m := range r.Host.Markers() {
			if m.InWindow(pos, to) {
				due = append(due, m)
			}
		}
		if len(due) == 0 {
			break
		}
		sort.SliceStable(due, func(i, j int) bool { return due[i].Time < due[j].Time })
		at := due[0].Time
		for _, m := range due {
			if m.Time != at {
				break
			}
			r.Host.ReachMarker(m)
			if err := r.Controller.WaitIdle(ctx); err != nil {
				return err
			}
		}
		if r.Host.Position() < at {
			r.Host.MoveTo(at)
		}
	}
	if r.Host.Position() < to {
		r.Host.MoveTo(to)
	}
	return nil
}

func waitDeferral(ctx context.Context, e *testkit.FakeEvent) error {
	d := e.Deferral()
	if d == nil {
		return nil
	}
	select {
	case <-d.Completed():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/adscheduler/internal/domain/ads/handler"
	"github.com/ManuGH/adscheduler/internal/domain/ads/model"
	"github.com/ManuGH/adscheduler/internal/log"
)

// Factory builds simulated ad units from the AdSpec carried in the source
// payload.
func Factory() handler.Factory {
	return handler.FactoryFunc(func(_ context.Context, src *model.Source) (*handler.AdUnit, error) {
		spec, ok := src.Payload.(AdSpec)
		if !ok {
			return nil, fmt.Errorf("source %q carries no scenario ad", src.URI)
		}
		unit := &handler.AdUnit{
			Player:        &simPlayer{spec: spec},
			CompanionRule: handler.CompanionRule(spec.CompanionRule),
		}
		for _, c := range spec.Companions {
			unit.Companions = append(unit.Companions, handler.Companion{ID: c.ID, Resource: c.Resource})
		}
		for _, i := range spec.Icons {
			unit.Icons = append(unit.Icons, handler.Icon{
				Program:        i.Program,
				StaticResource: i.Image,
				Offset:         i.Offset,
				Duration:       i.Duration,
			})
		}
		return unit, nil
	})
}

// simPlayer reports quartiles spread over PlayTime.
type simPlayer struct {
	spec AdSpec
}

func (p *simPlayer) Play(ctx context.Context, progress model.ProgressFunc) error {
	emit := func(pr model.AdProgress) {
		if progress != nil {
			progress(pr)
		}
	}
	emit(model.ProgressStarted)
	if p.spec.Fail != "" {
		return errors.New(p.spec.Fail)
	}
	steps := []model.AdProgress{
		model.ProgressFirstQuartile,
		model.ProgressMidpoint,
		model.ProgressThirdQuartile,
		model.ProgressComplete,
	}
	quarter := p.spec.PlayTime / 4
	for _, pr := range steps {
		if quarter > 0 {
			t := time.NewTimer(quarter)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		emit(pr)
	}
	return nil
}

func (p *simPlayer) Unload() {}

// LogCompanions shows companions by logging them. Companions marked fail
// in the scenario fail to load.
type LogCompanions struct {
	Doc    *Document
	Logger zerolog.Logger
}

func (l LogCompanions) ShowCompanion(_ context.Context, c handler.Companion) (func(), error) {
	for _, ad := range l.Doc.Ads {
		for _, spec := range ad.Companions {
			if spec.ID == c.ID && spec.Fail {
				return nil, fmt.Errorf("companion %s: resource unavailable", c.ID)
			}
		}
	}
	l.Logger.Info().Str(log.FieldEvent, "sim.companion_shown").Str("companion_id", c.ID).Msg("companion shown")
	return func() {
		l.Logger.Info().Str(log.FieldEvent, "sim.companion_removed").Str("companion_id", c.ID).Msg("companion removed")
	}, nil
}

// LogIcons renders icons by logging them.
type LogIcons struct {
	Logger zerolog.Logger
}

func (l LogIcons) ShowIcon(icon handler.Icon) {
	l.Logger.Info().Str(log.FieldEvent, "sim.icon_shown").Str("program", icon.Program).Msg("icon shown")
}

func (l LogIcons) HideIcon(icon handler.Icon) {
	l.Logger.Info().Str(log.FieldEvent, "sim.icon_hidden").Str("program", icon.Program).Msg("icon hidden")
}

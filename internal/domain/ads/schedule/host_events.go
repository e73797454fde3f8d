// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package schedule

import (
	"github.com/ManuGH/adscheduler/internal/domain/ads/model"
	"github.com/ManuGH/adscheduler/internal/domain/ads/ports"
	"github.com/ManuGH/adscheduler/internal/log"
	"github.com/ManuGH/adscheduler/internal/metrics"
)

// hostListener adapts host notifications onto the controller without
// exporting the handler methods.
type hostListener struct {
	c *Controller
}

var _ ports.HostListener = hostListener{}

func (l hostListener) MediaOpened() { l.c.onMediaOpened() }

func (l hostListener) MediaStarting(e ports.DeferrableEvent) { l.c.onMediaStarting(e) }

func (l hostListener) MediaEnding(e ports.DeferrableEvent) { l.c.onMediaEnding(e) }

func (l hostListener) MarkerReached(m model.Marker) { l.c.onMarkerReached(m) }

func (l hostListener) Seeked(e *ports.PositionEvent) {
	if e == nil {
		return
	}
	if l.c.EvaluateMarkers(e.Previous, e.Position) {
		e.Canceled = true
	}
}

func (l hostListener) ScrubbingStarted(e *ports.PositionEvent) {
	if e == nil {
		return
	}
	l.c.logger.Debug().
		Str(log.FieldEvent, "ads.scrub_started").
		Dur(log.FieldPosition, e.Position).
		Msg("scrubbing started")
}

func (l hostListener) Scrubbing(e *ports.PositionEvent) {
	if e == nil || !l.c.Options().InterruptScrub {
		return
	}
	if l.c.EvaluateMarkers(e.Previous, e.Position) {
		e.Canceled = true
	}
}

func (l hostListener) ScrubbingCompleted(e *ports.PositionEvent) {
	if e == nil || e.Canceled {
		return
	}
	e.Canceled = l.c.EvaluateMarkers(e.Previous, e.Position)
}

// onMediaOpened starts a new media session: handled state is reset, markers
// are re-derived against the now known duration and ads before the startup
// position are skipped.
func (c *Controller) onMediaOpened() {
	if c.current() == nil {
		return
	}

	c.preloads.cancel(func(*operation) bool { return true })
	c.cancelPlaying()
	c.removeMarkers(func(model.Marker) bool { return true })

	duration := c.host.Duration()
	startup, hasStartup := c.host.StartupPosition()

	c.mu.Lock()
	c.handled = make(map[string]struct{})
	c.duration = duration
	c.mediaOpen = true
	markers := c.deriveMarkersLocked()
	skipped := 0
	if hasStartup && startup > 0 {
		for _, ad := range c.ads {
			switch ad.Kind {
			case model.KindPreroll:
				c.handled[ad.ID] = struct{}{}
				skipped++
			case model.KindMidroll:
				if ad.Time < startup {
					c.handled[ad.ID] = struct{}{}
					skipped++
				}
			}
		}
	}
	c.mu.Unlock()

	for _, m := range markers {
		c.host.AddMarker(m)
	}

	c.logger.Info().
		Str(log.FieldEvent, "ads.media_opened").
		Dur("duration", duration).
		Int("markers", len(markers)).
		Int("skipped_before_startup", skipped).
		Msg("ad markers derived for media")
}

func (c *Controller) onMediaStarting(e ports.DeferrableEvent) {
	sess := c.current()
	if sess == nil {
		return
	}
	c.mu.Lock()
	prerolls := c.eligibleByKindLocked(model.KindPreroll)
	c.mu.Unlock()
	if len(prerolls) == 0 {
		return
	}
	if !c.host.AllowMediaStartingDeferrals() {
		e = nil
	}
	c.runBatch(sess, metrics.PhaseStarting, prerolls, e)
}

func (c *Controller) onMediaEnding(e ports.DeferrableEvent) {
	sess := c.current()
	if sess == nil {
		return
	}
	c.mu.Lock()
	postrolls := c.eligibleByKindLocked(model.KindPostroll)
	c.mu.Unlock()
	if len(postrolls) == 0 {
		return
	}
	c.runBatch(sess, metrics.PhaseEnding, postrolls, e)
}

// deriveMarkersLocked resolves percentage midrolls and returns the markers
// for the whole list in list order.
func (c *Controller) deriveMarkersLocked() []model.Marker {
	var out []model.Marker
	postrollPlaced := false
	for _, ad := range c.ads {
		ad.ResolveTime(c.duration)
		ms := c.markersForLocked(ad, !postrollPlaced)
		if ad.Kind == model.KindPostroll && len(ms) > 0 {
			postrollPlaced = true
		}
		out = append(out, ms...)
	}
	return out
}

// markersForLocked returns the markers of one ad. allowPostroll gates the
// single end-of-media preload marker.
func (c *Controller) markersForLocked(ad *model.Advertisement, allowPostroll bool) []model.Marker {
	switch ad.Kind {
	case model.KindMidroll:
		out := []model.Marker{model.PlayMarker(ad)}
		if c.opts.PreloadAds && ad.Source != nil {
			out = append(out, model.PreloadMarker(ad.ID, ad.Time, c.opts.PreloadTime))
		}
		return out
	case model.KindPostroll:
		if allowPostroll && c.opts.PreloadPostroll && c.duration > 0 && c.eligibleLocked(ad) {
			return []model.Marker{model.PreloadMarker(ad.ID, c.duration, c.opts.PreloadTime)}
		}
	}
	return nil
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package schedule

import (
	"context"
	"time"

	"github.com/ManuGH/adscheduler/internal/domain/ads/model"
	"github.com/ManuGH/adscheduler/internal/log"
	"github.com/ManuGH/adscheduler/internal/metrics"
)

// resolved is a marker's advertisement as seen under the controller lock.
type resolved struct {
	ad       *model.Advertisement
	eligible bool
	handled  bool
	slot     time.Duration
}

func (c *Controller) resolve(id string, kind model.Kind) resolved {
	c.mu.Lock()
	defer c.mu.Unlock()
	ad := c.findLocked(id)
	if ad == nil || ad.Kind != kind {
		return resolved{}
	}
	_, handled := c.handled[id]
	return resolved{
		ad:       ad,
		eligible: c.eligibleLocked(ad),
		handled:  handled,
		slot:     ad.Duration,
	}
}

// EvaluateMarkers scans the play markers crossed by a jump from "from" to
// "to" (window (from, to]) and starts the first eligible midroll it finds.
// It reports whether an ad started. Later markers in the same window are not
// evaluated once an ad started.
func (c *Controller) EvaluateMarkers(from, to time.Duration) bool {
	sess := c.current()
	if sess == nil {
		return false
	}
	opts := c.Options()
	if opts.EvaluateOnForwardOnly && to <= from {
		return false
	}

	for _, m := range c.host.Markers() {
		if m.Type != model.MarkerPlay || !m.InWindow(from, to) {
			continue
		}
		r := c.resolve(m.Text, model.KindMidroll)
		if r.eligible {
			sync := to
			if opts.SeekToAdPosition {
				sync = m.Time + r.slot
			}
			return c.startMidroll(sess, r.ad, sync, sync != to, metrics.TriggerWindow)
		}
		if r.handled && r.slot > 0 {
			c.skipSlot(m, m.Time+r.slot, to)
		}
	}
	return false
}

// onMarkerReached handles the host crossing one marker in real time.
func (c *Controller) onMarkerReached(m model.Marker) {
	sess := c.current()
	if sess == nil {
		return
	}
	switch m.Type {
	case model.MarkerPlay:
		r := c.resolve(m.Text, model.KindMidroll)
		switch {
		case r.eligible:
			c.startMidroll(sess, r.ad, m.Time+r.slot, r.slot > 0, metrics.TriggerMarker)
		case r.handled && r.slot > 0:
			c.skipSlot(m, m.Time+r.slot, c.host.Position())
		}
	case model.MarkerPreload:
		c.mu.Lock()
		ad := c.findLocked(m.Text)
		eligible := c.eligibleLocked(ad)
		c.mu.Unlock()
		if eligible {
			c.startPreload(sess, ad)
		}
	}
}

// skipSlot moves the main content past the slot of an ad that was already
// handled when the position landed inside it.
func (c *Controller) skipSlot(m model.Marker, slotEnd, pos time.Duration) {
	if pos < m.Time || pos >= slotEnd {
		return
	}
	metrics.IncSlotSkip()
	c.logger.Info().
		Str(log.FieldEvent, "ads.slot_skip").
		Str(log.FieldAdID, m.Text).
		Dur(log.FieldMarkerTime, m.Time).
		Dur(log.FieldPosition, pos).
		Dur("slot_end", slotEnd).
		Msg("skipping slot of handled ad")
	c.host.SetPosition(slotEnd)
}

// startMidroll marks ad handled, optionally syncs the main content to sync
// and plays the ad as a tracked task. It returns false when the ad is no
// longer eligible or another ad is already playing.
func (c *Controller) startMidroll(sess *session, ad *model.Advertisement, sync time.Duration, setPosition bool, source string) bool {
	c.mu.Lock()
	if c.sess != sess || !c.eligibleLocked(ad) {
		c.mu.Unlock()
		return false
	}
	if c.playing != nil {
		c.mu.Unlock()
		c.logger.Debug().
			Str(log.FieldEvent, "ads.trigger_ignored").
			Str(log.FieldAdID, ad.ID).
			Msg("ad trigger ignored, another ad is playing")
		return false
	}
	c.handled[ad.ID] = struct{}{}
	op := newOperation(sess.ctx, ad)
	c.playing = op
	c.mu.Unlock()

	metrics.IncMarkerTrigger(source)
	c.logger.Info().
		Str(log.FieldEvent, "ads.trigger").
		Str(log.FieldAdID, ad.ID).
		Str("trigger", source).
		Dur(log.FieldMarkerTime, ad.Time).
		Dur(log.FieldPosition, sync).
		Bool("sync_position", setPosition).
		Msg("midroll triggered")

	if setPosition {
		c.host.SetPosition(sync)
	}

	started := c.spawn(sess, "midroll", func() {
		defer op.finish()
		defer c.clearPlaying(op)
		_ = c.playAd(op.ctx, ad)
	})
	if !started {
		c.clearPlaying(op)
		op.finish()
	}
	return true
}

func (c *Controller) clearPlaying(op *operation) {
	c.mu.Lock()
	if c.playing == op {
		c.playing = nil
	}
	c.mu.Unlock()
}

// WaitIdle blocks until no ad or batch is playing or ctx is done.
func (c *Controller) WaitIdle(ctx context.Context) error {
	for {
		c.mu.Lock()
		op := c.playing
		c.mu.Unlock()
		if op == nil {
			return nil
		}
		select {
		case <-op.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// cancelPlaying cancels the active play or batch operation and waits for it
// to unwind.
func (c *Controller) cancelPlaying() {
	c.mu.Lock()
	op := c.playing
	c.mu.Unlock()
	if op != nil {
		op.cancelAndWait()
	}
}

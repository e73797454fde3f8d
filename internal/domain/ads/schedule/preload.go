// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package schedule

import (
	"sync"

	"github.com/ManuGH/adscheduler/internal/domain/ads/model"
	"github.com/ManuGH/adscheduler/internal/log"
	"github.com/ManuGH/adscheduler/internal/metrics"
)

// preloadCoordinator owns at most one active preload operation. A new
// operation claims the slot at once; its task drains the operation it
// replaced before doing any work, so claims are honoured in call order.
type preloadCoordinator struct {
	mu     sync.Mutex
	active *operation
}

// claim adopts next as the active operation and returns the one it
// replaced. It refuses when an operation for the same ad is already active.
func (p *preloadCoordinator) claim(next *operation) (prev *operation, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active != nil && p.active.adID == next.adID {
		return nil, false
	}
	prev = p.active
	p.active = next
	return prev, true
}

// cancel drains the active operation if match accepts it.
func (p *preloadCoordinator) cancel(match func(*operation) bool) bool {
	p.mu.Lock()
	op := p.active
	if op == nil || !match(op) {
		p.mu.Unlock()
		return false
	}
	p.active = nil
	p.mu.Unlock()

	op.cancelAndWait()
	return true
}

func (p *preloadCoordinator) current() *operation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// release drops op once it finished on its own.
func (p *preloadCoordinator) release(op *operation) {
	p.mu.Lock()
	if p.active == op {
		p.active = nil
	}
	p.mu.Unlock()
}

func (p *preloadCoordinator) clear() {
	p.mu.Lock()
	p.active = nil
	p.mu.Unlock()
}

// startPreload preloads ad as a tracked task unless it is already being
// preloaded or played.
func (c *Controller) startPreload(sess *session, ad *model.Advertisement) {
	c.mu.Lock()
	busy := c.playing != nil && c.playing.adID == ad.ID
	c.mu.Unlock()
	if busy {
		return
	}

	op := newOperation(sess.ctx, ad)
	prev, ok := c.preloads.claim(op)
	if !ok {
		return
	}
	if prev != nil {
		metrics.IncPreload(metrics.OutcomeReplaced)
		c.logger.Debug().
			Str(log.FieldEvent, "ads.preload_replaced").
			Str(log.FieldAdID, ad.ID).
			Str("replaced_ad_id", prev.adID).
			Msg("active preload replaced")
	}

	started := c.spawn(sess, "preload", func() {
		defer op.finish()
		defer c.preloads.release(op)
		if prev != nil {
			prev.cancelAndWait()
		}
		c.runPreload(op, ad)
	})
	if !started {
		c.preloads.release(op)
		op.finish()
		if prev != nil {
			prev.cancel()
		}
	}
}

// runPreload performs the advisory preload. Every failure is swallowed.
func (c *Controller) runPreload(op *operation, ad *model.Advertisement) {
	c.mu.Lock()
	still := c.findLocked(ad.ID) == ad && c.eligibleLocked(ad)
	c.mu.Unlock()
	if !still || op.ctx.Err() != nil {
		metrics.IncPreload(metrics.OutcomeCanceled)
		return
	}

	logger := log.WithContext(op.ctx, c.logger)
	err := c.handler.PreloadAd(op.ctx, ad.Source)
	switch {
	case err == nil:
		metrics.IncPreload(metrics.OutcomeOK)
		logger.Debug().Str(log.FieldEvent, "ads.preloaded").Msg("ad preloaded")
	case isCancellation(err) || op.ctx.Err() != nil:
		metrics.IncPreload(metrics.OutcomeCanceled)
	default:
		metrics.IncPreload(metrics.OutcomeFailed)
		logger.Warn().
			Err(err).
			Str(log.FieldEvent, "ads.preload_failed").
			Msg("ad preload failed, playback will load it cold")
	}
}

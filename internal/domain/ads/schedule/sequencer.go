// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package schedule

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/adscheduler/internal/domain/ads/model"
	"github.com/ManuGH/adscheduler/internal/domain/ads/ports"
	"github.com/ManuGH/adscheduler/internal/log"
	"github.com/ManuGH/adscheduler/internal/metrics"
	"github.com/ManuGH/adscheduler/internal/telemetry"
)

// runBatch plays a pre/post-roll batch as the single playing operation.
// When e is non-nil the host is held with a deferral until the batch ends.
func (c *Controller) runBatch(sess *session, phase string, ads []*model.Advertisement, e ports.DeferrableEvent) {
	c.mu.Lock()
	if c.sess != sess {
		c.mu.Unlock()
		return
	}
	if c.playing != nil {
		c.mu.Unlock()
		c.logger.Debug().
			Str(log.FieldEvent, "ads.batch_ignored").
			Str(log.FieldBatch, phase).
			Msg("batch ignored, another ad is playing")
		return
	}
	op := newOperation(sess.ctx, nil)
	c.playing = op
	c.mu.Unlock()

	var deferral ports.Deferral
	if e != nil {
		deferral = e.GetDeferral()
	}

	started := c.spawn(sess, phase, func() {
		defer op.finish()
		defer c.clearPlaying(op)
		c.playBatch(op, phase, ads, deferral)
	})
	if !started {
		c.clearPlaying(op)
		op.finish()
		if deferral != nil {
			deferral.Complete()
		}
	}
}

func (c *Controller) playBatch(op *operation, phase string, ads []*model.Advertisement, deferral ports.Deferral) {
	if deferral != nil {
		var hostCanceled atomic.Bool
		stop := make(chan struct{})
		watcherDone := make(chan struct{})
		go func() {
			defer close(watcherDone)
			select {
			case <-deferral.Canceled():
				hostCanceled.Store(true)
				op.cancel()
			case <-stop:
			}
		}()
		defer func() {
			close(stop)
			<-watcherDone
			outcome := metrics.OutcomeOK
			if hostCanceled.Load() || op.ctx.Err() != nil {
				outcome = metrics.OutcomeCanceled
			}
			deferral.Complete()
			metrics.IncDeferral(phase, outcome)
		}()
	}
	ctx, span := c.tracer.Start(op.ctx, "adsched.ad.batch",
		trace.WithAttributes(telemetry.BatchAttributes(phase, len(ads))...))
	defer span.End()

	c.logger.Info().
		Str(log.FieldEvent, "ads.batch_start").
		Str(log.FieldBatch, phase).
		Int(log.FieldBatchSize, len(ads)).
		Bool("deferred", deferral != nil).
		Msg("ad batch starting")
	c.playAds(ctx, phase, ads)
}

// playAds plays ads in order, marking each handled before it starts. It
// stops early once ctx is canceled.
func (c *Controller) playAds(ctx context.Context, phase string, ads []*model.Advertisement) {
	for i, ad := range ads {
		c.MarkHandled(ad.ID)
		_ = c.playAd(log.ContextWithAdID(ctx, ad.ID), ad)
		if ctx.Err() != nil {
			c.logger.Info().
				Str(log.FieldEvent, "ads.batch_aborted").
				Str(log.FieldBatch, phase).
				Int("remaining", len(ads)-i-1).
				Msg("ad batch canceled")
			return
		}
	}
}

// playAd plays one ad through the handler and reports its lifecycle to
// subscribers. Ads without a source are skipped.
func (c *Controller) playAd(ctx context.Context, ad *model.Advertisement) error {
	if !ad.HasSource() {
		return nil
	}
	// A half-finished preload of the same ad is dropped; the handler loads cold.
	c.preloads.cancel(func(op *operation) bool { return op.adID == ad.ID })

	ctx, span := c.tracer.Start(ctx, "adsched.ad.play",
		trace.WithAttributes(telemetry.AdAttributes(ad.ID, string(ad.Kind), ad.Source.Type)...))
	defer span.End()
	logger := log.WithContext(ctx, c.logger)

	c.observers.starting(ad)
	metrics.IncAdStarted(string(ad.Kind))
	logger.Info().
		Str(log.FieldEvent, "ads.play_start").
		Str(log.FieldAdKind, string(ad.Kind)).
		Str(log.FieldSource, ad.Source.Type).
		Msg("ad playback starting")

	start := time.Now()
	err := c.handler.PlayAd(ctx, ad.Source, func(p model.AdProgress) {
		c.observers.progress(ad, p)
	})
	ev := AdCompleted{Ad: ad, Elapsed: time.Since(start)}

	outcome := metrics.OutcomeOK
	switch {
	case err == nil:
	case isCancellation(err):
		ev.Canceled = true
		outcome = metrics.OutcomeCanceled
	default:
		ev.Err = err
		outcome = metrics.OutcomeFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String(telemetry.AdOutcomeKey, outcome))
	metrics.ObserveAdCompleted(string(ad.Kind), outcome, ev.Elapsed.Seconds())

	evt := logger.Info()
	if ev.Err != nil {
		evt = logger.Warn().Err(ev.Err)
	}
	evt.Str(log.FieldEvent, "ads.play_end").
		Str("outcome", outcome).
		Dur("elapsed", ev.Elapsed).
		Msg("ad playback finished")

	c.observers.completed(ev)
	return ev.Err
}

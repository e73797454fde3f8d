// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics exposes the Prometheus collectors of the ad scheduler.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels shared by play, preload and deferral counters.
const (
	OutcomeOK       = "ok"
	OutcomeFailed   = "failed"
	OutcomeCanceled = "canceled"
	OutcomeReplaced = "replaced"

	TriggerWindow = "window"
	TriggerMarker = "marker"

	PhaseStarting = "starting"
	PhaseEnding   = "ending"

	labelUnknown = "unknown"
)

var (
	adsStartedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adsched_ads_started_total",
		Help: "Ads handed to the ad handler, by kind",
	}, []string{"kind"})

	adsCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adsched_ads_completed_total",
		Help: "Ad playback completions by kind and outcome",
	}, []string{"kind", "outcome"})

	adPlaySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "adsched_ad_play_seconds",
		Help:    "Wall time from ad start to completion",
		Buckets: []float64{0.5, 1, 2, 5, 10, 15, 30, 45, 60, 90, 120},
	}, []string{"kind", "outcome"})

	preloadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adsched_preload_total",
		Help: "Preload operations by outcome",
	}, []string{"outcome"})

	markerTriggersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adsched_marker_triggers_total",
		Help: "Ads triggered from timeline markers, by trigger source",
	}, []string{"source"})

	slotSkipsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adsched_slot_skips_total",
		Help: "Main-content jumps over the slot of an already handled ad",
	})

	companionFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adsched_companion_failures_total",
		Help: "Ad activations rolled back because the companion rule was violated",
	}, []string{"rule"})

	deferralsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adsched_deferrals_total",
		Help: "Host deferrals taken for pre/post-roll batches, by phase and outcome",
	}, []string{"phase", "outcome"})
)

// IncAdStarted records an ad handed to the ad handler.
func IncAdStarted(kind string) {
	adsStartedTotal.WithLabelValues(normalizeKindLabel(kind)).Inc()
}

// ObserveAdCompleted records an ad completion and its play time.
func ObserveAdCompleted(kind, outcome string, seconds float64) {
	k := normalizeKindLabel(kind)
	o := normalizeOutcomeLabel(outcome)
	adsCompletedTotal.WithLabelValues(k, o).Inc()
	adPlaySeconds.WithLabelValues(k, o).Observe(seconds)
}

// IncPreload records a finished preload operation.
func IncPreload(outcome string) {
	preloadTotal.WithLabelValues(normalizeOutcomeLabel(outcome)).Inc()
}

// IncMarkerTrigger records an ad triggered by a window scan or a reached marker.
func IncMarkerTrigger(source string) {
	switch source {
	case TriggerWindow, TriggerMarker:
	default:
		source = labelUnknown
	}
	markerTriggersTotal.WithLabelValues(source).Inc()
}

// IncSlotSkip records a jump over a handled ad's slot.
func IncSlotSkip() {
	slotSkipsTotal.Inc()
}

// IncCompanionFailure records a companion-rule rollback.
func IncCompanionFailure(rule string) {
	r := strings.ToLower(strings.TrimSpace(rule))
	if r == "" {
		r = labelUnknown
	}
	companionFailuresTotal.WithLabelValues(r).Inc()
}

// IncDeferral records a completed host deferral.
func IncDeferral(phase, outcome string) {
	switch phase {
	case PhaseStarting, PhaseEnding:
	default:
		phase = labelUnknown
	}
	deferralsTotal.WithLabelValues(phase, normalizeOutcomeLabel(outcome)).Inc()
}

func normalizeKindLabel(kind string) string {
	switch k := strings.ToLower(strings.TrimSpace(kind)); k {
	case "preroll", "midroll", "postroll":
		return k
	default:
		return labelUnknown
	}
}

func normalizeOutcomeLabel(outcome string) string {
	switch o := strings.ToLower(strings.TrimSpace(outcome)); o {
	case OutcomeOK, OutcomeFailed, OutcomeCanceled, OutcomeReplaced:
		return o
	default:
		return labelUnknown
	}
}

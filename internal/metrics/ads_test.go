// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func getCounterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, counter.Write(metric))
	return metric.GetCounter().GetValue()
}

func getCounterVecValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	return getCounterValue(t, vec.WithLabelValues(labels...))
}

func getHistogramCount(t *testing.T, vec *prometheus.HistogramVec, labels ...string) uint64 {
	t.Helper()
	h, ok := vec.WithLabelValues(labels...).(prometheus.Histogram)
	require.True(t, ok, "observer is not a prometheus.Histogram")
	metric := &dto.Metric{}
	require.NoError(t, h.Write(metric))
	return metric.GetHistogram().GetSampleCount()
}

func TestIncAdStarted_NormalizesKind(t *testing.T) {
	before := getCounterVecValue(t, adsStartedTotal, "unknown")
	IncAdStarted("interstitial")
	require.Equal(t, before+1, getCounterVecValue(t, adsStartedTotal, "unknown"))

	before = getCounterVecValue(t, adsStartedTotal, "midroll")
	IncAdStarted(" Midroll ")
	require.Equal(t, before+1, getCounterVecValue(t, adsStartedTotal, "midroll"))
}

func TestObserveAdCompleted(t *testing.T) {
	countBefore := getCounterVecValue(t, adsCompletedTotal, "postroll", OutcomeFailed)
	histBefore := getHistogramCount(t, adPlaySeconds, "postroll", OutcomeFailed)

	ObserveAdCompleted("postroll", "FAILED", 3.5)

	require.Equal(t, countBefore+1, getCounterVecValue(t, adsCompletedTotal, "postroll", OutcomeFailed))
	require.Equal(t, histBefore+1, getHistogramCount(t, adPlaySeconds, "postroll", OutcomeFailed))
}

func TestIncPreloadAndDeferral(t *testing.T) {
	before := getCounterVecValue(t, preloadTotal, OutcomeReplaced)
	IncPreload(OutcomeReplaced)
	require.Equal(t, before+1, getCounterVecValue(t, preloadTotal, OutcomeReplaced))

	before = getCounterVecValue(t, deferralsTotal, "unknown", OutcomeOK)
	IncDeferral("middle", OutcomeOK)
	require.Equal(t, before+1, getCounterVecValue(t, deferralsTotal, "unknown", OutcomeOK))
}

func TestIncMarkerTriggerAndSlotSkip(t *testing.T) {
	before := getCounterVecValue(t, markerTriggersTotal, TriggerWindow)
	IncMarkerTrigger(TriggerWindow)
	require.Equal(t, before+1, getCounterVecValue(t, markerTriggersTotal, TriggerWindow))

	skips := getCounterValue(t, slotSkipsTotal)
	IncSlotSkip()
	require.Equal(t, skips+1, getCounterValue(t, slotSkipsTotal))

	failures := getCounterVecValue(t, companionFailuresTotal, "any")
	IncCompanionFailure("Any")
	require.Equal(t, failures+1, getCounterVecValue(t, companionFailuresTotal, "any"))
}

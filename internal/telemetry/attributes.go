// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys used on scheduler and handler spans.
const (
	AdIDKey         = "ad.id"
	AdKindKey       = "ad.kind"
	AdSourceTypeKey = "ad.source_type"
	AdOutcomeKey    = "ad.outcome"

	BatchPhaseKey = "ad.batch.phase"
	BatchSizeKey  = "ad.batch.size"

	CompanionRuleKey   = "ad.companion.rule"
	CompanionLoadedKey = "ad.companion.loaded"
	CompanionFailedKey = "ad.companion.failed"
)

// AdAttributes describes the ad a span is about. Empty values are omitted.
func AdAttributes(id, kind, sourceType string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if id != "" {
		attrs = append(attrs, attribute.String(AdIDKey, id))
	}
	if kind != "" {
		attrs = append(attrs, attribute.String(AdKindKey, kind))
	}
	if sourceType != "" {
		attrs = append(attrs, attribute.String(AdSourceTypeKey, sourceType))
	}
	return attrs
}

// BatchAttributes describes a pre/post-roll batch.
func BatchAttributes(phase string, size int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(BatchPhaseKey, phase),
		attribute.Int(BatchSizeKey, size),
	}
}

// CompanionAttributes summarises a companion activation pass.
func CompanionAttributes(rule string, loaded, failed int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(CompanionRuleKey, rule),
		attribute.Int(CompanionLoadedKey, loaded),
		attribute.Int(CompanionFailedKey, failed),
	}
}

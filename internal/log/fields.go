// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldAdID      = "ad_id"
	FieldAdKind    = "ad_kind"
	FieldSource    = "source_type"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Timeline fields
	FieldMarkerType = "marker_type"
	FieldMarkerTime = "marker_time"
	FieldPosition   = "position"
	FieldPrevious   = "previous"

	// Batch fields
	FieldBatch     = "batch"
	FieldBatchSize = "batch_size"
)

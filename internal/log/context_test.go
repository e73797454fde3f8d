// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestContextIDs(t *testing.T) {
	ctx := ContextWithSessionID(context.Background(), "sess-1")
	ctx = ContextWithAdID(ctx, "ad-1")

	if got := SessionIDFromContext(ctx); got != "sess-1" {
		t.Fatalf("session id = %q, want sess-1", got)
	}
	if got := AdIDFromContext(ctx); got != "ad-1" {
		t.Fatalf("ad id = %q, want ad-1", got)
	}
	//nolint:staticcheck // nil context is part of the contract
	if got := SessionIDFromContext(nil); got != "" {
		t.Fatalf("nil context returned %q", got)
	}
}

func TestWithContext_AddsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ctx := ContextWithAdID(ContextWithSessionID(context.Background(), "sess-2"), "ad-2")
	l := WithContext(ctx, logger)
	l.Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry[FieldSessionID] != "sess-2" {
		t.Errorf("session_id = %v", entry[FieldSessionID])
	}
	if entry[FieldAdID] != "ad-2" {
		t.Errorf("ad_id = %v", entry[FieldAdID])
	}
}

func TestWithContext_NoFieldsReturnsSameLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	l := WithContext(context.Background(), logger)
	l.Info().Msg("plain")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if _, ok := entry[FieldSessionID]; ok {
		t.Error("unexpected session_id field")
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	Reconfigure(Config{Level: "debug", Output: &buf, Service: "test"})
	t.Cleanup(func() { Reconfigure(Config{}) })

	l := WithComponent("schedule")
	l.Info().Msg("component line")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry[FieldComponent] != "schedule" {
		t.Errorf("component = %v", entry[FieldComponent])
	}
	if entry["service"] != "test" {
		t.Errorf("service = %v", entry["service"])
	}
}

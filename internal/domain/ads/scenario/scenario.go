// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package scenario loads a static ad schedule together with a scripted host
// timeline and replays it against the schedule controller.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/adscheduler/internal/domain/ads/model"
	"github.com/ManuGH/adscheduler/internal/domain/ads/testkit"
)

// Document is one scenario file.
type Document struct {
	Media MediaSpec `yaml:"media"`
	Ads   []AdSpec  `yaml:"ads"`
	Steps []Step    `yaml:"steps"`
}

// MediaSpec describes the main content.
type MediaSpec struct {
	Duration        time.Duration  `yaml:"duration"`
	StartupPosition *time.Duration `yaml:"startupPosition,omitempty"`
	AllowDeferrals  *bool          `yaml:"allowDeferrals,omitempty"`
}

// AdSpec is one scheduled advertisement and how its simulated creative
// behaves.
type AdSpec struct {
	ID       string         `yaml:"id"`
	Kind     model.Kind     `yaml:"kind"`
	Time     *time.Duration `yaml:"time,omitempty"`
	Percent  *float64       `yaml:"percent,omitempty"`
	Duration time.Duration  `yaml:"duration,omitempty"`
	URI      string         `yaml:"uri,omitempty"`

	// PlayTime is how long the simulated creative runs.
	PlayTime time.Duration `yaml:"playTime,omitempty"`
	// Fail makes the simulated creative fail with this message.
	Fail          string          `yaml:"fail,omitempty"`
	CompanionRule string          `yaml:"companionRule,omitempty"`
	Companions    []CompanionSpec `yaml:"companions,omitempty"`
	Icons         []IconSpec      `yaml:"icons,omitempty"`
}

type CompanionSpec struct {
	ID       string `yaml:"id"`
	Resource string `yaml:"resource"`
	Fail     bool   `yaml:"fail,omitempty"`
}

type IconSpec struct {
	Program  string        `yaml:"program"`
	Image    string        `yaml:"image,omitempty"`
	Offset   time.Duration `yaml:"offset,omitempty"`
	Duration time.Duration `yaml:"duration,omitempty"`
}

// Action is a scripted host event.
type Action string

const (
	ActionOpen     Action = "open"
	ActionStart    Action = "start"
	ActionPlay     Action = "play"
	ActionSeek     Action = "seek"
	ActionScrub    Action = "scrub"
	ActionEnd      Action = "end"
	ActionHandle   Action = "handle"
	ActionUnhandle Action = "unhandle"
	ActionRemove   Action = "remove"
)

// Step is one timeline entry. To is used by play and seek, Through by
// scrub and Ad by handle, unhandle and remove.
type Step struct {
	Action  Action          `yaml:"action"`
	To      time.Duration   `yaml:"to,omitempty"`
	Through []time.Duration `yaml:"through,omitempty"`
	Ad      string          `yaml:"ad,omitempty"`
}

// SourceType is the source type of scenario ads.
const SourceType = "sim"

// Load reads and validates a scenario file.
func Load(path string) (*Document, error) {
	// #nosec G304 -- scenario paths are provided by the operator via CLI
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(data)
}

// Parse decodes a single strict YAML document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("scenario is empty")
		}
		return nil, fmt.Errorf("strict scenario parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errors.New("scenario contains multiple documents or trailing content")
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks the document is replayable.
func (d *Document) Validate() error {
	if d.Media.Duration <= 0 {
		return errors.New("media.duration must be > 0")
	}
	seen := make(map[string]struct{}, len(d.Ads))
	for i, ad := range d.Ads {
		if ad.ID == "" {
			return fmt.Errorf("ads[%d]: id is required", i)
		}
		if _, dup := seen[ad.ID]; dup {
			return fmt.Errorf("ads[%d]: duplicate id %q", i, ad.ID)
		}
		seen[ad.ID] = struct{}{}
		if ad.Kind == model.KindMidroll && (ad.Time == nil) == (ad.Percent == nil) {
			return fmt.Errorf("ads[%d]: midroll needs exactly one of time or percent", i)
		}
	}
	for i, s := range d.Steps {
		switch s.Action {
		case ActionOpen, ActionStart, ActionEnd:
		case ActionPlay, ActionSeek:
			if s.To < 0 {
				return fmt.Errorf("steps[%d]: negative position", i)
			}
		case ActionScrub:
			if len(s.Through) == 0 {
				return fmt.Errorf("steps[%d]: scrub needs through positions", i)
			}
		case ActionHandle, ActionUnhandle, ActionRemove:
			if _, ok := seen[s.Ad]; !ok {
				return fmt.Errorf("steps[%d]: unknown ad %q", i, s.Ad)
			}
		default:
			return fmt.Errorf("steps[%d]: unknown action %q", i, s.Action)
		}
	}
	return nil
}

// Advertisements builds the schedule in document order.
func (d *Document) Advertisements() ([]*model.Advertisement, error) {
	out := make([]*model.Advertisement, 0, len(d.Ads))
	for _, spec := range d.Ads {
		ad := &model.Advertisement{
			ID:             spec.ID,
			Kind:           spec.Kind,
			Source:         spec.Source(),
			TimePercentage: spec.Percent,
			Duration:       spec.Duration,
		}
		if spec.Time != nil {
			ad.Time = *spec.Time
		}
		if err := ad.Validate(); err != nil {
			return nil, err
		}
		out = append(out, ad)
	}
	return out, nil
}

// Source is the simulated source of the ad.
func (s AdSpec) Source() *model.Source {
	uri := s.URI
	if uri == "" {
		uri = s.ID
	}
	return &model.Source{Type: SourceType, URI: uri, Payload: s}
}

// NewHost returns an in-memory host configured for the media.
func (d *Document) NewHost() *testkit.FakeHost {
	host := testkit.NewFakeHost(d.Media.Duration)
	if d.Media.StartupPosition != nil {
		host.SetStartupPosition(*d.Media.StartupPosition)
	}
	if d.Media.AllowDeferrals != nil {
		host.SetAllowMediaStartingDeferrals(*d.Media.AllowDeferrals)
	}
	return host
}

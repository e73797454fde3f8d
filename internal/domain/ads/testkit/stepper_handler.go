// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package testkit

import (
	"context"
	"sync"

	"github.com/ManuGH/adscheduler/internal/domain/ads/model"
	"github.com/ManuGH/adscheduler/internal/domain/ads/ports"
)

// SourceType is the source type the stepper handler claims.
const SourceType = "stepper"

// Source builds a source the stepper handler recognises by uri.
func Source(uri string) *model.Source {
	return &model.Source{Type: SourceType, URI: uri}
}

// StepperHandler is a scripted ad handler. Calls complete immediately unless
// blocked, in which case they wait for Release or cancellation. Every call
// is recorded as "<op>:<phase>:<uri>" in Events.
type StepperHandler struct {
	mu       sync.Mutex
	events   []string
	fail     map[string]error
	gates    map[string]chan struct{}
	released map[string]bool

	playStarted    chan string
	preloadStarted chan string
}

var _ ports.AdHandler = (*StepperHandler)(nil)

func NewStepperHandler() *StepperHandler {
	return &StepperHandler{
		fail:           make(map[string]error),
		gates:          make(map[string]chan struct{}),
		released:       make(map[string]bool),
		playStarted:    make(chan string, 64),
		preloadStarted: make(chan string, 64),
	}
}

// FailPlay makes PlayAd for uri return err.
func (s *StepperHandler) FailPlay(uri string, err error) {
	s.mu.Lock()
	s.fail["play:"+uri] = err
	s.mu.Unlock()
}

// FailPreload makes PreloadAd for uri return err.
func (s *StepperHandler) FailPreload(uri string, err error) {
	s.mu.Lock()
	s.fail["preload:"+uri] = err
	s.mu.Unlock()
}

// BlockPlay holds PlayAd for uri until ReleasePlay or cancellation.
func (s *StepperHandler) BlockPlay(uri string) { s.block("play:" + uri) }

// BlockPreload holds PreloadAd for uri until ReleasePreload or cancellation.
func (s *StepperHandler) BlockPreload(uri string) { s.block("preload:" + uri) }

func (s *StepperHandler) ReleasePlay(uri string) { s.release("play:" + uri) }

func (s *StepperHandler) ReleasePreload(uri string) { s.release("preload:" + uri) }

func (s *StepperHandler) block(key string) {
	s.mu.Lock()
	if _, ok := s.gates[key]; !ok {
		s.gates[key] = make(chan struct{})
	}
	s.mu.Unlock()
}

func (s *StepperHandler) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gate, ok := s.gates[key]; ok && !s.released[key] {
		s.released[key] = true
		close(gate)
	}
}

// PlayStarted yields the uri of every PlayAd call as it begins.
func (s *StepperHandler) PlayStarted() <-chan string { return s.playStarted }

// PreloadStarted yields the uri of every PreloadAd call as it begins.
func (s *StepperHandler) PreloadStarted() <-chan string { return s.preloadStarted }

// Events returns the recorded call log.
func (s *StepperHandler) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

func (s *StepperHandler) record(ev string) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *StepperHandler) PreloadAd(ctx context.Context, src *model.Source) error {
	return s.run(ctx, "preload", src.URI, s.preloadStarted, nil)
}

func (s *StepperHandler) PlayAd(ctx context.Context, src *model.Source, progress model.ProgressFunc) error {
	return s.run(ctx, "play", src.URI, s.playStarted, progress)
}

func (s *StepperHandler) run(ctx context.Context, op, uri string, started chan string, progress model.ProgressFunc) error {
	key := op + ":" + uri
	s.record(key + ":start")
	select {
	case started <- uri:
	default:
	}
	if progress != nil {
		progress(model.ProgressStarted)
	}

	s.mu.Lock()
	gate := s.gates[key]
	err := s.fail[key]
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			s.record(key + ":canceled")
			return ctx.Err()
		}
	}
	if err != nil {
		s.record(key + ":failed")
		return err
	}
	if progress != nil {
		progress(model.ProgressFirstQuartile)
		progress(model.ProgressMidpoint)
		progress(model.ProgressThirdQuartile)
		progress(model.ProgressComplete)
	}
	s.record(key + ":done")
	return nil
}

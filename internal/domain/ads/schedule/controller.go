// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package schedule is the ad schedule controller: it keeps the advertisement
// list in step with the host's marker timeline, decides which ad plays when
// the playback position crosses a marker, preloads ads ahead of their
// trigger, and plays pre/post-roll batches under host deferrals.
package schedule

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/adscheduler/internal/domain/ads/model"
	"github.com/ManuGH/adscheduler/internal/domain/ads/ports"
	"github.com/ManuGH/adscheduler/internal/log"
	"github.com/ManuGH/adscheduler/internal/telemetry"
)

// Config wires a Controller to its collaborators.
type Config struct {
	Host    ports.HostPlayer
	Handler ports.AdHandler
	Options Options
}

// Controller orchestrates ad scheduling for one host player.
type Controller struct {
	host    ports.HostPlayer
	handler ports.AdHandler
	logger  zerolog.Logger
	tracer  trace.Tracer

	observers observerSet
	preloads  preloadCoordinator

	// lifeMu serialises Initialize and Uninitialize.
	lifeMu sync.Mutex

	mu        sync.Mutex
	opts      Options
	sess      *session
	ads       []*model.Advertisement
	handled   map[string]struct{}
	playing   *operation
	mediaOpen bool
	duration  time.Duration
}

// New validates cfg and returns an uninitialized controller.
func New(cfg Config) (*Controller, error) {
	if cfg.Host == nil {
		return nil, errors.New("schedule: host player is required")
	}
	if cfg.Handler == nil {
		return nil, errors.New("schedule: ad handler is required")
	}
	if err := cfg.Options.Validate(); err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}
	return &Controller{
		host:    cfg.Host,
		handler: cfg.Handler,
		opts:    cfg.Options,
		logger:  log.WithComponent("schedule"),
		tracer:  telemetry.Tracer("adscheduler.schedule"),
		handled: make(map[string]struct{}),
	}, nil
}

// Initialize creates a fresh session and subscribes to the host player.
func (c *Controller) Initialize() error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	c.mu.Lock()
	if c.sess != nil {
		c.mu.Unlock()
		return ErrAlreadyInitialized
	}
	sess := newSession()
	c.sess = sess
	c.mu.Unlock()

	sess.reg = c.host.Subscribe(hostListener{c: c})
	c.logger.Info().
		Str(log.FieldEvent, "ads.initialized").
		Str(log.FieldSessionID, sess.id).
		Msg("ad schedule controller wired to host")
	return nil
}

// Uninitialize cancels every outstanding operation, unsubscribes from the
// host and waits for tracked tasks to unwind.
func (c *Controller) Uninitialize() error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	c.mu.Lock()
	sess := c.sess
	c.sess = nil
	c.mu.Unlock()
	if sess == nil {
		return ErrNotInitialized
	}

	sess.cancel()
	if sess.reg != nil {
		_ = sess.reg.Close()
	}
	_ = sess.tasks.Wait()
	c.preloads.clear()

	c.logger.Info().
		Str(log.FieldEvent, "ads.uninitialized").
		Str(log.FieldSessionID, sess.id).
		Msg("ad schedule controller unwired")
	return nil
}

// Close uninitializes the controller if it is wired.
func (c *Controller) Close() error {
	if err := c.Uninitialize(); err != nil && !errors.Is(err, ErrNotInitialized) {
		return err
	}
	return nil
}

// Subscribe registers lifecycle hooks. Closing the registration removes them.
func (c *Controller) Subscribe(h Hooks) ports.Registration {
	return c.observers.add(h)
}

// SetOptions replaces the options; they apply from the next evaluation.
func (c *Controller) SetOptions(o Options) error {
	if err := o.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.opts = o
	c.mu.Unlock()
	return nil
}

// Options returns the active options.
func (c *Controller) Options() Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts
}

// Advertisements returns a snapshot of the schedule in list order.
func (c *Controller) Advertisements() []*model.Advertisement {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*model.Advertisement(nil), c.ads...)
}

// HandledIDs returns the IDs of ads that will not be triggered again.
func (c *Controller) HandledIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.handled))
	for _, ad := range c.ads {
		if _, ok := c.handled[ad.ID]; ok {
			out = append(out, ad.ID)
		}
	}
	return out
}

// IsHandled reports whether id was played, skipped or explicitly handled.
func (c *Controller) IsHandled(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.handled[id]
	return ok
}

// MarkHandled skips an ad for the rest of the media session.
func (c *Controller) MarkHandled(id string) {
	c.mu.Lock()
	c.handled[id] = struct{}{}
	c.mu.Unlock()
}

// Unhandle re-arms an ad so its markers trigger again.
func (c *Controller) Unhandle(id string) {
	c.mu.Lock()
	delete(c.handled, id)
	c.mu.Unlock()
}

// Add schedules one advertisement. Once media is open its markers are placed
// immediately.
func (c *Controller) Add(ad *model.Advertisement) error {
	if err := ad.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	for _, existing := range c.ads {
		if existing.ID == ad.ID {
			c.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrDuplicateAdvertisement, ad.ID)
		}
	}
	hadPostroll := c.hasKindLocked(model.KindPostroll)
	c.ads = append(c.ads, ad)
	var markers []model.Marker
	if c.mediaOpen {
		ad.ResolveTime(c.duration)
		markers = c.markersForLocked(ad, !hadPostroll)
	}
	c.mu.Unlock()

	for _, m := range markers {
		c.host.AddMarker(m)
	}
	return nil
}

// Remove unschedules the advertisement with the given ID, removes its
// markers and cancels an in-flight preload of its source.
func (c *Controller) Remove(id string) bool {
	c.mu.Lock()
	var removed *model.Advertisement
	for i, ad := range c.ads {
		if ad.ID == id {
			removed = ad
			c.ads = append(c.ads[:i:i], c.ads[i+1:]...)
			break
		}
	}
	delete(c.handled, id)
	c.mu.Unlock()
	if removed == nil {
		return false
	}

	c.removeMarkers(func(m model.Marker) bool { return m.Text == id })
	if removed.Source != nil {
		c.preloads.cancel(func(op *operation) bool { return op.source == removed.Source })
	}
	return true
}

// Update swaps in the advertisement list of a new playlist item. Handled
// state is reset and in-flight preload and play operations are canceled.
func (c *Controller) Update(ads []*model.Advertisement) error {
	seen := make(map[string]struct{}, len(ads))
	for _, ad := range ads {
		if err := ad.Validate(); err != nil {
			return err
		}
		if _, dup := seen[ad.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateAdvertisement, ad.ID)
		}
		seen[ad.ID] = struct{}{}
	}

	c.preloads.cancel(func(*operation) bool { return true })
	c.cancelPlaying()
	c.removeMarkers(func(model.Marker) bool { return true })

	c.mu.Lock()
	c.ads = append([]*model.Advertisement(nil), ads...)
	c.handled = make(map[string]struct{})
	var markers []model.Marker
	if c.mediaOpen {
		markers = c.deriveMarkersLocked()
	}
	c.mu.Unlock()

	for _, m := range markers {
		c.host.AddMarker(m)
	}
	c.logger.Debug().
		Str(log.FieldEvent, "ads.updated").
		Int(log.FieldBatchSize, len(ads)).
		Msg("advertisement list replaced")
	return nil
}

// eligibleLocked reports whether ad may still be triggered.
func (c *Controller) eligibleLocked(ad *model.Advertisement) bool {
	if ad == nil || ad.Source == nil {
		return false
	}
	_, handled := c.handled[ad.ID]
	return !handled
}

func (c *Controller) findLocked(id string) *model.Advertisement {
	for _, ad := range c.ads {
		if ad.ID == id {
			return ad
		}
	}
	return nil
}

func (c *Controller) eligibleByKindLocked(kind model.Kind) []*model.Advertisement {
	var out []*model.Advertisement
	for _, ad := range c.ads {
		if ad.Kind == kind && c.eligibleLocked(ad) {
			out = append(out, ad)
		}
	}
	return out
}

func (c *Controller) hasKindLocked(kind model.Kind) bool {
	for _, ad := range c.ads {
		if ad.Kind == kind {
			return true
		}
	}
	return false
}

// removeMarkers removes the reserved markers for which match returns true.
func (c *Controller) removeMarkers(match func(model.Marker) bool) {
	for _, m := range c.host.Markers() {
		if m.Type.Reserved() && match(m) {
			c.host.RemoveMarker(m)
		}
	}
}

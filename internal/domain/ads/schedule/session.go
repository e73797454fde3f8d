// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package schedule

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/adscheduler/internal/domain/ads/model"
	"github.com/ManuGH/adscheduler/internal/domain/ads/ports"
	"github.com/ManuGH/adscheduler/internal/log"
)

// session is the state owned by one Initialize/Uninitialize cycle. Every
// operation context derives from ctx, so cancel tears all of them down.
type session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	tasks  errgroup.Group
	reg    ports.Registration
}

func newSession() *session {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(log.ContextWithSessionID(context.Background(), id))
	return &session{id: id, ctx: ctx, cancel: cancel}
}

// operation is one in-flight preload, play or batch. done is closed once the
// goroutine running it has fully unwound.
type operation struct {
	adID   string
	source *model.Source
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func newOperation(parent context.Context, ad *model.Advertisement) *operation {
	op := &operation{done: make(chan struct{})}
	if ad != nil {
		op.adID = ad.ID
		op.source = ad.Source
		parent = log.ContextWithAdID(parent, ad.ID)
	}
	op.ctx, op.cancel = context.WithCancel(parent)
	return op
}

func (o *operation) finish() {
	o.cancel()
	close(o.done)
}

// cancelAndWait signals the operation and blocks until it has unwound.
func (o *operation) cancelAndWait() {
	o.cancel()
	<-o.done
}

// spawn runs fn as a task tracked by sess. It refuses once sess is no longer
// current, so no task starts after Uninitialize began waiting. A panic in fn
// is logged after fn's own deferred cleanup ran.
func (c *Controller) spawn(sess *session, task string, fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess != sess || sess == nil {
		return false
	}
	sess.tasks.Go(func() error {
		defer c.recoverTask(task)
		fn()
		return nil
	})
	return true
}

func (c *Controller) recoverTask(task string) {
	if r := recover(); r != nil {
		c.logger.Error().
			Str(log.FieldEvent, "ads.task_panic").
			Str("task", task).
			Interface("panic", r).
			Msg("ad task panicked")
	}
}

// current returns the wired session, or nil.
func (c *Controller) current() *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

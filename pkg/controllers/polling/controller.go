/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package polling

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/autoscaler-playground/autoscaler/pkg/utils/log"
)

// Reconciler performs one tick of work. An error marks the tick as failed; the loop continues regardless.
type Reconciler interface {
	Name() string
	Reconcile(context.Context) error
}

type ControllerInterface interface {
	Start(context.Context)
	Stop(context.Context)
	Trigger()
	Active() bool
}

// Controller runs its Reconciler in a loop, waiting a fixed interval on the injected clock between ticks. Ticks never
// overlap: the wait for tick N+1 starts only after tick N has returned. Trigger skips the remaining wait and Stop ends
// the loop after the current tick.
type Controller struct {
	r        Reconciler
	clk      clock.Clock
	interval time.Duration

	// reconcile runs a single tick and may be replaced by decorators
	reconcile func(context.Context) error

	active   bool
	activeMu sync.RWMutex
	stop     chan struct{}
	trigger  chan struct{}

	ticks   atomic.Int64
	cancels sync.Map
}

func NewController(rec Reconciler, clk clock.Clock, interval time.Duration) *Controller {
	c := &Controller{
		r:        rec,
		clk:      clk,
		interval: interval,
		trigger:  make(chan struct{}, 1),
	}
	c.reconcile = c.Reconcile
	return c
}

// WithHealth returns a decorated version of the polling controller that surfaces health information
// based on the success or failure of a reconciliation loop
func (t *Controller) WithHealth() *ControllerWithHealth {
	return NewControllerWithHealth(t)
}

// Start runs the loop until the context is done or Stop is called. Calling Start on an active controller, including
// one that is stopping, returns immediately.
func (t *Controller) Start(ctx context.Context) {
	t.activeMu.Lock()
	if t.active {
		t.activeMu.Unlock()
		return
	}
	stop := make(chan struct{})
	t.stop = stop
	t.setActive(true)
	t.activeMu.Unlock()
	defer func() {
		t.activeMu.Lock()
		defer t.activeMu.Unlock()
		if t.stop == stop {
			t.stop = nil
		}
		t.setActive(false)
	}()

	log.FromContext(ctx).WithValues("controller", t.r.Name(), "interval", t.interval.String()).Info("starting controller")
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		default:
		}
		t.tick(ctx)
		select {
		case <-ctx.Done():
			log.FromContext(ctx).WithValues("controller", t.r.Name()).Info("stopping controller")
			return
		case <-stop:
			return
		case <-t.trigger:
		case <-t.clk.After(t.interval):
		}
	}
}

// Trigger requests an immediate tick. Triggers received while a tick is running collapse into one.
func (t *Controller) Trigger() {
	select {
	case t.trigger <- struct{}{}:
	default:
	}
}

// Stop ends the loop after the current tick and cancels the contexts of running reconciliations. The controller stays
// active until the loop has returned, so a Start issued in between is a no-op.
func (t *Controller) Stop(ctx context.Context) {
	log.FromContext(ctx).WithValues("controller", t.r.Name()).Info("stopping controller")
	t.activeMu.Lock()
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	t.activeMu.Unlock()
	t.cancels.Range(func(_ any, c any) bool {
		cancel := c.(context.CancelFunc)
		cancel()
		return true
	})
}

func (t *Controller) Name() string {
	return t.r.Name()
}

// Active gets whether the loop is running right now
func (t *Controller) Active() bool {
	t.activeMu.RLock()
	defer t.activeMu.RUnlock()
	return t.active
}

func (t *Controller) setActive(active bool) {
	t.active = active
	if active {
		Active.Set(1, map[string]string{controllerLabel: t.r.Name()})
	} else {
		Active.Set(0, map[string]string{controllerLabel: t.r.Name()})
	}
}

// Ticks is the number of ticks the loop has completed
func (t *Controller) Ticks() int64 {
	return t.ticks.Load()
}

// Reconcile runs a single tick of the wrapped Reconciler under a context that Stop can cancel
func (t *Controller) Reconcile(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Store the cancel function for the duration of Reconcile, so we can cancel on a Stop() call
	cancelID := uuid.New()
	t.cancels.Store(cancelID, cancel)
	defer t.cancels.Delete(cancelID)

	return t.r.Reconcile(ctx)
}

func (t *Controller) tick(ctx context.Context) {
	TriggerCount.Inc(map[string]string{controllerLabel: t.r.Name()})
	// Failures are reported by the reconciler and the health decorator; the loop always continues
	_ = t.reconcile(ctx)
	t.ticks.Add(1)
}

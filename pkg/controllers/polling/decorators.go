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
	"fmt"
	"net/http"
	"sync/atomic"
)

type ControllerWithHealthInterface interface {
	ControllerInterface

	Healthy() bool
}

// ControllerWithHealth is a Controller decorator that wraps a polling controller with health information
// on the success or failure of a reconciliation loop
type ControllerWithHealth struct {
	*Controller

	healthy atomic.Bool

	OnHealthy   func(context.Context)
	OnUnhealthy func(context.Context)
}

func NewControllerWithHealth(c *Controller) *ControllerWithHealth {
	h := &ControllerWithHealth{
		Controller: c,
	}
	c.reconcile = h.Reconcile
	return h
}

func (c *ControllerWithHealth) Healthy() bool {
	return c.healthy.Load()
}

// ReadyzCheck fails until a tick has succeeded and whenever the latest tick failed
func (c *ControllerWithHealth) ReadyzCheck(_ *http.Request) error {
	if !c.Healthy() {
		return fmt.Errorf("controller %s is not healthy", c.r.Name())
	}
	return nil
}

func (c *ControllerWithHealth) Reconcile(ctx context.Context) error {
	err := c.Controller.Reconcile(ctx)
	healthy := err == nil // The controller is considered healthy when it successfully reconciles
	if healthy {
		if c.OnHealthy != nil {
			c.OnHealthy(ctx)
		}
		Healthy.Set(1, map[string]string{controllerLabel: c.r.Name()})
	} else {
		if c.OnUnhealthy != nil {
			c.OnUnhealthy(ctx)
		}
		Healthy.Set(0, map[string]string{controllerLabel: c.r.Name()})
	}
	c.healthy.Store(healthy)
	return err
}

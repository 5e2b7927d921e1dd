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

package autoscaling

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go"

	"github.com/autoscaler-playground/autoscaler/pkg/autoscaler"
	"github.com/autoscaler-playground/autoscaler/pkg/metrics"
	"github.com/autoscaler-playground/autoscaler/pkg/providers/replica"
	"github.com/autoscaler-playground/autoscaler/pkg/providers/signal"
	"github.com/autoscaler-playground/autoscaler/pkg/utils/log"
)

// Action is the scaling action a tick took, as recorded in the audit log
type Action string

const (
	ActionScaleUp   Action = "scale-up"
	ActionScaleDown Action = "scale-down"
	ActionNone      Action = "none"
	ActionSkipped   Action = "skipped"
)

const (
	ReasonSignalUnavailable   = "signal-unavailable"
	ReasonReplicasUnavailable = "replicas-unavailable"
)

const (
	DefaultBootstrapAttempts = 5
	DefaultBootstrapDelay    = time.Second
)

// Controller converges the replicas of one service toward the count the scaling policy derives from the latency
// signal. Each Reconcile is one tick and moves the replica count by at most one.
type Controller struct {
	service         string
	config          autoscaler.PolicyConfig
	queryTimeout    time.Duration
	signalProvider  signal.Provider
	replicaProvider replica.Provider

	bootstrapAttempts uint
	bootstrapDelay    time.Duration
}

func NewController(service string, config autoscaler.PolicyConfig, queryTimeout time.Duration, signalProvider signal.Provider, replicaProvider replica.Provider) *Controller {
	return &Controller{
		service:           service,
		config:            config,
		queryTimeout:      queryTimeout,
		signalProvider:    signalProvider,
		replicaProvider:   replicaProvider,
		bootstrapAttempts: DefaultBootstrapAttempts,
		bootstrapDelay:    DefaultBootstrapDelay,
	}
}

// WithBootstrapBackoff sets the number of attempts and the initial delay of the exponential backoff applied to each
// backend call made by Bootstrap
func (c *Controller) WithBootstrapBackoff(attempts uint, delay time.Duration) *Controller {
	c.bootstrapAttempts = attempts
	c.bootstrapDelay = delay
	return c
}

func (c *Controller) Name() string {
	return "autoscaling"
}

// Bootstrap raises the replica count to the configured floor before the first tick. Every backend call is retried
// with backoff; starts run to completion even when ctx is cancelled between them.
func (c *Controller) Bootstrap(ctx context.Context) error {
	ctx = c.withLogger(ctx)
	var current int
	if err := retry.Do(func() (err error) {
		current, err = c.replicaProvider.CurrentCount(ctx)
		return err
	}, c.retryOptions(ctx, "reading replica count")...); err != nil {
		return fmt.Errorf("reading replica count, %w", err)
	}
	if current >= c.config.MinReplicas {
		log.FromContext(ctx).V(1).Info("replica floor satisfied", "current-replicas", current, "min-replicas", c.config.MinReplicas)
		return nil
	}
	log.FromContext(ctx).Info("scaling up to replica floor", "current-replicas", current, "min-replicas", c.config.MinReplicas)
	mutationCtx := context.WithoutCancel(ctx)
	for started := 0; started < c.config.MinReplicas-current; started++ {
		err := retry.Do(func() error {
			return c.replicaProvider.StartOne(mutationCtx)
		}, c.retryOptions(mutationCtx, "starting replica")...)
		c.recordAction(ActionScaleUp, err)
		if err != nil {
			return fmt.Errorf("starting replica %d of %d, %w", started+1, c.config.MinReplicas-current, err)
		}
	}
	log.FromContext(ctx).Info("reached replica floor", "current-replicas", c.config.MinReplicas)
	return nil
}

// Reconcile runs one tick: observe the signal, read the replica count, decide, and issue at most one start or stop.
// Exactly one audit entry with the message "reconciled" is logged per tick.
func (c *Controller) Reconcile(ctx context.Context) error {
	start := time.Now()
	labels := map[string]string{metrics.ServiceLabel: c.service}
	defer func() { ReconcileDuration.Observe(time.Since(start).Seconds(), labels) }()
	ctx = c.withLogger(ctx)

	sig, err := c.observe(ctx)
	if err != nil {
		c.recordSkipped(ReasonSignalUnavailable)
		log.FromContext(ctx).Error(err, "reconciled", "signal-error", err.Error(), "action", string(ActionSkipped), "reason", ReasonSignalUnavailable)
		return fmt.Errorf("observing signal, %w", err)
	}
	SignalValue.Set(sig.Value, labels)

	current, err := c.replicaProvider.CurrentCount(ctx)
	if err != nil {
		c.recordSkipped(ReasonReplicasUnavailable)
		log.FromContext(ctx).Error(err, "reconciled", "signal", sig.Value, "action", string(ActionSkipped), "reason", ReasonReplicasUnavailable)
		return fmt.Errorf("reading replica count, %w", err)
	}
	decision := autoscaler.NewDecision(current, sig.Value, c.config)
	CurrentReplicas.Set(float64(decision.CurrentCount), labels)
	DesiredReplicas.Set(float64(decision.DesiredCount), labels)

	action, err := c.apply(ctx, decision)
	values := []any{
		"signal", sig.Value,
		"current-replicas", decision.CurrentCount,
		"desired-replicas", decision.DesiredCount,
		"action", string(action),
	}
	if err != nil {
		log.FromContext(ctx).Error(err, "reconciled", values...)
		return fmt.Errorf("applying decision %s, %w", decision, err)
	}
	log.FromContext(ctx).Info("reconciled", values...)
	return nil
}

// apply issues the single backend call the decision requires. The call runs on a context that is never cancelled so
// shutdown cannot interrupt a replica mid-start or mid-stop.
func (c *Controller) apply(ctx context.Context, decision autoscaler.Decision) (Action, error) {
	mutationCtx := context.WithoutCancel(ctx)
	var action Action
	var err error
	switch decision.Direction() {
	case autoscaler.DirectionUp:
		action, err = ActionScaleUp, c.replicaProvider.StartOne(mutationCtx)
	case autoscaler.DirectionDown:
		action, err = ActionScaleDown, c.replicaProvider.StopOne(mutationCtx)
	default:
		return ActionNone, nil
	}
	c.recordAction(action, err)
	return action, err
}

func (c *Controller) observe(ctx context.Context) (signal.Signal, error) {
	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()
	return c.signalProvider.Observe(ctx)
}

func (c *Controller) withLogger(ctx context.Context) context.Context {
	return log.IntoContext(ctx, log.FromContext(ctx).WithName(c.Name()).WithValues("service", c.service))
}

func (c *Controller) retryOptions(ctx context.Context, operation string) []retry.Option {
	return []retry.Option{
		retry.Context(ctx),
		retry.Attempts(c.bootstrapAttempts),
		retry.Delay(c.bootstrapDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.FromContext(ctx).Error(err, "bootstrap call failed, retrying", "operation", operation, "attempt", n+1)
		}),
	}
}

func (c *Controller) recordAction(action Action, err error) {
	result := resultSuccess
	if err != nil {
		result = resultError
	}
	ScalingActionsTotal.Inc(map[string]string{
		metrics.ServiceLabel: c.service,
		metrics.ActionLabel:  string(action),
		metrics.ResultLabel:  result,
	})
}

func (c *Controller) recordSkipped(reason string) {
	SkippedTicksTotal.Inc(map[string]string{
		metrics.ServiceLabel: c.service,
		metrics.ReasonLabel:  reason,
	})
}

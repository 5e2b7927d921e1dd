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

package operator

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/autoscaler-playground/autoscaler/pkg/controllers/autoscaling"
	"github.com/autoscaler-playground/autoscaler/pkg/controllers/polling"
	"github.com/autoscaler-playground/autoscaler/pkg/operator/options"
	"github.com/autoscaler-playground/autoscaler/pkg/providers/replica"
	"github.com/autoscaler-playground/autoscaler/pkg/providers/signal"
	"github.com/autoscaler-playground/autoscaler/pkg/utils/log"
)

// Version is the autoscaler version and is set at build time
var Version = "unspecified"

// Operator holds the components of a running autoscaler
type Operator struct {
	Options         *options.Options
	Clock           clock.Clock
	SignalProvider  signal.Provider
	ReplicaProvider replica.Provider
	Controller      *autoscaling.Controller
	Polling         *polling.ControllerWithHealth
	Manager         *Manager
}

// NewOperator reads the process configuration and connects to the metrics source and the replica backend. The
// returned context derives from ctx and carries the logger and options. The process exits when the configuration is
// invalid or a client cannot be constructed.
func NewOperator(ctx context.Context) (context.Context, *Operator) {
	opts := (&options.Options{}).MustParse()
	logger, err := log.NewLogger(opts.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating logger, %s\n", err)
		os.Exit(1)
	}
	ctrllog.SetLogger(logger)
	ctx = log.IntoContext(ctx, logger)
	ctx = options.ToContext(ctx, opts)
	log.FromContext(ctx).WithValues(
		"version", Version,
		"service", opts.TargetService,
		"replica-backend", opts.ReplicaBackend,
		"policy-hash", opts.PolicyConfig().Hash(),
	).Info("starting autoscaler")

	clk := clock.RealClock{}
	queryAPI, err := signal.NewQueryAPI(opts.PrometheusURL)
	if err != nil {
		log.FromContext(ctx).Error(err, "failed creating metrics source")
		os.Exit(1)
	}
	replicaProvider, err := NewReplicaProvider(opts)
	if err != nil {
		log.FromContext(ctx).Error(err, "failed creating replica backend")
		os.Exit(1)
	}
	return ctx, New(ctx, opts, clk, signal.NewDefaultProvider(queryAPI, opts.Query, clk), replicaProvider)
}

// New wires the controllers and servers around the given providers
func New(ctx context.Context, opts *options.Options, clk clock.Clock, signalProvider signal.Provider, replicaProvider replica.Provider) *Operator {
	controller := autoscaling.NewController(opts.TargetService, opts.PolicyConfig(), opts.QueryTimeout, signalProvider, replicaProvider)
	pollingController := polling.NewController(controller, clk, opts.PollInterval).WithHealth()
	pollingController.OnUnhealthy = func(ctx context.Context) {
		log.FromContext(ctx).V(1).Info("tick failed, retrying on the next tick")
	}
	manager := NewManager(opts.MetricsPort, opts.HealthProbePort, opts.EnableProfiling)
	if err := manager.AddHealthzCheck("ping", healthz.Ping); err != nil {
		panic(fmt.Sprintf("Failed to add health probe, %s", err))
	}
	if err := manager.AddReadyzCheck(controller.Name(), pollingController.ReadyzCheck); err != nil {
		panic(fmt.Sprintf("Failed to add ready probe, %s", err))
	}
	return &Operator{
		Options:         opts,
		Clock:           clk,
		SignalProvider:  signalProvider,
		ReplicaProvider: replicaProvider,
		Controller:      controller,
		Polling:         pollingController,
		Manager:         manager,
	}
}

// NewReplicaProvider builds the replica backend selected by the options
func NewReplicaProvider(opts *options.Options) (replica.Provider, error) {
	switch options.ReplicaBackend(opts.ReplicaBackend) {
	case options.DockerBackend:
		dockerClient, err := replica.NewDockerClient(opts.DockerHost)
		if err != nil {
			return nil, err
		}
		return replica.NewDockerProvider(dockerClient, opts.TargetService, opts.DockerNetwork, opts.StopTimeout), nil
	case options.KubernetesBackend:
		kubernetesInterface, err := replica.NewKubernetesClient(opts.Kubeconfig)
		if err != nil {
			return nil, err
		}
		return replica.NewKubernetesProvider(kubernetesInterface, opts.Namespace, opts.TargetService), nil
	default:
		return nil, fmt.Errorf("unsupported replica backend %q", opts.ReplicaBackend)
	}
}

// Start serves metrics and health probes, raises the service to its replica floor and then runs the control loop
// until ctx is done. A failed bootstrap is logged and the loop is entered anyway.
func (o *Operator) Start(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return o.Manager.Start(ctx)
	})
	group.Go(func() error {
		if err := o.Controller.Bootstrap(ctx); err != nil {
			log.FromContext(ctx).Error(err, "bootstrap failed, continuing with the control loop")
		}
		o.Polling.Start(ctx)
		return nil
	})
	return group.Wait()
}

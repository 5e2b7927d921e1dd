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
	opmetrics "github.com/awslabs/operatorpkg/metrics"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/autoscaler-playground/autoscaler/pkg/metrics"
)

const (
	subsystem = "autoscaling"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	SignalValue = opmetrics.NewPrometheusGauge(
		metrics.Registry,
		prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Subsystem: subsystem,
			Name:      "signal",
			Help:      "The latest observed latency signal in seconds. Labeled by service.",
		},
		[]string{metrics.ServiceLabel},
	)
	CurrentReplicas = opmetrics.NewPrometheusGauge(
		metrics.Registry,
		prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Subsystem: subsystem,
			Name:      "current_replicas",
			Help:      "The number of running replicas reported by the replica backend. Labeled by service.",
		},
		[]string{metrics.ServiceLabel},
	)
	DesiredReplicas = opmetrics.NewPrometheusGauge(
		metrics.Registry,
		prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Subsystem: subsystem,
			Name:      "desired_replicas",
			Help:      "The number of replicas decided by the scaling policy. Labeled by service.",
		},
		[]string{metrics.ServiceLabel},
	)
	ScalingActionsTotal = opmetrics.NewPrometheusCounter(
		metrics.Registry,
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: subsystem,
			Name:      "scaling_actions_total",
			Help:      "The number of replica start and stop calls issued. Labeled by service, action and result.",
		},
		[]string{metrics.ServiceLabel, metrics.ActionLabel, metrics.ResultLabel},
	)
	SkippedTicksTotal = opmetrics.NewPrometheusCounter(
		metrics.Registry,
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: subsystem,
			Name:      "skipped_ticks_total",
			Help:      "The number of ticks that made no decision because an input was unavailable. Labeled by service and reason.",
		},
		[]string{metrics.ServiceLabel, metrics.ReasonLabel},
	)
	ReconcileDuration = opmetrics.NewPrometheusHistogram(
		metrics.Registry,
		prometheus.HistogramOpts{
			Namespace: metrics.Namespace,
			Subsystem: subsystem,
			Name:      "reconcile_duration_seconds",
			Help:      "Duration of a single autoscaling tick in seconds. Labeled by service.",
			Buckets:   metrics.DurationBuckets(),
		},
		[]string{metrics.ServiceLabel},
	)
)

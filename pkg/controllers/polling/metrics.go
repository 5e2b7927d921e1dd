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
	opmetrics "github.com/awslabs/operatorpkg/metrics"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/autoscaler-playground/autoscaler/pkg/metrics"
)

const (
	subsystem       = "polling"
	controllerLabel = metrics.ControllerLabel
)

var (
	Healthy = opmetrics.NewPrometheusGauge(
		metrics.Registry,
		prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Subsystem: subsystem,
			Name:      "healthy",
			Help:      "Whether the controller is in a healthy state.",
		},
		[]string{controllerLabel},
	)
	Active = opmetrics.NewPrometheusGauge(
		metrics.Registry,
		prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Subsystem: subsystem,
			Name:      "active",
			Help:      "Whether the controller is active.",
		},
		[]string{controllerLabel},
	)
	TriggerCount = opmetrics.NewPrometheusCounter(
		metrics.Registry,
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: subsystem,
			Name:      "trigger_count",
			Help:      "A counter of the number of times this controller has been triggered.",
		},
		[]string{controllerLabel},
	)
)

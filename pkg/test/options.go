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

package test

import (
	"fmt"
	"time"

	"github.com/imdario/mergo"

	"github.com/autoscaler-playground/autoscaler/pkg/operator/options"
)

// Options returns the options a process started without flags, environment or config file runs with
func Options(overrides ...options.Options) *options.Options {
	opts := options.Options{
		PrometheusURL:    "http://prometheus:9090",
		Query:            options.DefaultQuery,
		QueryTimeout:     5 * time.Second,
		TargetService:    "autoscaler_playground_api",
		ReplicaBackend:   string(options.DockerBackend),
		DockerNetwork:    "playground",
		StopTimeout:      10 * time.Second,
		Namespace:        "default",
		PollInterval:     10 * time.Second,
		ScaleUpLatency:   0.12,
		ScaleDownLatency: 0.06,
		MinReplicas:      1,
		MaxReplicas:      6,
		MetricsPort:      8080,
		HealthProbePort:  8081,
		LogLevel:         "info",
	}
	for _, override := range overrides {
		if err := mergo.Merge(&opts, override, mergo.WithOverride); err != nil {
			panic(fmt.Sprintf("Failed to merge options: %s", err))
		}
	}
	return &opts
}

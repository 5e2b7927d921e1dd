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

	"github.com/autoscaler-playground/autoscaler/pkg/autoscaler"
)

// PolicyConfig returns the default policy bounds with the non-zero fields of overrides applied
func PolicyConfig(overrides ...autoscaler.PolicyConfig) autoscaler.PolicyConfig {
	config := autoscaler.PolicyConfig{
		ScaleUpThreshold:   0.12,
		ScaleDownThreshold: 0.06,
		MinReplicas:        1,
		MaxReplicas:        6,
		PollInterval:       10 * time.Second,
	}
	for _, override := range overrides {
		if err := mergo.Merge(&config, override, mergo.WithOverride); err != nil {
			panic(fmt.Sprintf("Failed to merge policy config: %s", err))
		}
	}
	return config
}

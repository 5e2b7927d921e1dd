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

package autoscaler

import (
	"fmt"
	"math"
	"time"

	"github.com/mitchellh/hashstructure/v2"
	"go.uber.org/multierr"
)

// PolicyConfig bounds the scaling policy. It is loaded once at startup and never mutated.
type PolicyConfig struct {
	ScaleUpThreshold   float64
	ScaleDownThreshold float64
	MinReplicas        int
	MaxReplicas        int
	PollInterval       time.Duration
}

func (c PolicyConfig) Validate() error {
	return multierr.Combine(
		c.validateThresholds(),
		c.validateReplicaBounds(),
		c.validatePollInterval(),
	)
}

func (c PolicyConfig) validateThresholds() error {
	err := multierr.Combine(
		validateThreshold("scale-up-threshold", c.ScaleUpThreshold),
		validateThreshold("scale-down-threshold", c.ScaleDownThreshold),
	)
	if c.ScaleDownThreshold >= c.ScaleUpThreshold {
		err = multierr.Append(err, fmt.Errorf("scale-down-threshold (%v) must be less than scale-up-threshold (%v)", c.ScaleDownThreshold, c.ScaleUpThreshold))
	}
	return err
}

func validateThreshold(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%s must be a finite number", name)
	}
	if v < 0 {
		return fmt.Errorf("%s cannot be negative", name)
	}
	return nil
}

func (c PolicyConfig) validateReplicaBounds() error {
	if c.MinReplicas < 0 {
		return fmt.Errorf("min-replicas cannot be negative")
	}
	if c.MinReplicas > c.MaxReplicas {
		return fmt.Errorf("min-replicas (%d) cannot be greater than max-replicas (%d)", c.MinReplicas, c.MaxReplicas)
	}
	return nil
}

func (c PolicyConfig) validatePollInterval() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll-interval must be positive")
	}
	return nil
}

// Hash returns a stable identifier for the configuration
func (c PolicyConfig) Hash() string {
	hash, err := hashstructure.Hash(c, hashstructure.FormatV2, &hashstructure.HashOptions{
		SlicesAsSets:    true,
		IgnoreZeroValue: true,
		ZeroNil:         true,
	})
	if err != nil {
		return ""
	}
	return fmt.Sprint(hash)
}

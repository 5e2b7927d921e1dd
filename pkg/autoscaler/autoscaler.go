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

import "fmt"

// Direction is the way a Decision moves the replica count
type Direction string

const (
	DirectionNone Direction = "none"
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Decision is the result of evaluating the policy for a single tick
type Decision struct {
	CurrentCount int
	DesiredCount int
}

// NewDecision evaluates the policy for the observed replica count and signal
func NewDecision(currentCount int, signal float64, config PolicyConfig) Decision {
	return Decision{
		CurrentCount: currentCount,
		DesiredCount: Decide(currentCount, signal, config),
	}
}

func (d Decision) Direction() Direction {
	switch {
	case d.DesiredCount > d.CurrentCount:
		return DirectionUp
	case d.DesiredCount < d.CurrentCount:
		return DirectionDown
	default:
		return DirectionNone
	}
}

func (d Decision) String() string {
	return fmt.Sprintf("%d -> %d (%s)", d.CurrentCount, d.DesiredCount, d.Direction())
}

/* Decide returns the desired replica count for the observed signal.

The count moves by at most one replica per evaluation. A signal above the
scale-up threshold adds a replica and a signal below the scale-down threshold
removes one; anything in between (the dead band) keeps the current count. The
result is always bounded by the configured minimum and maximum, so a count that
is already outside of the bounds is pulled back inside regardless of the signal.
*/
func Decide(currentCount int, signal float64, config PolicyConfig) int {
	desired := currentCount
	switch {
	case signal > config.ScaleUpThreshold && currentCount < config.MaxReplicas:
		desired = currentCount + 1
	case signal < config.ScaleDownThreshold && currentCount > config.MinReplicas:
		desired = currentCount - 1
	}
	return applyBoundedLimits(desired, config)
}

func applyBoundedLimits(desiredReplicas int, config PolicyConfig) int {
	if desiredReplicas > config.MaxReplicas {
		return config.MaxReplicas
	}
	if desiredReplicas < config.MinReplicas {
		return config.MinReplicas
	}
	return desiredReplicas
}

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

package signal

import (
	"context"
	"errors"
	"time"
)

// ErrNoSamples is returned when the query matched no series, which is the case for a service that has not served
// any requests in the query window
var ErrNoSamples = errors.New("query returned no samples")

// Signal is a single latency observation in seconds
type Signal struct {
	Value     float64
	Timestamp time.Time
}

// Provider reads the current value of the latency signal. Implementations return an error rather than a
// substituted value whenever the source cannot produce a trustworthy sample.
type Provider interface {
	Observe(context.Context) (Signal, error)
}

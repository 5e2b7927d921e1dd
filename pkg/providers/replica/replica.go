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

package replica

import (
	"context"
	"errors"
)

// ErrNoReplicas is returned by StopOne when there is no running replica to stop
var ErrNoReplicas = errors.New("no running replicas")

// Provider reports and changes the number of running replicas of the target service. Every call reads or changes
// the live state of the backend; nothing is cached between calls.
type Provider interface {
	// CurrentCount returns the number of running replicas
	CurrentCount(context.Context) (int, error)
	// StartOne starts exactly one new replica
	StartOne(context.Context) error
	// StopOne stops exactly one running replica
	StopOne(context.Context) error
}

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

package fake

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/autoscaler-playground/autoscaler/pkg/providers/signal"
)

// SignalProvider returns a settable latency value
type SignalProvider struct {
	NextError AtomicError
	// Hang blocks Observe until its context is done
	Hang atomic.Bool

	mu    sync.Mutex
	value float64
	calls atomic.Int32
}

func NewSignalProvider() *SignalProvider {
	return &SignalProvider{}
}

func (s *SignalProvider) Set(value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = value
}

func (s *SignalProvider) Calls() int {
	return int(s.calls.Load())
}

func (s *SignalProvider) Reset() {
	s.NextError.Reset()
	s.Hang.Store(false)
	s.calls.Store(0)
	s.Set(0)
}

func (s *SignalProvider) Observe(ctx context.Context) (signal.Signal, error) {
	s.calls.Add(1)
	if err := s.NextError.Get(); err != nil {
		return signal.Signal{}, err
	}
	if s.Hang.Load() {
		<-ctx.Done()
		return signal.Signal{}, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return signal.Signal{Value: s.value, Timestamp: time.Now()}, nil
}

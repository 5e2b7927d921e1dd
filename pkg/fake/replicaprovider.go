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

	"github.com/google/uuid"

	"github.com/autoscaler-playground/autoscaler/pkg/providers/replica"
)

// ReplicaBehavior must be reset between tests otherwise tests will
// pollute each other.
type ReplicaBehavior struct {
	CurrentCountError AtomicError
	StartOneError     AtomicError
	StopOneError      AtomicError

	// BeforeMutation, when set, runs with the caller's context before StartOne or StopOne changes the replica set
	BeforeMutation func(context.Context)
}

// ReplicaProvider is an in-memory replica set. Replicas are stopped in the order they were started.
type ReplicaProvider struct {
	ReplicaBehavior

	mu       sync.Mutex
	replicas []string

	currentCountCalls atomic.Int32
	startOneCalls     atomic.Int32
	stopOneCalls      atomic.Int32
}

func NewReplicaProvider() *ReplicaProvider {
	return &ReplicaProvider{}
}

// Reset must be called between tests otherwise tests will pollute
// each other.
func (r *ReplicaProvider) Reset() {
	r.CurrentCountError.Reset()
	r.StartOneError.Reset()
	r.StopOneError.Reset()
	r.BeforeMutation = nil
	r.currentCountCalls.Store(0)
	r.startOneCalls.Store(0)
	r.stopOneCalls.Store(0)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.replicas = nil
}

// SetReplicas replaces the replica set with count fresh replicas without counting as calls
func (r *ReplicaProvider) SetReplicas(count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replicas = nil
	for range count {
		r.replicas = append(r.replicas, uuid.New().String())
	}
}

// Replicas returns the IDs of the running replicas in start order
func (r *ReplicaProvider) Replicas() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.replicas...)
}

func (r *ReplicaProvider) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.replicas)
}

func (r *ReplicaProvider) CurrentCountCalls() int { return int(r.currentCountCalls.Load()) }
func (r *ReplicaProvider) StartOneCalls() int     { return int(r.startOneCalls.Load()) }
func (r *ReplicaProvider) StopOneCalls() int      { return int(r.stopOneCalls.Load()) }

// MutationCalls is the number of StartOne and StopOne calls
func (r *ReplicaProvider) MutationCalls() int { return r.StartOneCalls() + r.StopOneCalls() }

func (r *ReplicaProvider) CurrentCount(_ context.Context) (int, error) {
	r.currentCountCalls.Add(1)
	if err := r.CurrentCountError.Get(); err != nil {
		return 0, err
	}
	return r.Count(), nil
}

func (r *ReplicaProvider) StartOne(ctx context.Context) error {
	r.startOneCalls.Add(1)
	if r.BeforeMutation != nil {
		r.BeforeMutation(ctx)
	}
	if err := r.StartOneError.Get(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replicas = append(r.replicas, uuid.New().String())
	return nil
}

func (r *ReplicaProvider) StopOne(ctx context.Context) error {
	r.stopOneCalls.Add(1)
	if r.BeforeMutation != nil {
		r.BeforeMutation(ctx)
	}
	if err := r.StopOneError.Get(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.replicas) == 0 {
		return replica.ErrNoReplicas
	}
	r.replicas = r.replicas[1:]
	return nil
}

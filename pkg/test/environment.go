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
	"time"

	k8sfake "k8s.io/client-go/kubernetes/fake"
	clock "k8s.io/utils/clock/testing"

	"github.com/autoscaler-playground/autoscaler/pkg/fake"
)

// Start is the time the fake clock is reset to
var Start = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

type Environment struct {
	// Mock
	Clock *clock.FakeClock

	// API
	PrometheusAPI       *fake.PrometheusAPI
	DockerAPI           *fake.DockerAPI
	KubernetesInterface *k8sfake.Clientset

	// Providers
	SignalProvider  *fake.SignalProvider
	ReplicaProvider *fake.ReplicaProvider
}

func NewEnvironment() *Environment {
	return &Environment{
		Clock: clock.NewFakeClock(Start),

		PrometheusAPI:       fake.NewPrometheusAPI(),
		DockerAPI:           fake.NewDockerAPI(),
		KubernetesInterface: k8sfake.NewClientset(),

		SignalProvider:  fake.NewSignalProvider(),
		ReplicaProvider: fake.NewReplicaProvider(),
	}
}

// Reset must be called between tests otherwise tests will pollute
// each other.
func (env *Environment) Reset() {
	env.Clock.SetTime(Start)
	env.PrometheusAPI.Reset()
	env.DockerAPI.Reset()
	env.KubernetesInterface = k8sfake.NewClientset()
	env.SignalProvider.Reset()
	env.ReplicaProvider.Reset()
}

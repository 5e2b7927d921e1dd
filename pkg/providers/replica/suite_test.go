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

package replica_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/samber/lo"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	k8stesting "k8s.io/client-go/testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/autoscaler-playground/autoscaler/pkg/fake"
	"github.com/autoscaler-playground/autoscaler/pkg/providers/replica"
	"github.com/autoscaler-playground/autoscaler/pkg/test"
	. "github.com/autoscaler-playground/autoscaler/pkg/utils/testing"
)

const image = "autoscaler_playground_api"

var ctx context.Context
var env *test.Environment

func TestReplica(t *testing.T) {
	ctx = TestContextWithLogger(t)
	RegisterFailHandler(Fail)
	RunSpecs(t, "Replica")
}

var _ = BeforeSuite(func() {
	env = test.NewEnvironment()
})

var _ = BeforeEach(func() {
	env.Reset()
})

var _ = Describe("DockerProvider", func() {
	var provider *replica.DockerProvider

	BeforeEach(func() {
		provider = replica.NewDockerProvider(env.DockerAPI, image, "playground", 10*time.Second)
	})

	Context("CurrentCount", func() {
		It("should count running containers of the image", func() {
			env.DockerAPI.AddRunningContainer(image, nil)
			env.DockerAPI.AddRunningContainer(image, nil)
			env.DockerAPI.AddRunningContainer("other_service", nil)
			Expect(provider.CurrentCount(ctx)).To(Equal(2))
		})
		It("should filter by ancestor and running status", func() {
			_, err := provider.CurrentCount(ctx)
			Expect(err).ToNot(HaveOccurred())
			input := env.DockerAPI.ContainerListBehavior.CalledWithInput.At(0)
			Expect(input.Filters).To(HaveKeyWithValue("ancestor", ConsistOf(image)))
			Expect(input.Filters).To(HaveKeyWithValue("status", ConsistOf("running")))
		})
		It("should not count stopped containers", func() {
			id := env.DockerAPI.AddRunningContainer(image, nil)
			env.DockerAPI.AddRunningContainer(image, nil)
			Expect(env.DockerAPI.ContainerStop(ctx, id, container.StopOptions{})).To(Succeed())
			Expect(provider.CurrentCount(ctx)).To(Equal(1))
		})
		It("should return zero when nothing is running", func() {
			Expect(provider.CurrentCount(ctx)).To(Equal(0))
		})
		It("should return listing errors", func() {
			env.DockerAPI.ContainerListBehavior.Error.Set(fmt.Errorf("daemon unavailable"))
			_, err := provider.CurrentCount(ctx)
			Expect(err).To(MatchError(ContainSubstring("listing containers")))
		})
	})

	Context("StartOne", func() {
		It("should create and start exactly one container", func() {
			Expect(provider.StartOne(ctx)).To(Succeed())
			Expect(env.DockerAPI.ContainerCreateBehavior.Calls()).To(Equal(1))
			Expect(env.DockerAPI.ContainerStartBehavior.Calls()).To(Equal(1))
			Expect(provider.CurrentCount(ctx)).To(Equal(1))
		})
		It("should create the container from the image on the configured network", func() {
			Expect(provider.StartOne(ctx)).To(Succeed())
			input := env.DockerAPI.ContainerCreateBehavior.CalledWithInput.At(0)
			Expect(input.Config.Image).To(Equal(image))
			Expect(input.Config.Labels).To(HaveKeyWithValue(replica.ManagedLabel, "true"))
			Expect(input.Config.Labels).To(HaveKeyWithValue(replica.ServiceLabel, image))
			Expect(string(input.HostConfig.NetworkMode)).To(Equal("playground"))
			Expect(input.NetworkingConfig.EndpointsConfig).To(HaveKey("playground"))
			Expect(input.Name).To(HavePrefix(image + "-"))
		})
		It("should not attach a network when none is configured", func() {
			provider = replica.NewDockerProvider(env.DockerAPI, image, "", 10*time.Second)
			Expect(provider.StartOne(ctx)).To(Succeed())
			input := env.DockerAPI.ContainerCreateBehavior.CalledWithInput.At(0)
			Expect(input.NetworkingConfig).To(BeNil())
			Expect(string(input.HostConfig.NetworkMode)).To(BeEmpty())
		})
		It("should derive a valid container name from a qualified image reference", func() {
			provider = replica.NewDockerProvider(env.DockerAPI, "registry.local:5000/team/api:v1.2", "", 10*time.Second)
			Expect(provider.StartOne(ctx)).To(Succeed())
			name := env.DockerAPI.ContainerCreateBehavior.CalledWithInput.At(0).Name
			Expect(name).To(HavePrefix("api-"))
			Expect(name).To(MatchRegexp(`^[a-zA-Z0-9][a-zA-Z0-9_.-]+$`))
		})
		It("should give every replica a unique name", func() {
			for range 5 {
				Expect(provider.StartOne(ctx)).To(Succeed())
			}
			names := lo.Map(env.DockerAPI.ContainerCreateBehavior.CalledWithInput.Values(), func(i fake.ContainerCreateInput, _ int) string { return i.Name })
			Expect(lo.Uniq(names)).To(HaveLen(5))
		})
		It("should return create errors without starting a container", func() {
			env.DockerAPI.ContainerCreateBehavior.Error.Set(fmt.Errorf("image not found"))
			Expect(provider.StartOne(ctx)).To(MatchError(ContainSubstring("creating container")))
			Expect(env.DockerAPI.ContainerStartBehavior.Calls()).To(Equal(0))
		})
		It("should remove the created container when it fails to start", func() {
			env.DockerAPI.ContainerStartBehavior.Error.Set(fmt.Errorf("port is already allocated"))
			Expect(provider.StartOne(ctx)).To(MatchError(ContainSubstring("starting container")))
			Expect(env.DockerAPI.ContainerRemoveBehavior.SuccessfulCalls()).To(Equal(1))
			Expect(env.DockerAPI.ContainerRemoveBehavior.CalledWithInput.At(0).Force).To(BeTrue())
			Expect(env.DockerAPI.Containers()).To(BeEmpty())
		})
	})

	Context("StopOne", func() {
		It("should stop and remove the first listed container", func() {
			first := env.DockerAPI.AddRunningContainer(image, nil)
			second := env.DockerAPI.AddRunningContainer(image, nil)
			Expect(provider.StopOne(ctx)).To(Succeed())
			Expect(env.DockerAPI.ContainerStopBehavior.CalledWithInput.At(0).ID).To(Equal(first))
			Expect(env.DockerAPI.ContainerRemoveBehavior.CalledWithInput.At(0).ID).To(Equal(first))
			Expect(lo.Map(env.DockerAPI.Containers(), func(c container.Summary, _ int) string { return c.ID })).To(ConsistOf(second))
		})
		It("should only stop containers of the image", func() {
			env.DockerAPI.AddRunningContainer("other_service", nil)
			mine := env.DockerAPI.AddRunningContainer(image, nil)
			Expect(provider.StopOne(ctx)).To(Succeed())
			Expect(env.DockerAPI.ContainerStopBehavior.CalledWithInput.At(0).ID).To(Equal(mine))
		})
		It("should stop with the configured grace period", func() {
			env.DockerAPI.AddRunningContainer(image, nil)
			Expect(provider.StopOne(ctx)).To(Succeed())
			Expect(env.DockerAPI.ContainerStopBehavior.CalledWithInput.At(0).Timeout).To(Equal(lo.ToPtr(10)))
		})
		It("should round a sub-second grace period up to a whole second", func() {
			provider = replica.NewDockerProvider(env.DockerAPI, image, "playground", 500*time.Millisecond)
			env.DockerAPI.AddRunningContainer(image, nil)
			Expect(provider.StopOne(ctx)).To(Succeed())
			Expect(env.DockerAPI.ContainerStopBehavior.CalledWithInput.At(0).Timeout).To(Equal(lo.ToPtr(1)))
		})
		It("should send a zero grace period unchanged", func() {
			provider = replica.NewDockerProvider(env.DockerAPI, image, "playground", 0)
			env.DockerAPI.AddRunningContainer(image, nil)
			Expect(provider.StopOne(ctx)).To(Succeed())
			Expect(env.DockerAPI.ContainerStopBehavior.CalledWithInput.At(0).Timeout).To(Equal(lo.ToPtr(0)))
		})
		It("should fail when no replica is running", func() {
			Expect(provider.StopOne(ctx)).To(MatchError(replica.ErrNoReplicas))
			Expect(env.DockerAPI.ContainerStopBehavior.Calls()).To(Equal(0))
		})
		It("should not remove a container that failed to stop", func() {
			env.DockerAPI.AddRunningContainer(image, nil)
			env.DockerAPI.ContainerStopBehavior.Error.Set(fmt.Errorf("timeout"))
			Expect(provider.StopOne(ctx)).To(MatchError(ContainSubstring("stopping container")))
			Expect(env.DockerAPI.ContainerRemoveBehavior.Calls()).To(Equal(0))
			Expect(provider.CurrentCount(ctx)).To(Equal(1))
		})
	})
})

var _ = Describe("KubernetesProvider", func() {
	var provider *replica.KubernetesProvider
	var name string

	BeforeEach(func() {
		deployment := test.Deployment(test.DeploymentOptions{Replicas: lo.ToPtr[int32](2)})
		name = deployment.Name
		_, err := env.KubernetesInterface.AppsV1().Deployments(deployment.Namespace).Create(ctx, deployment, metav1.CreateOptions{})
		Expect(err).ToNot(HaveOccurred())
		provider = replica.NewKubernetesProvider(env.KubernetesInterface, deployment.Namespace, deployment.Name)
	})

	replicas := func() int32 {
		GinkgoHelper()
		deployment, err := env.KubernetesInterface.AppsV1().Deployments("default").Get(ctx, name, metav1.GetOptions{})
		Expect(err).ToNot(HaveOccurred())
		return lo.FromPtr(deployment.Spec.Replicas)
	}

	It("should report the desired replicas of the deployment", func() {
		Expect(provider.CurrentCount(ctx)).To(Equal(2))
	})
	It("should count requested replicas that are not ready yet", func() {
		deployment, err := env.KubernetesInterface.AppsV1().Deployments("default").Get(ctx, name, metav1.GetOptions{})
		Expect(err).ToNot(HaveOccurred())
		deployment.Status.Replicas = 2
		deployment.Status.ReadyReplicas = 0
		deployment.Status.AvailableReplicas = 0
		_, err = env.KubernetesInterface.AppsV1().Deployments("default").UpdateStatus(ctx, deployment, metav1.UpdateOptions{})
		Expect(err).ToNot(HaveOccurred())
		Expect(provider.CurrentCount(ctx)).To(Equal(2))
	})
	It("should default an unset replica count to one", func() {
		deployment := test.Deployment()
		_, err := env.KubernetesInterface.AppsV1().Deployments(deployment.Namespace).Create(ctx, deployment, metav1.CreateOptions{})
		Expect(err).ToNot(HaveOccurred())
		Expect(replica.NewKubernetesProvider(env.KubernetesInterface, deployment.Namespace, deployment.Name).CurrentCount(ctx)).To(Equal(1))
	})
	It("should add one replica", func() {
		Expect(provider.StartOne(ctx)).To(Succeed())
		Expect(replicas()).To(BeEquivalentTo(3))
	})
	It("should remove one replica", func() {
		Expect(provider.StopOne(ctx)).To(Succeed())
		Expect(replicas()).To(BeEquivalentTo(1))
	})
	It("should fail to remove a replica from an empty deployment", func() {
		Expect(provider.StopOne(ctx)).To(Succeed())
		Expect(provider.StopOne(ctx)).To(Succeed())
		Expect(provider.StopOne(ctx)).To(MatchError(replica.ErrNoReplicas))
		Expect(replicas()).To(BeEquivalentTo(0))
	})
	It("should fail when the deployment does not exist", func() {
		_, err := replica.NewKubernetesProvider(env.KubernetesInterface, "default", "missing").CurrentCount(ctx)
		Expect(err).To(MatchError(ContainSubstring("getting deployment")))
	})
	It("should retry updates that conflict", func() {
		conflicts := 0
		env.KubernetesInterface.PrependReactor("update", "deployments", func(action k8stesting.Action) (bool, runtime.Object, error) {
			if conflicts < 2 {
				conflicts++
				return true, nil, newConflict(name)
			}
			return false, nil, nil
		})
		Expect(provider.StartOne(ctx)).To(Succeed())
		Expect(conflicts).To(Equal(2))
		Expect(replicas()).To(BeEquivalentTo(3))
	})
	It("should only touch the named deployment", func() {
		other := test.Deployment(test.DeploymentOptions{Replicas: lo.ToPtr[int32](4)})
		_, err := env.KubernetesInterface.AppsV1().Deployments(other.Namespace).Create(ctx, other, metav1.CreateOptions{})
		Expect(err).ToNot(HaveOccurred())
		Expect(provider.StartOne(ctx)).To(Succeed())
		updated, err := env.KubernetesInterface.AppsV1().Deployments(other.Namespace).Get(ctx, other.Name, metav1.GetOptions{})
		Expect(err).ToNot(HaveOccurred())
		Expect(lo.FromPtr(updated.Spec.Replicas)).To(BeEquivalentTo(4))
	})
})

func newConflict(name string) error {
	return apierrors.NewConflict(schema.GroupResource{Group: "apps", Resource: "deployments"}, name, fmt.Errorf("the object has been modified"))
}

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
	"fmt"

	"github.com/awslabs/operatorpkg/serrors"
	"github.com/samber/lo"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/retry"

	"github.com/autoscaler-playground/autoscaler/pkg/utils/log"
)

// KubernetesProvider scales the replicas of a Deployment. The replica removed on scale down is chosen by the
// ReplicaSet controller. Counts are the Deployment's requested replicas rather than its ready pods, so replicas that
// are still starting count toward the maximum and a slow rollout cannot make the autoscaler overshoot.
type KubernetesProvider struct {
	kubernetesInterface kubernetes.Interface
	namespace           string
	name                string
}

func NewKubernetesProvider(kubernetesInterface kubernetes.Interface, namespace, name string) *KubernetesProvider {
	return &KubernetesProvider{
		kubernetesInterface: kubernetesInterface,
		namespace:           namespace,
		name:                name,
	}
}

// NewKubernetesClient builds a clientset from kubeconfig, or from the in-cluster configuration when kubeconfig is
// empty
func NewKubernetesClient(kubeconfig string) (kubernetes.Interface, error) {
	var config *rest.Config
	var err error
	if kubeconfig == "" {
		config, err = rest.InClusterConfig()
	} else {
		config, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	if err != nil {
		return nil, fmt.Errorf("loading kubernetes config, %w", err)
	}
	return kubernetes.NewForConfig(config)
}

// CurrentCount returns spec.replicas of the Deployment, which the API server defaults to 1 when unset. Pending pods
// are included.
func (p *KubernetesProvider) CurrentCount(ctx context.Context) (int, error) {
	deployment, err := p.kubernetesInterface.AppsV1().Deployments(p.namespace).Get(ctx, p.name, metav1.GetOptions{})
	if err != nil {
		return 0, serrors.Wrap(fmt.Errorf("getting deployment, %w", err), "namespace", p.namespace, "deployment", p.name)
	}
	return int(lo.FromPtrOr(deployment.Spec.Replicas, 1)), nil
}

func (p *KubernetesProvider) StartOne(ctx context.Context) error {
	return p.scale(ctx, 1)
}

func (p *KubernetesProvider) StopOne(ctx context.Context) error {
	return p.scale(ctx, -1)
}

func (p *KubernetesProvider) scale(ctx context.Context, delta int32) error {
	var from, to int32
	if err := retry.RetryOnConflict(retry.DefaultRetry, func() error {
		deployment, err := p.kubernetesInterface.AppsV1().Deployments(p.namespace).Get(ctx, p.name, metav1.GetOptions{})
		if err != nil {
			return err
		}
		from = lo.FromPtrOr(deployment.Spec.Replicas, 1)
		to = from + delta
		if to < 0 {
			return ErrNoReplicas
		}
		deployment.Spec.Replicas = lo.ToPtr(to)
		_, err = p.kubernetesInterface.AppsV1().Deployments(p.namespace).Update(ctx, deployment, metav1.UpdateOptions{})
		return err
	}); err != nil {
		if errors.Is(err, ErrNoReplicas) {
			return err
		}
		return serrors.Wrap(fmt.Errorf("scaling deployment, %w", err), "namespace", p.namespace, "deployment", p.name)
	}
	log.FromContext(ctx).WithValues("deployment", p.name, "namespace", p.namespace, "from", from, "to", to).Info("scaled deployment")
	return nil
}

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
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/awslabs/operatorpkg/serrors"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/namesgenerator"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/samber/lo"

	"github.com/autoscaler-playground/autoscaler/pkg/utils/log"
)

const (
	// ManagedLabel marks containers started by the autoscaler
	ManagedLabel = "autoscaler.playground/managed"
	// ServiceLabel records the service a started container belongs to
	ServiceLabel = "autoscaler.playground/service"
)

var invalidNameCharacters = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// DockerAPI is the subset of the docker engine API used to manage replicas
type DockerAPI interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// DockerProvider runs each replica as a container started from the target service image. Every running container
// whose ancestor is the image counts as a replica, including containers the autoscaler did not start.
type DockerProvider struct {
	api         DockerAPI
	image       string
	network     string
	stopTimeout time.Duration
}

func NewDockerProvider(api DockerAPI, image, network string, stopTimeout time.Duration) *DockerProvider {
	return &DockerProvider{
		api:         api,
		image:       image,
		network:     network,
		stopTimeout: stopTimeout,
	}
}

// NewDockerClient connects to the docker daemon at host, or the daemon described by the client environment when host
// is empty
func NewDockerClient(host string) (*client.Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	c, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating docker client, %w", err)
	}
	return c, nil
}

func (p *DockerProvider) CurrentCount(ctx context.Context) (int, error) {
	containers, err := p.list(ctx)
	if err != nil {
		return 0, err
	}
	return len(containers), nil
}

func (p *DockerProvider) StartOne(ctx context.Context) error {
	name := p.containerName()
	var networkingConfig *network.NetworkingConfig
	hostConfig := &container.HostConfig{}
	if p.network != "" {
		hostConfig.NetworkMode = container.NetworkMode(p.network)
		networkingConfig = &network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{p.network: {}},
		}
	}
	resp, err := p.api.ContainerCreate(ctx, &container.Config{
		Image: p.image,
		Labels: map[string]string{
			ManagedLabel: "true",
			ServiceLabel: p.image,
		},
	}, hostConfig, networkingConfig, nil, name)
	if err != nil {
		return serrors.Wrap(fmt.Errorf("creating container, %w", err), "image", p.image, "name", name)
	}
	if err := p.api.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		// A created container that never started is not a replica but still holds its name
		if rmErr := p.api.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true}); rmErr != nil {
			log.FromContext(ctx).Error(rmErr, "failed removing container after failed start", "container-id", resp.ID)
		}
		return serrors.Wrap(fmt.Errorf("starting container, %w", err), "container-id", resp.ID)
	}
	log.FromContext(ctx).WithValues("container-id", shortID(resp.ID), "name", name).Info("started replica")
	return nil
}

// StopOne stops and removes the first running replica in the order the daemon lists them
func (p *DockerProvider) StopOne(ctx context.Context) error {
	containers, err := p.list(ctx)
	if err != nil {
		return err
	}
	if len(containers) == 0 {
		return ErrNoReplicas
	}
	target := containers[0]
	if err := p.api.ContainerStop(ctx, target.ID, container.StopOptions{Timeout: lo.ToPtr(stopTimeoutSeconds(p.stopTimeout))}); err != nil {
		return serrors.Wrap(fmt.Errorf("stopping container, %w", err), "container-id", target.ID)
	}
	if err := p.api.ContainerRemove(ctx, target.ID, container.RemoveOptions{}); err != nil {
		return serrors.Wrap(fmt.Errorf("removing container, %w", err), "container-id", target.ID)
	}
	log.FromContext(ctx).WithValues("container-id", shortID(target.ID), "name", containerName(target)).Info("stopped replica")
	return nil
}

func (p *DockerProvider) list(ctx context.Context) ([]container.Summary, error) {
	containers, err := p.api.ContainerList(ctx, container.ListOptions{
		Filters: filters.NewArgs(
			filters.Arg("ancestor", p.image),
			filters.Arg("status", "running"),
		),
	})
	if err != nil {
		return nil, serrors.Wrap(fmt.Errorf("listing containers, %w", err), "image", p.image)
	}
	return containers, nil
}

// containerName derives a unique docker container name from the image, e.g. "autoscaler_playground_api-quirky_hopper"
func (p *DockerProvider) containerName() string {
	repository, _, _ := strings.Cut(p.image[strings.LastIndex(p.image, "/")+1:], ":")
	prefix := strings.Trim(invalidNameCharacters.ReplaceAllString(repository, "-"), "-_.")
	if prefix == "" {
		prefix = "replica"
	}
	return fmt.Sprintf("%s-%s", prefix, namesgenerator.GetRandomName(0))
}

func containerName(c container.Summary) string {
	if len(c.Names) == 0 {
		return ""
	}
	return strings.TrimPrefix(c.Names[0], "/")
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// stopTimeoutSeconds rounds the grace period up to whole seconds, so a sub-second grace period is not sent as an
// immediate kill
func stopTimeoutSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}

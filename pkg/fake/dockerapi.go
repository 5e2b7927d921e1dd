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
	"fmt"
	"strings"
	"sync"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/google/uuid"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/samber/lo"
)

const (
	ContainerStateCreated = "created"
	ContainerStateRunning = "running"
	ContainerStateExited  = "exited"
)

type ContainerListInput struct {
	All     bool
	Filters map[string][]string
}

type ContainerCreateInput struct {
	Config           *container.Config
	HostConfig       *container.HostConfig
	NetworkingConfig *network.NetworkingConfig
	Name             string
}

type ContainerInput struct {
	ID      string
	Timeout *int
	Force   bool
}

// DockerBehavior must be reset between tests otherwise tests will
// pollute each other.
type DockerBehavior struct {
	ContainerListBehavior   MockedFunction[ContainerListInput, []container.Summary]
	ContainerCreateBehavior MockedFunction[ContainerCreateInput, container.CreateResponse]
	ContainerStartBehavior  MockedFunction[ContainerInput, struct{}]
	ContainerStopBehavior   MockedFunction[ContainerInput, struct{}]
	ContainerRemoveBehavior MockedFunction[ContainerInput, struct{}]
}

// DockerAPI is an in-memory docker daemon. Containers are listed in the order they were created.
type DockerAPI struct {
	DockerBehavior

	mu         sync.Mutex
	containers []container.Summary
}

func NewDockerAPI() *DockerAPI {
	return &DockerAPI{}
}

// Reset must be called between tests otherwise tests will pollute
// each other.
func (d *DockerAPI) Reset() {
	d.ContainerListBehavior.Reset()
	d.ContainerCreateBehavior.Reset()
	d.ContainerStartBehavior.Reset()
	d.ContainerStopBehavior.Reset()
	d.ContainerRemoveBehavior.Reset()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.containers = nil
}

// AddRunningContainer seeds a running container from image and returns its ID
func (d *DockerAPI) AddRunningContainer(image string, labels map[string]string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := d.newContainer(image, fmt.Sprintf("%s-%d", image, len(d.containers)), labels)
	c.State = ContainerStateRunning
	d.containers = append(d.containers, c)
	return c.ID
}

// Containers returns every container the daemon knows about, in creation order
func (d *DockerAPI) Containers() []container.Summary {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]container.Summary{}, d.containers...)
}

func (d *DockerAPI) ContainerList(_ context.Context, options container.ListOptions) ([]container.Summary, error) {
	input := &ContainerListInput{All: options.All, Filters: map[string][]string{}}
	for _, key := range options.Filters.Keys() {
		input.Filters[key] = options.Filters.Get(key)
	}
	out, err := d.ContainerListBehavior.Invoke(input, func(*ContainerListInput) (*[]container.Summary, error) {
		d.mu.Lock()
		defer d.mu.Unlock()
		return lo.ToPtr(lo.Filter(d.containers, func(c container.Summary, _ int) bool {
			return (options.All || c.State == ContainerStateRunning) && matches(options.Filters, c)
		})), nil
	})
	if err != nil {
		return nil, err
	}
	return *out, nil
}

func (d *DockerAPI) ContainerCreate(_ context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, _ *ocispec.Platform, containerName string) (container.CreateResponse, error) {
	out, err := d.ContainerCreateBehavior.Invoke(&ContainerCreateInput{
		Config:           config,
		HostConfig:       hostConfig,
		NetworkingConfig: networkingConfig,
		Name:             containerName,
	}, func(input *ContainerCreateInput) (*container.CreateResponse, error) {
		d.mu.Lock()
		defer d.mu.Unlock()
		if lo.ContainsBy(d.containers, func(c container.Summary) bool { return lo.Contains(c.Names, "/"+input.Name) }) {
			return nil, fmt.Errorf("conflict, container name %q is already in use", input.Name)
		}
		c := d.newContainer(config.Image, input.Name, config.Labels)
		d.containers = append(d.containers, c)
		return &container.CreateResponse{ID: c.ID}, nil
	})
	if err != nil {
		return container.CreateResponse{}, err
	}
	return *out, nil
}

func (d *DockerAPI) ContainerStart(_ context.Context, containerID string, _ container.StartOptions) error {
	_, err := d.ContainerStartBehavior.Invoke(&ContainerInput{ID: containerID}, func(input *ContainerInput) (*struct{}, error) {
		return &struct{}{}, d.setRunning(input.ID, true)
	})
	return err
}

func (d *DockerAPI) ContainerStop(_ context.Context, containerID string, options container.StopOptions) error {
	_, err := d.ContainerStopBehavior.Invoke(&ContainerInput{ID: containerID, Timeout: options.Timeout}, func(input *ContainerInput) (*struct{}, error) {
		return &struct{}{}, d.setRunning(input.ID, false)
	})
	return err
}

func (d *DockerAPI) ContainerRemove(_ context.Context, containerID string, options container.RemoveOptions) error {
	_, err := d.ContainerRemoveBehavior.Invoke(&ContainerInput{ID: containerID, Force: options.Force}, func(input *ContainerInput) (*struct{}, error) {
		d.mu.Lock()
		defer d.mu.Unlock()
		_, index, ok := lo.FindIndexOf(d.containers, func(c container.Summary) bool { return c.ID == input.ID })
		if !ok {
			return nil, fmt.Errorf("no such container: %s", input.ID)
		}
		if d.containers[index].State == ContainerStateRunning && !input.Force {
			return nil, fmt.Errorf("cannot remove container %s, container is running", input.ID)
		}
		d.containers = append(d.containers[:index], d.containers[index+1:]...)
		return &struct{}{}, nil
	})
	return err
}

func (d *DockerAPI) setRunning(id string, running bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.containers {
		if d.containers[i].ID == id {
			d.containers[i].State = ContainerStateExited
			if running {
				d.containers[i].State = ContainerStateRunning
			}
			return nil
		}
	}
	return fmt.Errorf("no such container: %s", id)
}

func (d *DockerAPI) newContainer(image, name string, labels map[string]string) container.Summary {
	return container.Summary{
		ID:     strings.ReplaceAll(uuid.New().String(), "-", ""),
		Names:  []string{"/" + name},
		Image:  image,
		Labels: lo.Assign(labels),
		State:  ContainerStateCreated,
	}
}

// matches supports the subset of list filters the replica backend uses
func matches(args filters.Args, c container.Summary) bool {
	if args.Contains("ancestor") && !lo.Contains(args.Get("ancestor"), c.Image) {
		return false
	}
	if args.Contains("status") && !lo.Contains(args.Get("status"), string(c.State)) {
		return false
	}
	for _, label := range args.Get("label") {
		key, value, hasValue := strings.Cut(label, "=")
		actual, ok := c.Labels[key]
		if !ok || (hasValue && actual != value) {
			return false
		}
	}
	return true
}

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

package options

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/awslabs/operatorpkg/serrors"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
)

var validReplicaBackends = []ReplicaBackend{DockerBackend, KubernetesBackend}

func (o *Options) Validate() error {
	return multierr.Combine(
		o.validateEndpoint(),
		o.validateRequiredFields(),
		o.validateReplicaBackend(),
		o.validateTimeouts(),
		o.validatePorts(),
		o.validateLogLevel(),
		o.PolicyConfig().Validate(),
	)
}

func (o *Options) validateEndpoint() error {
	endpoint, err := url.Parse(o.PrometheusURL)
	// url.Parse() will accept a lot of input without error; make
	// sure it's a real URL
	if err != nil || !endpoint.IsAbs() || endpoint.Hostname() == "" {
		return serrors.Wrap(fmt.Errorf("prometheus URL is not valid"), "prometheus-url", o.PrometheusURL)
	}
	return nil
}

func (o *Options) validateRequiredFields() (err error) {
	if o.TargetService == "" {
		err = multierr.Append(err, fmt.Errorf("missing field, target-service"))
	}
	if strings.TrimSpace(o.Query) == "" {
		err = multierr.Append(err, fmt.Errorf("missing field, query"))
	}
	if ReplicaBackend(o.ReplicaBackend) == KubernetesBackend && o.Namespace == "" {
		err = multierr.Append(err, fmt.Errorf("missing field, namespace"))
	}
	return err
}

func (o *Options) validateReplicaBackend() error {
	if lo.Contains(validReplicaBackends, ReplicaBackend(o.ReplicaBackend)) {
		return nil
	}
	return fmt.Errorf(
		"invalid replica backend '%s', valid backends are: [%s]",
		o.ReplicaBackend,
		strings.Join(lo.Map(validReplicaBackends, func(b ReplicaBackend, _ int) string { return string(b) }), ", "),
	)
}

func (o *Options) validateTimeouts() (err error) {
	if o.QueryTimeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("query-timeout must be positive"))
	}
	if o.StopTimeout < 0 {
		err = multierr.Append(err, fmt.Errorf("stop-timeout cannot be negative"))
	}
	return err
}

func (o *Options) validatePorts() (err error) {
	for name, port := range map[string]int{"metrics-port": o.MetricsPort, "health-probe-port": o.HealthProbePort} {
		if port < 0 || port > 65535 {
			err = multierr.Append(err, serrors.Wrap(fmt.Errorf("port is out of range"), name, port))
		}
	}
	return err
}

func (o *Options) validateLogLevel() error {
	if _, err := zapcore.ParseLevel(o.LogLevel); err != nil {
		return serrors.Wrap(fmt.Errorf("log level is not valid"), "log-level", o.LogLevel)
	}
	return nil
}

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
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/multierr"

	"github.com/autoscaler-playground/autoscaler/pkg/autoscaler"
	"github.com/autoscaler-playground/autoscaler/pkg/utils/env"
)

type optionsKey struct{}

type ReplicaBackend string

const (
	DockerBackend     ReplicaBackend = "docker"
	KubernetesBackend ReplicaBackend = "kubernetes"
)

const DefaultQuery = `histogram_quantile(0.5, sum(rate(api_request_latency_seconds_bucket[1m])) by (le))`

// Options for running this binary
type Options struct {
	// Metric source
	PrometheusURL string
	Query         string
	QueryTimeout  time.Duration
	// Replica backend
	TargetService  string
	ReplicaBackend string
	DockerHost     string
	DockerNetwork  string
	StopTimeout    time.Duration
	Kubeconfig     string
	Namespace      string
	// Policy
	PollInterval     time.Duration
	ScaleUpLatency   float64
	ScaleDownLatency float64
	MinReplicas      int
	MaxReplicas      int
	// Process
	MetricsPort     int
	HealthProbePort int
	LogLevel        string
	EnableProfiling bool
	ConfigFile      string
}

// FlagSet records the environment variable backing each flag
type FlagSet struct {
	*flag.FlagSet
	envVars map[string]string
}

func NewFlagSet() *FlagSet {
	return &FlagSet{
		FlagSet: flag.NewFlagSet("autoscaler", flag.ContinueOnError),
		envVars: map[string]string{},
	}
}

func (fs *FlagSet) StringVarWithEnv(p *string, name string, envVar string, val string, usage string) {
	fs.envVars[name] = envVar
	fs.StringVar(p, name, env.WithDefaultString(envVar, val), usage)
}

func (fs *FlagSet) BoolVarWithEnv(p *bool, name string, envVar string, val bool, usage string) {
	fs.envVars[name] = envVar
	fs.BoolVar(p, name, env.WithDefaultBool(envVar, val), usage)
}

func (fs *FlagSet) IntVarWithEnv(p *int, name string, envVar string, val int, usage string) {
	fs.envVars[name] = envVar
	fs.IntVar(p, name, env.WithDefaultInt(envVar, val), usage)
}

func (fs *FlagSet) Float64VarWithEnv(p *float64, name string, envVar string, val float64, usage string) {
	fs.envVars[name] = envVar
	fs.Float64Var(p, name, env.WithDefaultFloat64(envVar, val), usage)
}

func (fs *FlagSet) DurationVarWithEnv(p *time.Duration, name string, envVar string, val time.Duration, usage string) {
	fs.envVars[name] = envVar
	fs.DurationVar(p, name, env.WithDefaultDuration(envVar, val), usage)
}

// applyEnv sets every flag whose environment variable is present, so a malformed value fails parsing instead of
// falling back to the default. A bare integer is read as seconds for duration flags.
func (fs *FlagSet) applyEnv() (errs error) {
	fs.VisitAll(func(f *flag.Flag) {
		envVar, ok := fs.envVars[f.Name]
		if !ok {
			return
		}
		val, ok := os.LookupEnv(envVar)
		if !ok {
			return
		}
		if getter, isGetter := f.Value.(flag.Getter); isGetter {
			if _, isDuration := getter.Get().(time.Duration); isDuration {
				if _, err := strconv.Atoi(val); err == nil {
					val += "s"
				}
			}
		}
		if err := fs.Set(f.Name, val); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("invalid value %q for %s, %w", val, envVar, err))
		}
	})
	return errs
}

// AddFlags registers CLI flags and environment variables to fill-in the Options struct fields
func (o *Options) AddFlags(fs *FlagSet) {
	fs.StringVarWithEnv(&o.PrometheusURL, "prometheus-url", "PROMETHEUS_URL", "http://prometheus:9090", "The address of the Prometheus server queried for the latency signal")
	fs.StringVarWithEnv(&o.Query, "query", "LATENCY_QUERY", DefaultQuery, "The PromQL instant query returning the latency signal in seconds. The query must return exactly one sample.")
	fs.DurationVarWithEnv(&o.QueryTimeout, "query-timeout", "QUERY_TIMEOUT", 5*time.Second, "The maximum time a single latency query may take before the tick is skipped")

	fs.StringVarWithEnv(&o.TargetService, "target-service", "TARGET_SERVICE", "autoscaler_playground_api", "The service being scaled. For the docker backend this is the image replicas are started from, for the kubernetes backend the deployment name.")
	fs.StringVarWithEnv(&o.ReplicaBackend, "replica-backend", "REPLICA_BACKEND", string(DockerBackend), "The backend replicas are started and stopped through. One of docker or kubernetes.")
	fs.StringVarWithEnv(&o.DockerHost, "docker-host", "DOCKER_HOST", "", "The docker daemon address. Uses the client environment default when empty.")
	fs.StringVarWithEnv(&o.DockerNetwork, "docker-network", "DOCKER_NETWORK", "playground", "The docker network new replicas are attached to")
	fs.DurationVarWithEnv(&o.StopTimeout, "stop-timeout", "STOP_TIMEOUT", 10*time.Second, "The grace period a replica is given to exit before it is killed")
	fs.StringVarWithEnv(&o.Kubeconfig, "kubeconfig", "KUBECONFIG", "", "Path to a kubeconfig for the kubernetes backend. Uses the in-cluster configuration when empty.")
	fs.StringVarWithEnv(&o.Namespace, "namespace", "NAMESPACE", "default", "The namespace of the deployment scaled by the kubernetes backend")

	fs.DurationVarWithEnv(&o.PollInterval, "poll-interval", "POLL_INTERVAL", 10*time.Second, "The time between autoscaling ticks. A bare integer in POLL_INTERVAL is read as seconds.")
	fs.Float64VarWithEnv(&o.ScaleUpLatency, "scale-up-latency", "SCALE_UP_LATENCY", 0.12, "Latency in seconds above which a replica is added")
	fs.Float64VarWithEnv(&o.ScaleDownLatency, "scale-down-latency", "SCALE_DOWN_LATENCY", 0.06, "Latency in seconds below which a replica is removed")
	fs.IntVarWithEnv(&o.MinReplicas, "min-replicas", "MIN_REPLICAS", 1, "The minimum number of replicas")
	fs.IntVarWithEnv(&o.MaxReplicas, "max-replicas", "MAX_REPLICAS", 6, "The maximum number of replicas")

	fs.IntVarWithEnv(&o.MetricsPort, "metrics-port", "METRICS_PORT", 8080, "The port the metric endpoint binds to for operating metrics about the autoscaler itself")
	fs.IntVarWithEnv(&o.HealthProbePort, "health-probe-port", "HEALTH_PROBE_PORT", 8081, "The port the health probe endpoint binds to for reporting autoscaler health")
	fs.StringVarWithEnv(&o.LogLevel, "log-level", "LOG_LEVEL", "info", "Log verbosity level. One of debug, info, warn or error.")
	fs.BoolVarWithEnv(&o.EnableProfiling, "enable-profiling", "ENABLE_PROFILING", false, "Enable the profiling on the metric endpoint")
	fs.StringVarWithEnv(&o.ConfigFile, "config-file", "CONFIG_FILE", "", "Path to a TOML file keyed by flag name. Environment variables and flags take precedence over its values.")
}

// Parse reads the user passed flags, environment variables, config file and default values
func (o *Options) Parse(fs *FlagSet, args ...string) error {
	if err := fs.applyEnv(); err != nil {
		return fmt.Errorf("parsing environment, %w", err)
	}
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing flags, %w", err)
	}
	if o.ConfigFile != "" {
		if err := o.mergeConfigFile(fs); err != nil {
			return fmt.Errorf("loading config file %s, %w", o.ConfigFile, err)
		}
	}
	if err := o.Validate(); err != nil {
		return fmt.Errorf("validating options, %w", err)
	}
	return nil
}

// mergeConfigFile applies values from the config file to every flag that was neither passed on the
// command line nor set through its environment variable
func (o *Options) mergeConfigFile(fs *FlagSet) error {
	data, err := os.ReadFile(o.ConfigFile)
	if err != nil {
		return err
	}
	values := map[string]any{}
	if err := toml.Unmarshal(data, &values); err != nil {
		return err
	}
	explicit := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	for name, value := range values {
		if fs.Lookup(name) == nil {
			return fmt.Errorf("unknown option %q", name)
		}
		if _, ok := os.LookupEnv(fs.envVars[name]); ok || explicit[name] {
			continue
		}
		if err := fs.Set(name, fmt.Sprint(value)); err != nil {
			return fmt.Errorf("setting %s, %w", name, err)
		}
	}
	return nil
}

// MustParse reads the options from the process arguments and environment. The process exits when the
// options are invalid.
func (o *Options) MustParse() *Options {
	fs := NewFlagSet()
	o.AddFlags(fs)
	err := o.Parse(fs, os.Args[1:]...)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return o
}

// PolicyConfig returns the scaling bounds described by the options
func (o *Options) PolicyConfig() autoscaler.PolicyConfig {
	return autoscaler.PolicyConfig{
		ScaleUpThreshold:   o.ScaleUpLatency,
		ScaleDownThreshold: o.ScaleDownLatency,
		MinReplicas:        o.MinReplicas,
		MaxReplicas:        o.MaxReplicas,
		PollInterval:       o.PollInterval,
	}
}

func ToContext(ctx context.Context, opts *Options) context.Context {
	return context.WithValue(ctx, optionsKey{}, opts)
}

func FromContext(ctx context.Context) *Options {
	retval := ctx.Value(optionsKey{})
	if retval == nil {
		return nil
	}
	return retval.(*Options)
}

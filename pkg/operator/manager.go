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

package operator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"sigs.k8s.io/controller-runtime/pkg/healthz"

	"github.com/autoscaler-playground/autoscaler/pkg/metrics"
	"github.com/autoscaler-playground/autoscaler/pkg/utils/log"
)

const (
	shutdownTimeout = 10 * time.Second

	livenessEndpoint  = "/healthz"
	readinessEndpoint = "/readyz"
)

// Manager serves the metrics endpoint and the health probes of the process. Checks must be added before Start.
type Manager struct {
	metricsAddress     string
	healthProbeAddress string
	enableProfiling    bool

	healthz map[string]healthz.Checker
	readyz  map[string]healthz.Checker
}

func NewManager(metricsPort, healthProbePort int, enableProfiling bool) *Manager {
	return &Manager{
		metricsAddress:     fmt.Sprintf(":%d", metricsPort),
		healthProbeAddress: fmt.Sprintf(":%d", healthProbePort),
		enableProfiling:    enableProfiling,
		healthz:            map[string]healthz.Checker{},
		readyz:             map[string]healthz.Checker{},
	}
}

func (m *Manager) AddHealthzCheck(name string, check healthz.Checker) error {
	if _, ok := m.healthz[name]; ok {
		return fmt.Errorf("healthz check %q is already registered", name)
	}
	m.healthz[name] = check
	return nil
}

func (m *Manager) AddReadyzCheck(name string, check healthz.Checker) error {
	if _, ok := m.readyz[name]; ok {
		return fmt.Errorf("readyz check %q is already registered", name)
	}
	m.readyz[name] = check
	return nil
}

// MetricsHandler serves the autoscaler metrics registry and, when profiling is enabled, the pprof endpoints
func (m *Manager) MetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	if m.enableProfiling {
		for path, handler := range map[string]http.Handler{
			"/debug/pprof/":             http.HandlerFunc(pprof.Index),
			"/debug/pprof/cmdline":      http.HandlerFunc(pprof.Cmdline),
			"/debug/pprof/profile":      http.HandlerFunc(pprof.Profile),
			"/debug/pprof/symbol":       http.HandlerFunc(pprof.Symbol),
			"/debug/pprof/trace":        http.HandlerFunc(pprof.Trace),
			"/debug/pprof/allocs":       pprof.Handler("allocs"),
			"/debug/pprof/heap":         pprof.Handler("heap"),
			"/debug/pprof/block":        pprof.Handler("block"),
			"/debug/pprof/goroutine":    pprof.Handler("goroutine"),
			"/debug/pprof/threadcreate": pprof.Handler("threadcreate"),
		} {
			mux.Handle(path, handler)
		}
	}
	return mux
}

// HealthHandler serves /healthz and /readyz, aggregated at the root of each path and per check below it
func (m *Manager) HealthHandler() http.Handler {
	mux := http.NewServeMux()
	for path, checks := range map[string]map[string]healthz.Checker{livenessEndpoint: m.healthz, readinessEndpoint: m.readyz} {
		handler := http.StripPrefix(path, &healthz.Handler{Checks: checks})
		mux.Handle(path, handler)
		mux.Handle(path+"/", handler)
	}
	return mux
}

// Start serves the metrics and health endpoints until ctx is done, then shuts both servers down gracefully
func (m *Manager) Start(ctx context.Context) error {
	servers := []*http.Server{
		{Addr: m.metricsAddress, Handler: m.MetricsHandler(), ReadHeaderTimeout: 10 * time.Second},
		{Addr: m.healthProbeAddress, Handler: m.HealthHandler(), ReadHeaderTimeout: 10 * time.Second},
	}
	group, ctx := errgroup.WithContext(ctx)
	for _, server := range servers {
		group.Go(func() error {
			log.FromContext(ctx).WithValues("address", server.Addr).Info("starting server")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serving %s, %w", server.Addr, err)
			}
			return nil
		})
	}
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		var errs error
		for _, server := range servers {
			if err := server.Shutdown(shutdownCtx); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("shutting down %s, %w", server.Addr, err))
			}
		}
		return errs
	})
	return group.Wait()
}

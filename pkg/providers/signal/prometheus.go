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

package signal

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/awslabs/operatorpkg/serrors"
	"github.com/prometheus/client_golang/api"
	prometheusv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"github.com/samber/lo"
	"k8s.io/utils/clock"

	"github.com/autoscaler-playground/autoscaler/pkg/utils/log"
)

// QueryAPI is the subset of the Prometheus HTTP API used to read the signal
type QueryAPI interface {
	Query(ctx context.Context, query string, ts time.Time, opts ...prometheusv1.Option) (model.Value, prometheusv1.Warnings, error)
}

// DefaultProvider evaluates an instant PromQL query and interprets its single sample as the signal
type DefaultProvider struct {
	api   QueryAPI
	query string
	clk   clock.Clock
}

func NewDefaultProvider(api QueryAPI, query string, clk clock.Clock) *DefaultProvider {
	return &DefaultProvider{
		api:   api,
		query: query,
		clk:   clk,
	}
}

// NewQueryAPI builds a Prometheus HTTP API client for the server at address
func NewQueryAPI(address string) (QueryAPI, error) {
	client, err := api.NewClient(api.Config{Address: address})
	if err != nil {
		return nil, fmt.Errorf("creating prometheus client, %w", err)
	}
	return prometheusv1.NewAPI(client), nil
}

func (p *DefaultProvider) Observe(ctx context.Context) (Signal, error) {
	now := p.clk.Now()
	value, warnings, err := p.api.Query(ctx, p.query, now)
	if len(warnings) > 0 {
		log.FromContext(ctx).V(1).Info("query returned warnings", "warnings", []string(warnings))
	}
	if err != nil {
		return Signal{}, serrors.Wrap(fmt.Errorf("querying prometheus, %w", err), "query", p.query)
	}
	sample, err := p.sample(value)
	if err != nil {
		return Signal{}, fmt.Errorf("invalid response for query %s, %w", p.query, err)
	}
	v := float64(sample.Value)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Signal{}, serrors.Wrap(fmt.Errorf("sample is not a finite number"), "query", p.query, "value", sample.Value.String())
	}
	if v < 0 {
		return Signal{}, serrors.Wrap(fmt.Errorf("sample cannot be negative"), "query", p.query, "value", sample.Value.String())
	}
	ts := sample.Timestamp.Time()
	if sample.Timestamp == 0 {
		ts = now
	}
	return Signal{Value: v, Timestamp: ts}, nil
}

func (p *DefaultProvider) sample(value model.Value) (*model.Sample, error) {
	switch v := value.(type) {
	case *model.Scalar:
		return &model.Sample{Value: v.Value, Timestamp: v.Timestamp}, nil
	case model.Vector:
		if v.Len() == 0 {
			return nil, ErrNoSamples
		}
		if v.Len() != 1 {
			return nil, fmt.Errorf("expected a single sample and got %d, %s", v.Len(), log.Pretty(lo.Map(v, func(s *model.Sample, _ int) string { return s.Metric.String() })))
		}
		return v[0], nil
	case nil:
		return nil, ErrNoSamples
	default:
		return nil, fmt.Errorf("expected %s and got %s", model.ValVector, value.Type())
	}
}

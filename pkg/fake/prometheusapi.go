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
	"time"

	prometheusv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

type QueryInput struct {
	Query     string
	Timestamp time.Time
}

// PrometheusAPI answers instant queries with a configured result
type PrometheusAPI struct {
	CalledWithQueryInput AtomicPtrSlice[QueryInput]
	NextError            AtomicError

	mu       sync.Mutex
	result   model.Value
	warnings prometheusv1.Warnings
}

func NewPrometheusAPI() *PrometheusAPI {
	return &PrometheusAPI{}
}

// SetResult sets the value returned by every following query
func (p *PrometheusAPI) SetResult(value model.Value, warnings ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.result = value
	p.warnings = warnings
}

// SetSample answers every following query with a vector holding a single sample
func (p *PrometheusAPI) SetSample(value float64) {
	p.SetResult(model.Vector{{Metric: model.Metric{}, Value: model.SampleValue(value)}})
}

func (p *PrometheusAPI) Reset() {
	p.CalledWithQueryInput.Reset()
	p.NextError.Reset()
	p.SetResult(nil)
}

func (p *PrometheusAPI) Query(ctx context.Context, query string, ts time.Time, _ ...prometheusv1.Option) (model.Value, prometheusv1.Warnings, error) {
	p.CalledWithQueryInput.Add(&QueryInput{Query: query, Timestamp: ts})
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if err := p.NextError.Get(); err != nil {
		return nil, nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result, p.warnings, nil
}

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

package signal_test

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/common/model"
	clock "k8s.io/utils/clock/testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/autoscaler-playground/autoscaler/pkg/fake"
	"github.com/autoscaler-playground/autoscaler/pkg/providers/signal"
	"github.com/autoscaler-playground/autoscaler/pkg/test"
	. "github.com/autoscaler-playground/autoscaler/pkg/utils/testing"
)

var ctx context.Context
var fakeClock *clock.FakeClock
var prometheusAPI *fake.PrometheusAPI
var provider *signal.DefaultProvider

func TestSignal(t *testing.T) {
	ctx = TestContextWithLogger(t)
	RegisterFailHandler(Fail)
	RunSpecs(t, "Signal")
}

var _ = BeforeEach(func() {
	fakeClock = clock.NewFakeClock(test.Start)
	prometheusAPI = fake.NewPrometheusAPI()
	provider = signal.NewDefaultProvider(prometheusAPI, "latency", fakeClock)
})

var _ = Describe("DefaultProvider", func() {
	It("should return the single sample of the query", func() {
		prometheusAPI.SetSample(0.15)
		sig, err := provider.Observe(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(sig.Value).To(Equal(0.15))
	})
	It("should query at the current clock time", func() {
		prometheusAPI.SetSample(0.1)
		_, err := provider.Observe(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(prometheusAPI.CalledWithQueryInput.Len()).To(Equal(1))
		input := prometheusAPI.CalledWithQueryInput.At(0)
		Expect(input.Query).To(Equal("latency"))
		Expect(input.Timestamp.Equal(test.Start)).To(BeTrue())
	})
	It("should use the sample timestamp when present", func() {
		ts := model.TimeFromUnix(test.Start.Add(-5 * time.Minute).Unix())
		prometheusAPI.SetResult(model.Vector{{Value: 0.1, Timestamp: ts}})
		sig, err := provider.Observe(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(sig.Timestamp.Equal(ts.Time())).To(BeTrue())
	})
	It("should fall back to the clock when the sample has no timestamp", func() {
		prometheusAPI.SetSample(0.1)
		sig, err := provider.Observe(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(sig.Timestamp.Equal(test.Start)).To(BeTrue())
	})
	It("should accept a scalar result", func() {
		prometheusAPI.SetResult(&model.Scalar{Value: 0.07})
		sig, err := provider.Observe(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(sig.Value).To(Equal(0.07))
	})
	It("should accept a zero sample from an idle but healthy service", func() {
		prometheusAPI.SetSample(0)
		sig, err := provider.Observe(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(sig.Value).To(BeZero())
	})
	Context("Errors", func() {
		It("should return the query error", func() {
			prometheusAPI.SetSample(0.1)
			prometheusAPI.NextError.Set(fmt.Errorf("connection refused"))
			_, err := provider.Observe(ctx)
			Expect(err).To(MatchError(ContainSubstring("querying prometheus")))
		})
		It("should fail on an empty result", func() {
			prometheusAPI.SetResult(model.Vector{})
			_, err := provider.Observe(ctx)
			Expect(err).To(MatchError(signal.ErrNoSamples))
		})
		It("should fail on a missing result", func() {
			_, err := provider.Observe(ctx)
			Expect(err).To(MatchError(signal.ErrNoSamples))
		})
		It("should fail on more than one sample", func() {
			prometheusAPI.SetResult(model.Vector{
				{Metric: model.Metric{"instance": "a"}, Value: 0.1},
				{Metric: model.Metric{"instance": "b"}, Value: 0.2},
			})
			_, err := provider.Observe(ctx)
			Expect(err).To(MatchError(ContainSubstring("expected a single sample and got 2")))
		})
		It("should fail on a matrix result", func() {
			prometheusAPI.SetResult(model.Matrix{})
			_, err := provider.Observe(ctx)
			Expect(err).To(MatchError(ContainSubstring("expected vector and got matrix")))
		})
		DescribeTable("should fail on samples that are not a latency",
			func(value float64, message string) {
				prometheusAPI.SetSample(value)
				_, err := provider.Observe(ctx)
				Expect(err).To(MatchError(ContainSubstring(message)))
			},
			Entry("NaN", math.NaN(), "sample is not a finite number"),
			Entry("+Inf", math.Inf(1), "sample is not a finite number"),
			Entry("negative", -0.1, "sample cannot be negative"),
		)
		It("should fail when the context is done", func() {
			prometheusAPI.SetSample(0.1)
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			_, err := provider.Observe(cancelled)
			Expect(err).To(MatchError(ContainSubstring(context.Canceled.Error())))
		})
	})
})

var _ = Describe("QueryAPI", func() {
	var server *httptest.Server
	var queries []string

	BeforeEach(func() {
		queries = nil
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.ParseForm()).To(Succeed())
			queries = append(queries, r.Form.Get("query"))
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"status":"success","data":{"resultType":"vector","result":[{"metric":{},"value":[1700000000,"0.125"]}]}}`)
		}))
		DeferCleanup(server.Close)
	})

	It("should read the signal from a prometheus server", func() {
		api, err := signal.NewQueryAPI(server.URL)
		Expect(err).ToNot(HaveOccurred())
		sig, err := signal.NewDefaultProvider(api, "histogram_quantile(0.5, rate(x[1m]))", fakeClock).Observe(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(sig.Value).To(Equal(0.125))
		Expect(sig.Timestamp.Unix()).To(BeEquivalentTo(1700000000))
		Expect(queries).To(ConsistOf("histogram_quantile(0.5, rate(x[1m]))"))
	})
	It("should fail when the server is unreachable", func() {
		server.Close()
		api, err := signal.NewQueryAPI(server.URL)
		Expect(err).ToNot(HaveOccurred())
		_, err = signal.NewDefaultProvider(api, "up", fakeClock).Observe(ctx)
		Expect(err).To(HaveOccurred())
	})
})

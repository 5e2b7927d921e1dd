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

package expectations

import (
	"context"

	opmetrics "github.com/awslabs/operatorpkg/metrics"
	. "github.com/onsi/ginkgo/v2" //nolint:revive,stylecheck
	. "github.com/onsi/gomega"    //nolint:revive,stylecheck
	"github.com/prometheus/client_golang/prometheus/testutil"
	prometheusmodel "github.com/prometheus/client_model/go"
	"github.com/samber/lo"

	"github.com/autoscaler-playground/autoscaler/pkg/controllers/polling"
	"github.com/autoscaler-playground/autoscaler/pkg/metrics"
)

func ExpectReconciled(ctx context.Context, reconciler polling.Reconciler) {
	GinkgoHelper()
	Expect(reconciler.Reconcile(ctx)).To(Succeed())
}

func ExpectReconcileFailed(ctx context.Context, reconciler polling.Reconciler) error {
	GinkgoHelper()
	err := reconciler.Reconcile(ctx)
	Expect(err).To(HaveOccurred())
	return err
}

// FindMetricWithLabelValues returns the first sample of the named metric carrying every label in labelValues
func FindMetricWithLabelValues(name string, labelValues map[string]string) (*prometheusmodel.Metric, bool) {
	GinkgoHelper()
	families, err := metrics.Registry.Gather()
	Expect(err).To(BeNil())

	mf, found := lo.Find(families, func(mf *prometheusmodel.MetricFamily) bool {
		return mf.GetName() == name
	})
	if !found {
		return nil, false
	}
	for _, m := range mf.Metric {
		temp := lo.Assign(labelValues)
		for _, labelPair := range m.Label {
			if v, ok := temp[labelPair.GetName()]; ok && v == labelPair.GetValue() {
				delete(temp, labelPair.GetName())
			}
		}
		if len(temp) == 0 {
			return m, true
		}
	}
	return nil, false
}

func ExpectMetricGaugeValue(collector opmetrics.GaugeMetric, expectedValue float64, labels map[string]string) {
	GinkgoHelper()
	gauge, ok := collector.(*opmetrics.PrometheusGauge)
	Expect(ok).To(BeTrue(), "gauge should be backed by prometheus")
	Expect(testutil.ToFloat64(gauge.With(labels))).To(Equal(expectedValue))
}

func ExpectMetricCounterValue(collector opmetrics.CounterMetric, expectedValue float64, labels map[string]string) {
	GinkgoHelper()
	counter, ok := collector.(*opmetrics.PrometheusCounter)
	Expect(ok).To(BeTrue(), "counter should be backed by prometheus")
	Expect(testutil.ToFloat64(counter.With(labels))).To(Equal(expectedValue))
}

func ExpectMetricHistogramSampleCountValue(metricName string, expectedValue uint64, labels map[string]string) {
	GinkgoHelper()
	metric, ok := FindMetricWithLabelValues(metricName, labels)
	Expect(ok).To(BeTrue(), "Metric "+metricName+" should be available")
	Expect(lo.FromPtr(metric.Histogram.SampleCount)).To(Equal(expectedValue), "Metric "+metricName+" should have the expected value")
}

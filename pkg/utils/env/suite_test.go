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

package env_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/autoscaler-playground/autoscaler/pkg/utils/env"
)

func TestEnv(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Env")
}

const key = "AUTOSCALER_ENV_TEST"

var _ = Describe("Env", func() {
	Context("WithDefaultDuration", func() {
		It("should return the default when unset", func() {
			Expect(env.WithDefaultDuration(key, time.Minute)).To(Equal(time.Minute))
		})
		It("should read a bare integer as seconds", func() {
			GinkgoT().Setenv(key, "15")
			Expect(env.WithDefaultDuration(key, time.Minute)).To(Equal(15 * time.Second))
		})
		It("should read a duration with units", func() {
			GinkgoT().Setenv(key, "250ms")
			Expect(env.WithDefaultDuration(key, time.Minute)).To(Equal(250 * time.Millisecond))
		})
		It("should return the default when the value does not parse", func() {
			GinkgoT().Setenv(key, "soon")
			Expect(env.WithDefaultDuration(key, time.Minute)).To(Equal(time.Minute))
		})
	})
	DescribeTable("WithDefaultInt",
		func(value string, expected int) {
			GinkgoT().Setenv(key, value)
			Expect(env.WithDefaultInt(key, 7)).To(Equal(expected))
		},
		Entry("valid", "3", 3),
		Entry("negative", "-1", -1),
		Entry("invalid", "three", 7),
	)
	DescribeTable("WithDefaultFloat64",
		func(value string, expected float64) {
			GinkgoT().Setenv(key, value)
			Expect(env.WithDefaultFloat64(key, 0.5)).To(Equal(expected))
		},
		Entry("valid", "0.12", 0.12),
		Entry("integer", "2", 2.0),
		Entry("invalid", "fast", 0.5),
	)
	DescribeTable("WithDefaultBool",
		func(value string, expected bool) {
			GinkgoT().Setenv(key, value)
			Expect(env.WithDefaultBool(key, true)).To(Equal(expected))
		},
		Entry("true", "true", true),
		Entry("false", "0", false),
		Entry("invalid", "maybe", true),
	)
	It("should return set strings, including empty ones", func() {
		Expect(env.WithDefaultString(key, "fallback")).To(Equal("fallback"))
		GinkgoT().Setenv(key, "")
		Expect(env.WithDefaultString(key, "fallback")).To(BeEmpty())
	})
})

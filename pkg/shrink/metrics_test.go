/*
Copyright © contributors to diskshrink.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.

SPDX-License-Identifier: Apache-2.0
*/

package shrink

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Metrics", func() {
	var (
		metrics  *Metrics
		registry *prometheus.Registry
	)

	BeforeEach(func() {
		metrics = NewMetrics()
		registry = prometheus.NewRegistry()
		Expect(metrics.Register(registry)).To(Succeed())
	})

	It("rejects double registration", func() {
		Expect(metrics.Register(registry)).ToNot(Succeed())
	})

	It("counts outcomes by state", func() {
		metrics.ObserveOutcome(Outcome{State: StateSuccess, SpaceSavedGB: 7}, time.Second)
		metrics.ObserveOutcome(Outcome{State: StateSuccess, SpaceSavedGB: 1}, time.Second)
		metrics.ObserveOutcome(Outcome{State: StateIgnored}, time.Millisecond)

		Expect(testutil.ToFloat64(
			metrics.OutcomesTotal.WithLabelValues(string(StateSuccess)))).To(Equal(2.0))
		Expect(testutil.ToFloat64(
			metrics.OutcomesTotal.WithLabelValues(string(StateIgnored)))).To(Equal(1.0))
	})

	It("accumulates reclaimed bytes", func() {
		metrics.ObserveOutcome(Outcome{State: StateSuccess, SpaceSavedGB: 2}, time.Second)

		Expect(testutil.ToFloat64(metrics.SpaceSavedBytes)).
			To(Equal(2.0 * 1024 * 1024 * 1024))
	})

	It("does not count unchanged disks as savings", func() {
		metrics.ObserveOutcome(Outcome{State: StateIgnored}, time.Second)

		Expect(testutil.ToFloat64(metrics.SpaceSavedBytes)).To(BeZero())
	})
})

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
)

const (
	namespace = "diskshrink"
	subsystem = "disk"
)

// Metrics contains all shrink-related Prometheus metrics.
type Metrics struct {
	// OutcomesTotal counts processed disks by terminal state.
	OutcomesTotal *prometheus.CounterVec

	// SpaceSavedBytes accumulates the bytes reclaimed across disks.
	SpaceSavedBytes prometheus.Counter

	// ProcessingDuration observes per-disk wall time.
	ProcessingDuration prometheus.Histogram
}

// NewMetrics creates shrink metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		OutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "outcomes_total",
				Help:      "Disks processed, labeled by terminal state",
			},
			[]string{"state"},
		),
		SpaceSavedBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "space_saved_bytes_total",
				Help:      "Bytes reclaimed by shrinking or deleting disks",
			},
		),
		ProcessingDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "processing_duration_seconds",
				Help:      "Wall time spent processing one disk",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
	}
}

// Register registers all metrics with the provided registry.
func (m *Metrics) Register(registry prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.OutcomesTotal,
		m.SpaceSavedBytes,
		m.ProcessingDuration,
	}

	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveOutcome updates metrics from one disk's outcome.
func (m *Metrics) ObserveOutcome(outcome Outcome, duration time.Duration) {
	m.OutcomesTotal.WithLabelValues(string(outcome.State)).Inc()
	if outcome.SpaceSavedGB > 0 {
		m.SpaceSavedBytes.Add(outcome.SpaceSavedGB * 1024 * 1024 * 1024)
	}
	m.ProcessingDuration.Observe(duration.Seconds())
}

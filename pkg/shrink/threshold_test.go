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

	"github.com/vdiskops/diskshrink/pkg/vdisk"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("EvaluateThresholds", func() {
	var now time.Time

	BeforeEach(func() {
		now = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	})

	makeTask := func(ext string, sizeBytes int64, lastAccess, lastWrite time.Time) vdisk.Task {
		return vdisk.Task{
			Path:       "/profiles/alice" + ext,
			Name:       "alice" + ext,
			SizeBytes:  sizeBytes,
			LastAccess: lastAccess,
			LastWrite:  lastWrite,
			Extension:  ext,
		}
	}

	It("skips files that are not disk images", func() {
		task := makeTask(".txt", 10*1024*1024*1024, now, now)

		result := EvaluateThresholds(task, &Config{}, now)
		Expect(result.Decision).To(Equal(DecisionSkip))
		Expect(result.State).To(Equal(StateFileIsNotDiskFormat))
	})

	It("checks the extension before every other policy", func() {
		// Old and tiny, but still not a disk image: the extension check
		// is non-overridable.
		task := makeTask(".log", 1024, now.AddDate(0, 0, -400), now.AddDate(0, 0, -400))
		cfg := &Config{DeleteOlderThanDays: 30, IgnoreLessThanGB: 5}

		result := EvaluateThresholds(task, cfg, now)
		Expect(result.Decision).To(Equal(DecisionSkip))
		Expect(result.State).To(Equal(StateFileIsNotDiskFormat))
	})

	It("proceeds when no optional threshold is configured", func() {
		task := makeTask(".vhdx", 10*1024*1024*1024, now, now)

		result := EvaluateThresholds(task, &Config{}, now)
		Expect(result.Decision).To(Equal(DecisionProceed))
	})

	Describe("age-based deletion", func() {
		It("deletes disks older than the cutoff", func() {
			task := makeTask(".vhdx", 10*1024*1024*1024,
				now.AddDate(0, 0, -100), now.AddDate(0, 0, -100))
			cfg := &Config{DeleteOlderThanDays: 90}

			result := EvaluateThresholds(task, cfg, now)
			Expect(result.Decision).To(Equal(DecisionDelete))
		})

		It("uses the later of access and write time", func() {
			// Access time is stale but the disk was written recently;
			// the disk must survive.
			task := makeTask(".vhdx", 10*1024*1024*1024,
				now.AddDate(0, 0, -100), now.AddDate(0, 0, -5))
			cfg := &Config{DeleteOlderThanDays: 90}

			result := EvaluateThresholds(task, cfg, now)
			Expect(result.Decision).To(Equal(DecisionProceed))
		})

		It("keeps disks used exactly at the cutoff", func() {
			task := makeTask(".vhdx", 10*1024*1024*1024,
				now.AddDate(0, 0, -90), now.AddDate(0, 0, -90))
			cfg := &Config{DeleteOlderThanDays: 90}

			result := EvaluateThresholds(task, cfg, now)
			Expect(result.Decision).To(Equal(DecisionProceed))
		})

		It("is disabled when unset", func() {
			task := makeTask(".vhdx", 10*1024*1024*1024,
				now.AddDate(0, 0, -1000), now.AddDate(0, 0, -1000))

			result := EvaluateThresholds(task, &Config{}, now)
			Expect(result.Decision).To(Equal(DecisionProceed))
		})
	})

	Describe("minimum size ignore", func() {
		It("ignores disks below the configured size", func() {
			task := makeTask(".vhd", 2*1024*1024*1024, now, now)
			cfg := &Config{IgnoreLessThanGB: 5}

			result := EvaluateThresholds(task, cfg, now)
			Expect(result.Decision).To(Equal(DecisionIgnore))
			Expect(result.State).To(Equal(StateIgnored))
		})

		It("proceeds for disks at the configured size", func() {
			task := makeTask(".vhd", 5*1024*1024*1024, now, now)
			cfg := &Config{IgnoreLessThanGB: 5}

			result := EvaluateThresholds(task, cfg, now)
			Expect(result.Decision).To(Equal(DecisionProceed))
		})

		It("ignores disks just under the threshold despite display rounding", func() {
			// 4 MiB short of 5 GB: SizeGB() rounds to 5.00 but the true
			// size is below the threshold.
			task := makeTask(".vhd", 5*1024*1024*1024-4*1024*1024, now, now)
			cfg := &Config{IgnoreLessThanGB: 5}

			result := EvaluateThresholds(task, cfg, now)
			Expect(result.Decision).To(Equal(DecisionIgnore))
			Expect(result.State).To(Equal(StateIgnored))
		})

		It("yields to the deletion policy", func() {
			// Small and old: deletion wins because it is checked first.
			task := makeTask(".vhd", 2*1024*1024*1024,
				now.AddDate(0, 0, -100), now.AddDate(0, 0, -100))
			cfg := &Config{DeleteOlderThanDays: 90, IgnoreLessThanGB: 5}

			result := EvaluateThresholds(task, cfg, now)
			Expect(result.Decision).To(Equal(DecisionDelete))
		})
	})
})

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

package fleet

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("MaintenanceWindow", func() {
	It("treats a nil window as always open", func() {
		var window *MaintenanceWindow
		Expect(window.IsOpen(time.Now())).To(BeTrue())
		Expect(window.Next(time.Now())).To(BeNil())
	})

	It("is open inside the window and closed outside it", func() {
		window := &MaintenanceWindow{
			Schedule: "0 0 3 * * *",
			Duration: "2h",
		}

		inside := time.Date(2026, 8, 30, 4, 0, 0, 0, time.UTC)
		Expect(window.IsOpen(inside)).To(BeTrue())

		before := time.Date(2026, 8, 30, 2, 59, 0, 0, time.UTC)
		Expect(window.IsOpen(before)).To(BeFalse())

		after := time.Date(2026, 8, 30, 5, 1, 0, 0, time.UTC)
		Expect(window.IsOpen(after)).To(BeFalse())
	})

	It("closes the window when the schedule cannot be parsed", func() {
		window := &MaintenanceWindow{Schedule: "not a schedule"}
		Expect(window.IsOpen(time.Now())).To(BeFalse())
		Expect(window.Next(time.Now())).To(BeNil())
	})

	It("falls back to the default duration on a bad duration", func() {
		window := &MaintenanceWindow{
			Schedule: "0 0 3 * * *",
			Duration: "bogus",
		}

		inside := time.Date(2026, 8, 30, 4, 30, 0, 0, time.UTC)
		Expect(window.IsOpen(inside)).To(BeTrue())
	})

	It("evaluates the schedule in the configured timezone", func() {
		window := &MaintenanceWindow{
			Schedule: "0 0 3 * * *",
			Duration: "1h",
			Timezone: "America/New_York",
		}

		// 03:30 in New York is 07:30 UTC during DST.
		inside := time.Date(2026, 8, 30, 7, 30, 0, 0, time.UTC)
		Expect(window.IsOpen(inside)).To(BeTrue())

		outside := time.Date(2026, 8, 30, 3, 30, 0, 0, time.UTC)
		Expect(window.IsOpen(outside)).To(BeFalse())
	})

	It("returns the next window start", func() {
		window := &MaintenanceWindow{Schedule: "0 0 3 * * *"}

		now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
		next := window.Next(now)
		Expect(next).ToNot(BeNil())
		Expect(*next).To(Equal(time.Date(2026, 8, 31, 3, 0, 0, 0, time.UTC)))
	})
})

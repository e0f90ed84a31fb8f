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

package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/vdiskops/diskshrink/pkg/shrink"
)

var _ shrink.OutcomeReporter = &CSVReporter{}

var _ = Describe("CSVReporter", func() {
	var sinkPath string

	BeforeEach(func() {
		dir, err := os.MkdirTemp("", "csv-test")
		Expect(err).ToNot(HaveOccurred())
		DeferCleanup(func() { _ = os.RemoveAll(dir) })
		sinkPath = filepath.Join(dir, "results.csv")
	})

	readRows := func() [][]string {
		file, err := os.Open(sinkPath)
		Expect(err).ToNot(HaveOccurred())
		defer func() { _ = file.Close() }()

		rows, err := csv.NewReader(file).ReadAll()
		Expect(err).ToNot(HaveOccurred())
		return rows
	}

	outcome := shrink.Outcome{
		Name:           "frank.vhdx",
		FullPath:       "/disks/frank.vhdx",
		State:          shrink.StateSuccess,
		OriginalSizeGB: 10,
		FinalSizeGB:    3.5,
		SpaceSavedGB:   6.5,
	}

	It("creates the file with a header on the first report", func() {
		NewCSVReporter(sinkPath).Report(context.Background(), outcome)

		rows := readRows()
		Expect(rows).To(HaveLen(2))
		Expect(rows[0]).To(Equal([]string{
			"Name", "FullPath", "State", "OriginalSizeGB", "FinalSizeGB", "SpaceSavedGB",
		}))
		Expect(rows[1]).To(Equal([]string{
			"frank.vhdx", "/disks/frank.vhdx", "Success", "10.00", "3.50", "6.50",
		}))
	})

	It("writes the header only once across reports", func() {
		reporter := NewCSVReporter(sinkPath)
		reporter.Report(context.Background(), outcome)

		second := outcome
		second.Name = "grace.vhdx"
		second.FullPath = "/disks/grace.vhdx"
		second.State = shrink.StateSkippedAlreadyMinimum
		reporter.Report(context.Background(), second)

		rows := readRows()
		Expect(rows).To(HaveLen(3))
		Expect(rows[1][0]).To(Equal("frank.vhdx"))
		Expect(rows[2][0]).To(Equal("grace.vhdx"))
		Expect(rows[2][2]).To(Equal("SkippedAlreadyMinimum"))
	})

	It("appends to a sink that already has rows", func() {
		first := NewCSVReporter(sinkPath)
		first.Report(context.Background(), outcome)

		// A fresh reporter over the same file must not rewrite the header.
		NewCSVReporter(sinkPath).Report(context.Background(), outcome)

		rows := readRows()
		Expect(rows).To(HaveLen(3))
		Expect(rows[0][0]).To(Equal("Name"))
	})

	It("keeps rows whole under concurrent reports", func() {
		reporter := NewCSVReporter(sinkPath)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				o := outcome
				o.Name = fmt.Sprintf("disk%02d.vhdx", i)
				o.FullPath = "/disks/" + o.Name
				reporter.Report(context.Background(), o)
			}(i)
		}
		wg.Wait()

		rows := readRows()
		Expect(rows).To(HaveLen(21))
		for _, row := range rows[1:] {
			Expect(row).To(HaveLen(6))
		}
	})

	It("swallows sink failures without panicking", func() {
		reporter := NewCSVReporter(filepath.Join(sinkPath, "not-a-dir", "results.csv"))
		Expect(func() {
			reporter.Report(context.Background(), outcome)
		}).ToNot(Panic())
	})
})

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

package compaction

import (
	"context"
	"errors"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// flakyBackend fails a fixed number of attempts before succeeding.
type flakyBackend struct {
	failures  int
	newLength int64
	attempts  int
}

func (b *flakyBackend) Compact(_ context.Context, diskPath string) (int64, error) {
	b.attempts++
	if b.attempts <= b.failures {
		return 0, &Error{
			DiskPath: diskPath,
			Output:   []string{"Virtual Disk Service error: the operation timed out"},
		}
	}
	return b.newLength, nil
}

var _ = Describe("Engine", func() {
	var diagnosticDir string

	BeforeEach(func() {
		var err error
		diagnosticDir, err = os.MkdirTemp("", "retry-test")
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(diagnosticDir)
	})

	newEngine := func(backend Backend, maxRetries int) *Engine {
		return NewEngine(backend,
			WithMaxRetries(maxRetries),
			WithBackoff(time.Millisecond),
			WithDiagnosticDir(diagnosticDir))
	}

	It("returns the new length on first-attempt success", func() {
		backend := &flakyBackend{failures: 0, newLength: 42}

		newLength, err := newEngine(backend, 5).Compact(context.Background(), "/disks/frank.vhdx")
		Expect(err).ToNot(HaveOccurred())
		Expect(newLength).To(Equal(int64(42)))
		Expect(backend.attempts).To(Equal(1))
	})

	It("stops retrying once an attempt succeeds", func() {
		backend := &flakyBackend{failures: 3, newLength: 42}
		engine := newEngine(backend, 10)

		newLength, err := engine.Compact(context.Background(), "/disks/frank.vhdx")
		Expect(err).ToNot(HaveOccurred())
		Expect(newLength).To(Equal(int64(42)))
		Expect(backend.attempts).To(Equal(4))
	})

	It("persists one diagnostic file per failed attempt", func() {
		backend := &flakyBackend{failures: 2, newLength: 42}
		engine := newEngine(backend, 10)

		_, err := engine.Compact(context.Background(), "/disks/frank.vhdx")
		Expect(err).ToNot(HaveOccurred())

		Expect(engine.DiagnosticFilePath("/disks/frank.vhdx", 1)).To(BeAnExistingFile())
		Expect(engine.DiagnosticFilePath("/disks/frank.vhdx", 2)).To(BeAnExistingFile())
		Expect(engine.DiagnosticFilePath("/disks/frank.vhdx", 3)).ToNot(BeAnExistingFile())

		raw, readErr := os.ReadFile(engine.DiagnosticFilePath("/disks/frank.vhdx", 1))
		Expect(readErr).ToNot(HaveOccurred())
		Expect(string(raw)).To(ContainSubstring("the operation timed out"))
	})

	It("gives up after the attempt budget is spent", func() {
		backend := &flakyBackend{failures: 100}
		engine := newEngine(backend, 3)

		_, err := engine.Compact(context.Background(), "/disks/frank.vhdx")
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, ErrCompactionFailed)).To(BeTrue())
		Expect(backend.attempts).To(Equal(3))
	})

	It("stops between attempts when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		backend := &flakyBackend{failures: 100}
		_, err := newEngine(backend, 30).Compact(ctx, "/disks/frank.vhdx")
		Expect(err).To(HaveOccurred())
		Expect(backend.attempts).To(BeNumerically("<", 30))
	})

	It("namespaces diagnostic files per disk and attempt", func() {
		engine := newEngine(&flakyBackend{}, 3)

		pathA := engine.DiagnosticFilePath("/disks/frank.vhdx", 1)
		pathB := engine.DiagnosticFilePath("/disks/grace.vhdx", 1)
		pathC := engine.DiagnosticFilePath("/disks/frank.vhdx", 2)
		Expect(pathA).ToNot(Equal(pathB))
		Expect(pathA).ToNot(Equal(pathC))
	})
})

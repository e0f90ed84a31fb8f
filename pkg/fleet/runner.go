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

// Package fleet fans the per-disk shrink pipeline out over many disks
// with bounded parallelism and run-level gating.
package fleet

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vdiskops/diskshrink/internal/log"
	"github.com/vdiskops/diskshrink/pkg/shrink"
	"github.com/vdiskops/diskshrink/pkg/vdisk"
)

// ErrWindowClosed is returned when a run is attempted outside the
// configured maintenance window.
var ErrWindowClosed = errors.New("maintenance window is closed")

// DiskProcessor runs the shrink pipeline for one disk. *shrink.Processor
// satisfies this.
type DiskProcessor interface {
	Process(ctx context.Context, task vdisk.Task) shrink.Outcome
}

// RunReport aggregates one fleet run.
type RunReport struct {
	// Outcomes holds one record per processed disk, in completion order.
	Outcomes []shrink.Outcome
	// ByState counts outcomes per terminal state.
	ByState map[shrink.State]int
	// SpaceSavedGB is the total space reclaimed across the run.
	SpaceSavedGB float64
	// SkippedByBudget counts disks not processed because their 24-hour
	// pass budget was spent.
	SkippedByBudget int
	// Started is when the run began.
	Started time.Time
	// Duration is the run's wall time.
	Duration time.Duration
}

// Runner processes a batch of disks. Each disk is processed exactly once
// and failures stay contained to their disk: one bad image never aborts
// the rest of the batch.
type Runner struct {
	processor   DiskProcessor
	parallelism int
	window      *MaintenanceWindow
	budget      *BudgetTracker
	maxPasses   int
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithParallelism bounds how many disks are processed at once.
func WithParallelism(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.parallelism = n
		}
	}
}

// WithMaintenanceWindow refuses runs outside the given window.
func WithMaintenanceWindow(w *MaintenanceWindow) RunnerOption {
	return func(r *Runner) { r.window = w }
}

// WithBudget caps passes per disk per 24 hours using the given tracker.
func WithBudget(tracker *BudgetTracker, maxPassesPerDay int) RunnerOption {
	return func(r *Runner) {
		if tracker != nil && maxPassesPerDay > 0 {
			r.budget = tracker
			r.maxPasses = maxPassesPerDay
		}
	}
}

// NewRunner creates a Runner over the given processor. The default is
// sequential processing with no gating.
func NewRunner(processor DiskProcessor, opts ...RunnerOption) *Runner {
	r := &Runner{
		processor:   processor,
		parallelism: 1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes every task and returns the aggregate report. It returns
// ErrWindowClosed without touching any disk when a maintenance window is
// configured and closed. Context cancellation stops scheduling new disks;
// disks already in flight finish and are included in the report.
func (r *Runner) Run(ctx context.Context, tasks []vdisk.Task) (*RunReport, error) {
	logger := log.FromContext(ctx)

	report := &RunReport{
		ByState: make(map[shrink.State]int),
		Started: time.Now(),
	}

	if r.window != nil && !r.window.IsOpen(time.Now()) {
		next := r.window.Next(time.Now())
		logger.Info("run refused, maintenance window closed", "nextWindow", next)
		return report, ErrWindowClosed
	}

	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.parallelism)

	for _, task := range tasks {
		task := task
		if groupCtx.Err() != nil {
			break
		}

		if r.budget != nil && !r.budget.HasBudget(task.Path, r.maxPasses) {
			logger.Info("skipping disk, pass budget spent", "disk", task.Path)
			mu.Lock()
			report.SkippedByBudget++
			mu.Unlock()
			continue
		}

		group.Go(func() error {
			outcome := r.processor.Process(groupCtx, task)

			if r.budget != nil && outcome.State == shrink.StateSuccess {
				r.budget.RecordPass(task.Path)
			}

			mu.Lock()
			report.Outcomes = append(report.Outcomes, outcome)
			report.ByState[outcome.State]++
			report.SpaceSavedGB += outcome.SpaceSavedGB
			mu.Unlock()
			return nil
		})
	}

	// Workers never return errors; per-disk failures are outcomes.
	_ = group.Wait()

	report.Duration = time.Since(report.Started)

	logger.Info("fleet run completed",
		"disks", len(report.Outcomes),
		"skippedByBudget", report.SkippedByBudget,
		"spaceSavedGB", report.SpaceSavedGB,
		"duration", report.Duration)

	return report, nil
}

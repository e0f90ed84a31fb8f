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
	"context"
	"os"
	"time"

	"github.com/vdiskops/diskshrink/internal/log"
	"github.com/vdiskops/diskshrink/pkg/vdisk"
)

// Compactor shrinks a disk image file in place and returns its new byte
// length. *compaction.Engine satisfies this.
type Compactor interface {
	Compact(ctx context.Context, diskPath string) (int64, error)
}

// Processor runs the per-disk shrink workflow. It holds no per-disk
// state, so one Processor may be invoked concurrently for different
// disks; the OutcomeReporter is the only shared sink and serializes
// itself.
type Processor struct {
	mounter   vdisk.Mounter
	compactor Compactor
	reporter  OutcomeReporter
	config    *Config
	metrics   *Metrics

	now        func() time.Time
	removeFile func(path string) error
}

// ProcessorOption customizes a Processor.
type ProcessorOption func(*Processor)

// WithMetrics attaches a metrics bundle observed on every outcome.
func WithMetrics(m *Metrics) ProcessorOption {
	return func(p *Processor) { p.metrics = m }
}

// WithClock overrides the time source. This is intended for testing.
func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// WithRemoveFile overrides the file removal used by the deletion policy.
// This is intended for testing.
func WithRemoveFile(remove func(string) error) ProcessorOption {
	return func(p *Processor) {
		if remove != nil {
			p.removeFile = remove
		}
	}
}

// NewProcessor wires the shrink pipeline together.
func NewProcessor(
	mounter vdisk.Mounter,
	compactor Compactor,
	reporter OutcomeReporter,
	config *Config,
	opts ...ProcessorOption,
) *Processor {
	p := &Processor{
		mounter:    mounter,
		compactor:  compactor,
		reporter:   reporter,
		config:     config,
		now:        time.Now,
		removeFile: os.Remove,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs the full workflow for one disk. Every path, early or
// final, produces exactly one Outcome, reports it, and returns it to the
// caller.
func (p *Processor) Process(ctx context.Context, task vdisk.Task) Outcome {
	logger := log.FromContext(ctx).WithValues("disk", task.Path)
	ctx = log.IntoContext(ctx, logger)

	started := p.now()
	builder := NewOutcomeBuilder(task)

	outcome := p.run(ctx, logger, task, builder)

	logger.Info("disk processed",
		"state", outcome.State,
		"originalSizeGB", outcome.OriginalSizeGB,
		"finalSizeGB", outcome.FinalSizeGB,
		"spaceSavedGB", outcome.SpaceSavedGB)

	if p.metrics != nil {
		p.metrics.ObserveOutcome(outcome, time.Since(started))
	}
	if p.reporter != nil {
		p.reporter.Report(ctx, outcome)
	}
	return outcome
}

// run walks the state machine. It returns the terminal outcome; Process
// owns reporting so the "exactly one record" invariant lives in a single
// place.
func (p *Processor) run(
	ctx context.Context,
	logger log.Logger,
	task vdisk.Task,
	builder *OutcomeBuilder,
) Outcome {
	threshold := EvaluateThresholds(task, p.config, p.now())
	switch threshold.Decision {
	case DecisionSkip, DecisionIgnore:
		return builder.Unchanged(threshold.State)
	case DecisionDelete:
		if err := p.removeFile(task.Path); err != nil {
			logger.Warning("disk deletion failed", "error", err)
			return builder.Unchanged(StateDiskDeletionFailed)
		}
		logger.Info("disk deleted", "mostRecentUse", task.MostRecentUse())
		return builder.Deleted()
	}

	handle, err := p.mounter.Mount(ctx, task.Path)
	if err != nil {
		logger.Warning("mount failed", "error", err)
		return builder.Unchanged(StateFromError(err))
	}

	// Dismount must be attempted on every path that mounted, and a
	// dismount failure never overrides the outcome already determined.
	dismounted := false
	dismount := func() {
		if dismounted {
			return
		}
		dismounted = true
		if err := p.mounter.Dismount(ctx, handle); err != nil {
			logger.Warning("dismount failed", "error", err)
		}
	}
	defer dismount()

	if err := p.mounter.OptimizeVolume(ctx, handle); err != nil {
		logger.Warning("volume optimization failed", "error", err)
	}

	sizing, err := p.mounter.SupportedPartitionSize(ctx, handle)
	if err != nil {
		logger.Warning("partition size query failed", "error", err)
		return builder.Unchanged(StateNoPartitionInfo)
	}

	feasibility := AssessFeasibility(sizing, task.SizeBytes, p.config.GetRatioFreeSpace())
	if feasibility.Feasibility != FeasibilityShrinkable {
		logger.Debug("disk not shrinkable",
			"feasibility", feasibility.Feasibility,
			"sizeMin", sizing.SizeMin,
			"diskByteLength", task.SizeBytes)
		return builder.Unchanged(feasibility.State)
	}

	logger.Debug("disk is shrinkable",
		"sizeMin", sizing.SizeMin,
		"sizeMax", sizing.SizeMax,
		"freeRatio", feasibility.FreeRatio)

	// Compaction operates on the image file; it must be detached first.
	dismount()

	newLength, err := p.compactor.Compact(ctx, task.Path)
	if err != nil {
		logger.Warning("compaction failed", "error", err)
		return builder.Unchanged(StateDiskShrinkFailed)
	}

	return builder.Success(newLength)
}

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
	"math"
	"strconv"

	"github.com/vdiskops/diskshrink/pkg/vdisk"
)

// State is the terminal classification of one disk's processing.
type State string

const (
	// StateFileIsNotDiskFormat marks files whose extension is not a
	// recognized virtual disk container format.
	StateFileIsNotDiskFormat State = "FileIsNotDiskFormat"

	// StateDeleted marks disks removed by the age-based deletion policy.
	StateDeleted State = "Deleted"

	// StateDiskDeletionFailed marks disks the deletion policy selected
	// but whose removal failed.
	StateDiskDeletionFailed State = "DiskDeletionFailed"

	// StateIgnored marks disks below the configured minimum size.
	StateIgnored State = "Ignored"

	// StateNoPartitionInfo marks disks whose partition resize bounds
	// could not be queried.
	StateNoPartitionInfo State = "NoPartitionInfo"

	// StateSkippedAlreadyMinimum marks disks whose partition cannot
	// shrink below the current container size.
	StateSkippedAlreadyMinimum State = "SkippedAlreadyMinimum"

	// StateDiskShrinkFailed marks disks whose compaction failed after
	// exhausting every retry.
	StateDiskShrinkFailed State = "DiskShrinkFailed"

	// StateSuccess marks disks that were compacted.
	StateSuccess State = "Success"
)

// TooLittleFreeSpaceState builds the terminal state for disks below the
// configured free-space ratio, e.g. "LessThan5%FreeInsideDisk" for 0.05.
// The percentage is rounded to one decimal so float noise in ratio*100
// (0.07 -> 7.000000000000001) never leaks into the state text.
func TooLittleFreeSpaceState(ratioFreeSpace float64) State {
	percent := strconv.FormatFloat(math.Round(ratioFreeSpace*1000)/10, 'f', -1, 64)
	return State("LessThan" + percent + "%FreeInsideDisk")
}

// StateFromError passes a collaborator failure through as a terminal
// state. Mount failures use this: theirs is the only state whose text is
// not a fixed enum value.
func StateFromError(err error) State {
	return State(err.Error())
}

// Outcome is the record produced for each processed disk. It is the sole
// externally visible product of the pipeline and is never mutated after
// emission.
type Outcome struct {
	Name           string  `json:"name"`
	FullPath       string  `json:"fullPath"`
	State          State   `json:"state"`
	OriginalSizeGB float64 `json:"originalSizeGB"`
	FinalSizeGB    float64 `json:"finalSizeGB"`
	SpaceSavedGB   float64 `json:"spaceSavedGB"`
}

// OutcomeReporter appends outcome records to a shared sink.
// Implementations are best-effort: a sink failure is logged, never
// escalated, so that losing one audit record cannot mask the outcome
// already determined.
type OutcomeReporter interface {
	Report(ctx context.Context, outcome Outcome)
}

// OutcomeBuilder carries a disk's invariant fields (name, path, original
// size) so that every terminal branch can produce a complete Outcome
// without relying on ambient state. Build one per disk.
type OutcomeBuilder struct {
	name       string
	fullPath   string
	originalGB float64
}

// NewOutcomeBuilder creates a builder for the given task.
func NewOutcomeBuilder(task vdisk.Task) *OutcomeBuilder {
	return &OutcomeBuilder{
		name:       task.Name,
		fullPath:   task.Path,
		originalGB: task.SizeGB(),
	}
}

// Unchanged produces an Outcome for a disk whose size did not change:
// skips, ignores, and every failure that restores the original state.
func (b *OutcomeBuilder) Unchanged(state State) Outcome {
	return Outcome{
		Name:           b.name,
		FullPath:       b.fullPath,
		State:          state,
		OriginalSizeGB: b.originalGB,
		FinalSizeGB:    b.originalGB,
		SpaceSavedGB:   0,
	}
}

// Deleted produces the Outcome for a removed disk: the whole original
// size counts as reclaimed.
func (b *OutcomeBuilder) Deleted() Outcome {
	return Outcome{
		Name:           b.name,
		FullPath:       b.fullPath,
		State:          StateDeleted,
		OriginalSizeGB: b.originalGB,
		FinalSizeGB:    0,
		SpaceSavedGB:   b.originalGB,
	}
}

// Success produces the Outcome for a compacted disk from its
// post-compaction byte length.
func (b *OutcomeBuilder) Success(finalBytes int64) Outcome {
	finalGB := vdisk.BytesToGB(finalBytes)
	return Outcome{
		Name:           b.name,
		FullPath:       b.fullPath,
		State:          StateSuccess,
		OriginalSizeGB: b.originalGB,
		FinalSizeGB:    finalGB,
		SpaceSavedGB:   roundGB(b.originalGB - finalGB),
	}
}

func roundGB(gb float64) float64 {
	// Guard against float noise producing values like 6.999999999999999.
	return math.Round(gb*100) / 100
}

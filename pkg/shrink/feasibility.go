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
	"github.com/vdiskops/diskshrink/pkg/vdisk"
)

// Feasibility classifies whether a compaction pass is worth running.
type Feasibility string

const (
	// FeasibilityNotWorthShrinking means the partition cannot shrink
	// below the current container size at all.
	FeasibilityNotWorthShrinking Feasibility = "NotWorthShrinking"

	// FeasibilityTooLittleFreeSpace means the reclaimable fraction is
	// below the configured threshold.
	FeasibilityTooLittleFreeSpace Feasibility = "TooLittleFreeSpace"

	// FeasibilityShrinkable means compaction is expected to pay off.
	FeasibilityShrinkable Feasibility = "Shrinkable"
)

// FeasibilityResult is the outcome of the resize-bounds assessment.
// FreeRatio is the reclaimable fraction of the container, populated for
// every verdict that could compute it.
type FeasibilityResult struct {
	Feasibility Feasibility
	State       State
	FreeRatio   float64
}

// AssessFeasibility decides whether shrinking is worthwhile given the
// partition's resize bounds and the container's current byte length.
//
// The used fraction is measured against the container length rather than
// the partition maximum: the check exists to skip containers that already
// carry little slack, so existing container headroom is exactly what must
// drive the decision.
func AssessFeasibility(sizing vdisk.PartitionSizing, diskByteLength int64, ratioFreeSpace float64) FeasibilityResult {
	if diskByteLength <= 0 || sizing.SizeMin > diskByteLength {
		return FeasibilityResult{
			Feasibility: FeasibilityNotWorthShrinking,
			State:       StateSkippedAlreadyMinimum,
		}
	}

	usedFraction := float64(sizing.SizeMin) / float64(diskByteLength)
	freeRatio := 1 - usedFraction

	if usedFraction > 1-ratioFreeSpace {
		return FeasibilityResult{
			Feasibility: FeasibilityTooLittleFreeSpace,
			State:       TooLittleFreeSpaceState(ratioFreeSpace),
			FreeRatio:   freeRatio,
		}
	}

	return FeasibilityResult{
		Feasibility: FeasibilityShrinkable,
		FreeRatio:   freeRatio,
	}
}

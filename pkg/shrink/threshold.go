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
)

const bytesPerGB = 1 << 30

// Decision is the threshold evaluator's verdict for one disk.
type Decision string

const (
	// DecisionProceed continues into the mount-and-shrink path.
	DecisionProceed Decision = "Proceed"

	// DecisionDelete removes the disk under the age-based policy.
	DecisionDelete Decision = "Delete"

	// DecisionIgnore skips disks below the configured minimum size.
	DecisionIgnore Decision = "Ignore"

	// DecisionSkip skips files that are not disk images at all.
	DecisionSkip Decision = "Skip"
)

// ThresholdResult pairs a Decision with the terminal state it maps to.
// State is empty for DecisionProceed and DecisionDelete; deletion resolves
// to Deleted or DiskDeletionFailed only after the removal is attempted.
type ThresholdResult struct {
	Decision Decision
	State    State
}

// EvaluateThresholds classifies a disk against the configured thresholds.
// Pure over its inputs; now is injected so the age check is testable.
//
// The extension check runs first and is non-overridable. The deletion
// policy compares the later of last access and last write against the
// cutoff, because access time alone is unreliable for chained disks.
func EvaluateThresholds(task vdisk.Task, cfg *Config, now time.Time) ThresholdResult {
	if !task.IsDiskFormat() {
		return ThresholdResult{Decision: DecisionSkip, State: StateFileIsNotDiskFormat}
	}

	if cfg.IsDeletionEnabled() {
		cutoff := now.AddDate(0, 0, -cfg.DeleteOlderThanDays)
		if task.MostRecentUse().Before(cutoff) {
			return ThresholdResult{Decision: DecisionDelete}
		}
	}

	// Compared on the exact byte length: the display size rounds to two
	// decimals and would let a disk just under the threshold slip through.
	if cfg.IsIgnoreEnabled() && float64(task.SizeBytes) < float64(cfg.IgnoreLessThanGB)*bytesPerGB {
		return ThresholdResult{Decision: DecisionIgnore, State: StateIgnored}
	}

	return ThresholdResult{Decision: DecisionProceed}
}

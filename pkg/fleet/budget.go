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
	"sync"
	"time"
)

// passWindow is the rolling interval over which per-disk passes count
// against the budget.
const passWindow = 24 * time.Hour

// BudgetTracker caps how often a single disk may be shrunk. Schedulers
// that re-run the tool aggressively would otherwise compact the same
// disk over and over for marginal gain; the tracker makes each pass
// spend budget that only returns as earlier passes age out of the
// rolling window.
type BudgetTracker struct {
	mu     sync.Mutex
	passes map[string][]time.Time

	now func() time.Time
}

// NewBudgetTracker creates an empty tracker.
func NewBudgetTracker() *BudgetTracker {
	return &BudgetTracker{
		passes: make(map[string][]time.Time),
		now:    time.Now,
	}
}

// recentPasses drops aged-out entries for the disk and returns what is
// left. Callers must hold mu.
func (bt *BudgetTracker) recentPasses(diskPath string) []time.Time {
	cutoff := bt.now().Add(-passWindow)

	kept := bt.passes[diskPath][:0]
	for _, at := range bt.passes[diskPath] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	bt.passes[diskPath] = kept
	return kept
}

// HasBudget reports whether the disk may take another shrink pass under
// the given daily cap.
func (bt *BudgetTracker) HasBudget(diskPath string, maxPassesPerDay int) bool {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	return len(bt.recentPasses(diskPath)) < maxPassesPerDay
}

// RecordPass spends one unit of the disk's budget.
func (bt *BudgetTracker) RecordPass(diskPath string) {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	bt.passes[diskPath] = append(bt.recentPasses(diskPath), bt.now())
}

// RemainingBudget returns how many passes the disk may still take under
// the given daily cap, never below zero.
func (bt *BudgetTracker) RemainingBudget(diskPath string, maxPassesPerDay int) int {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	if remaining := maxPassesPerDay - len(bt.recentPasses(diskPath)); remaining > 0 {
		return remaining
	}
	return 0
}

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
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/cheynewallace/tabby"
	"github.com/dustin/go-humanize"
	"github.com/logrusorgru/aurora/v4"

	"github.com/vdiskops/diskshrink/pkg/fleet"
	"github.com/vdiskops/diskshrink/pkg/shrink"
)

func printJSON(runReport *fleet.RunReport) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(runReport)
}

func printText(runReport *fleet.RunReport, csvPath string, passThru bool) {
	if passThru {
		printOutcomeTable(runReport.Outcomes)
	}

	fmt.Println(aurora.Bold("Run summary:"))
	fmt.Printf("  Disks processed:  %d\n", len(runReport.Outcomes))
	if runReport.SkippedByBudget > 0 {
		fmt.Printf("  Skipped (budget): %d\n", runReport.SkippedByBudget)
	}
	fmt.Printf("  Space reclaimed:  %s\n", humanize.IBytes(uint64(runReport.SpaceSavedGB*1024*1024*1024)))
	fmt.Printf("  Duration:         %s\n", runReport.Duration.Round(time.Millisecond))
	fmt.Printf("  Audit file:       %s\n", csvPath)
	fmt.Println()

	printStateCounts(runReport.ByState)
}

func printOutcomeTable(outcomes []shrink.Outcome) {
	if len(outcomes) == 0 {
		return
	}

	t := tabby.New()
	t.AddHeader("NAME", "STATE", "ORIGINAL GB", "FINAL GB", "SAVED GB")
	for _, outcome := range outcomes {
		t.AddLine(
			outcome.Name,
			colorState(outcome.State),
			fmt.Sprintf("%.2f", outcome.OriginalSizeGB),
			fmt.Sprintf("%.2f", outcome.FinalSizeGB),
			fmt.Sprintf("%.2f", outcome.SpaceSavedGB),
		)
	}
	t.Print()
	fmt.Println()
}

func printStateCounts(byState map[shrink.State]int) {
	if len(byState) == 0 {
		return
	}

	states := make([]string, 0, len(byState))
	for state := range byState {
		states = append(states, string(state))
	}
	sort.Strings(states)

	fmt.Println(aurora.Bold("Outcomes by state:"))
	for _, state := range states {
		fmt.Printf("  %-28s %d\n", colorState(shrink.State(state)), byState[shrink.State(state)])
	}
}

func colorState(state shrink.State) string {
	switch state {
	case shrink.StateSuccess, shrink.StateDeleted:
		return aurora.Green(string(state)).String()
	case shrink.StateDiskShrinkFailed, shrink.StateDiskDeletionFailed, shrink.StateNoPartitionInfo:
		return aurora.Red(string(state)).String()
	case shrink.StateIgnored, shrink.StateFileIsNotDiskFormat, shrink.StateSkippedAlreadyMinimum:
		return aurora.Yellow(string(state)).String()
	default:
		return string(state)
	}
}

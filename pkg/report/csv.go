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

// Package report persists per-disk outcome records to an audit sink.
package report

import (
	"context"
	"encoding/csv"
	"os"
	"strconv"
	"sync"

	"github.com/vdiskops/diskshrink/internal/log"
	"github.com/vdiskops/diskshrink/pkg/shrink"
)

// csvHeader is the column layout of the audit file, one row per disk.
var csvHeader = []string{"Name", "FullPath", "State", "OriginalSizeGB", "FinalSizeGB", "SpaceSavedGB"}

// CSVReporter appends outcome rows to a CSV file. Appends are serialized
// with a mutex so concurrent disk processing cannot interleave rows.
// Writes are best-effort: a sink failure is logged and swallowed, because
// losing an audit row must not mask the outcome already determined.
type CSVReporter struct {
	mu   sync.Mutex
	path string
}

// NewCSVReporter creates a reporter appending to the file at path. The
// file and its header row are created lazily on the first report.
func NewCSVReporter(path string) *CSVReporter {
	return &CSVReporter{path: path}
}

// Report implements shrink.OutcomeReporter.
func (r *CSVReporter) Report(ctx context.Context, outcome shrink.Outcome) {
	logger := log.FromContext(ctx).WithValues("sink", r.path)

	r.mu.Lock()
	defer r.mu.Unlock()

	writeHeader := false
	if info, err := os.Stat(r.path); err != nil || info.Size() == 0 {
		writeHeader = true
	}

	file, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logger.Warning("could not open outcome sink", "error", err)
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Warning("could not close outcome sink", "error", err)
		}
	}()

	writer := csv.NewWriter(file)
	if writeHeader {
		if err := writer.Write(csvHeader); err != nil {
			logger.Warning("could not write sink header", "error", err)
			return
		}
	}
	if err := writer.Write(record(outcome)); err != nil {
		logger.Warning("could not write outcome row", "disk", outcome.FullPath, "error", err)
		return
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		logger.Warning("could not flush outcome row", "disk", outcome.FullPath, "error", err)
	}
}

func record(outcome shrink.Outcome) []string {
	return []string{
		outcome.Name,
		outcome.FullPath,
		string(outcome.State),
		formatGB(outcome.OriginalSizeGB),
		formatGB(outcome.FinalSizeGB),
		formatGB(outcome.SpaceSavedGB),
	}
}

func formatGB(gb float64) string {
	return strconv.FormatFloat(gb, 'f', 2, 64)
}

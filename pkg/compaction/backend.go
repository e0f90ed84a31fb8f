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

// Package compaction rewrites virtual disk images to reclaim deallocated
// blocks, driving an external tool with bounded retries.
package compaction

import (
	"context"
	"fmt"
	"strings"
)

// Backend performs one compaction pass over a disk image and returns the
// image's new byte length. Implementations may drive an external tool or
// a native API; the retry engine does not care which.
type Backend interface {
	Compact(ctx context.Context, diskPath string) (int64, error)
}

// Error is a failed compaction attempt. It carries the raw tool output so
// the retry engine can persist it for postmortem.
type Error struct {
	// DiskPath is the disk image the attempt targeted.
	DiskPath string
	// Output is the tool's unstructured output, one line per entry.
	Output []string
	// Err is the underlying execution error, nil when the tool ran but
	// did not report success.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("compacting %s: %v", e.DiskPath, e.Err)
	}
	return fmt.Sprintf("compacting %s: tool did not report success", e.DiskPath)
}

// Unwrap exposes the underlying execution error.
func (e *Error) Unwrap() error {
	return e.Err
}

// OutputText returns the captured tool output as a single string.
func (e *Error) OutputText() string {
	return strings.Join(e.Output, "\n")
}

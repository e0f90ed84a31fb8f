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

package vdisk

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/vdiskops/diskshrink/internal/log"
)

// Discover walks root and returns a Task for every regular file found.
// Files that are not recognized disk formats are included; classifying
// them is the shrink pipeline's job, so they still produce an audit
// record. When recurse is false only the top level of root is scanned.
// Unreadable entries are logged and skipped rather than failing the scan.
func Discover(ctx context.Context, root string, recurse bool) ([]Task, error) {
	logger := log.FromContext(ctx).WithValues("root", root)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving scan root %s: %w", root, err)
	}
	if info, err := os.Stat(absRoot); err != nil {
		return nil, fmt.Errorf("stat scan root %s: %w", absRoot, err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("scan root %s is not a directory", absRoot)
	}

	var tasks []Task
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if walkErr != nil {
			logger.Warning("skipping unreadable entry", "path", path, "error", walkErr)
			return nil
		}
		if d.IsDir() {
			if !recurse && path != absRoot {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logger.Warning("skipping file without metadata", "path", path, "error", err)
			return nil
		}
		tasks = append(tasks, NewTask(path, info))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", absRoot, err)
	}

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Path < tasks[j].Path })

	logger.Debug("disk discovery completed", "candidates", len(tasks))
	return tasks, nil
}

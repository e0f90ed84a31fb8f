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
	"os/exec"
	"strconv"
	"strings"

	"github.com/vdiskops/diskshrink/internal/log"
)

// DefaultMountTool is the disk-image utility the ExecMounter drives when
// no other tool is configured.
const DefaultMountTool = "vdiskctl"

// RunFunc executes an external command and returns its combined output
// split into lines. It is exposed so tests can substitute a fake runner.
type RunFunc func(ctx context.Context, name string, args ...string) ([]string, error)

// defaultRun is the production command runner.
func defaultRun(ctx context.Context, name string, args ...string) ([]string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	lines := splitLines(string(out))
	if err != nil {
		return lines, fmt.Errorf("running %s %s: %w", name, strings.Join(args, " "), err)
	}
	return lines, nil
}

// ExecMounter implements Mounter by driving an external disk-image
// utility. The utility is expected to answer attach/detach/sizing/optimize
// subcommands with key=value output lines.
type ExecMounter struct {
	// Tool is the executable to invoke. Defaults to DefaultMountTool.
	Tool string

	run    RunFunc
	statfs StatfsFunc
}

// NewExecMounter creates an ExecMounter for the given tool. An empty tool
// selects DefaultMountTool.
func NewExecMounter(tool string) *ExecMounter {
	if tool == "" {
		tool = DefaultMountTool
	}
	return &ExecMounter{
		Tool: tool,
		run:  defaultRun,
	}
}

// NewExecMounterWithRun creates an ExecMounter with a custom command
// runner and statfs function. This is intended for testing.
func NewExecMounterWithRun(tool string, run RunFunc, statfs StatfsFunc) *ExecMounter {
	m := NewExecMounter(tool)
	m.run = run
	m.statfs = statfs
	return m
}

// Mount attaches the disk image and returns a handle to the mounted
// volume. The underlying tool fails when the image is already attached
// elsewhere, which is what guarantees mutual exclusion per disk.
func (m *ExecMounter) Mount(ctx context.Context, diskPath string) (*Handle, error) {
	logger := log.FromContext(ctx).WithValues("disk", diskPath)

	out, err := m.run(ctx, m.Tool, "attach", diskPath)
	if err != nil {
		return nil, fmt.Errorf("mounting %s: %w", diskPath, err)
	}

	mountPoint, ok := lookupValue(out, "mountpoint")
	if !ok {
		return nil, fmt.Errorf("mounting %s: tool reported no mountpoint", diskPath)
	}

	handle := &Handle{DiskPath: diskPath, MountPoint: mountPoint}

	if stats, err := volumeStats(m.statfs, mountPoint); err == nil {
		logger.Debug("volume mounted",
			"mountPoint", mountPoint,
			"totalBytes", stats.TotalBytes,
			"usedBytes", stats.UsedBytes,
			"percentUsed", stats.PercentUsed)
	} else {
		logger.Debug("volume mounted", "mountPoint", mountPoint, "statsError", err)
	}

	return handle, nil
}

// Dismount detaches a previously mounted disk image. Calling it again on
// the same handle is a no-op.
func (m *ExecMounter) Dismount(ctx context.Context, handle *Handle) error {
	if handle == nil || handle.released {
		return nil
	}
	handle.released = true

	if _, err := m.run(ctx, m.Tool, "detach", handle.DiskPath); err != nil {
		return fmt.Errorf("dismounting %s: %w", handle.DiskPath, err)
	}
	return nil
}

// SupportedPartitionSize queries the resize bounds of the image's data
// partition.
func (m *ExecMounter) SupportedPartitionSize(ctx context.Context, handle *Handle) (PartitionSizing, error) {
	if handle == nil || handle.released {
		return PartitionSizing{}, fmt.Errorf("partition size query on released handle")
	}

	out, err := m.run(ctx, m.Tool, "sizing", handle.DiskPath)
	if err != nil {
		return PartitionSizing{}, fmt.Errorf("querying partition size for %s: %w", handle.DiskPath, err)
	}

	sizeMin, err := lookupInt(out, "sizemin")
	if err != nil {
		return PartitionSizing{}, fmt.Errorf("querying partition size for %s: %w", handle.DiskPath, err)
	}
	sizeMax, err := lookupInt(out, "sizemax")
	if err != nil {
		return PartitionSizing{}, fmt.Errorf("querying partition size for %s: %w", handle.DiskPath, err)
	}

	return PartitionSizing{SizeMin: sizeMin, SizeMax: sizeMax}, nil
}

// OptimizeVolume runs an in-place optimization of the mounted volume so
// the following compaction can reclaim as much space as possible.
func (m *ExecMounter) OptimizeVolume(ctx context.Context, handle *Handle) error {
	if handle == nil || handle.released {
		return fmt.Errorf("volume optimization on released handle")
	}

	if _, err := m.run(ctx, m.Tool, "optimize", handle.MountPoint); err != nil {
		return fmt.Errorf("optimizing volume %s: %w", handle.MountPoint, err)
	}
	return nil
}

func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// lookupValue scans key=value output lines for the given key.
func lookupValue(lines []string, key string) (string, bool) {
	prefix := key + "="
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), prefix) {
			return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), prefix)), true
		}
	}
	return "", false
}

func lookupInt(lines []string, key string) (int64, error) {
	value, ok := lookupValue(lines, key)
	if !ok {
		return 0, fmt.Errorf("tool output missing %s", key)
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s value %q: %w", key, value, err)
	}
	return n, nil
}

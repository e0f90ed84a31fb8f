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

//go:build linux || darwin

package vdisk

import (
	"fmt"
	"syscall"
)

// VolumeStats contains filesystem usage statistics for a mounted volume,
// gathered via the statfs syscall.
type VolumeStats struct {
	// TotalBytes is the total capacity of the volume in bytes.
	TotalBytes uint64
	// UsedBytes is the number of bytes currently in use.
	UsedBytes uint64
	// AvailableBytes is the number of bytes available for use.
	AvailableBytes uint64
	// PercentUsed is the percentage of the volume in use (0-100).
	PercentUsed float64
}

// StatfsFunc is the function signature for statfs system calls.
// This is exposed for testing purposes to allow mocking.
type StatfsFunc func(path string, stat *syscall.Statfs_t) error

// defaultStatfs is the production statfs implementation.
func defaultStatfs(path string, stat *syscall.Statfs_t) error {
	return syscall.Statfs(path, stat)
}

// volumeStats probes the filesystem at mountPath using the supplied
// statfs function.
func volumeStats(statfsFunc StatfsFunc, mountPath string) (*VolumeStats, error) {
	if statfsFunc == nil {
		statfsFunc = defaultStatfs
	}

	var stat syscall.Statfs_t
	if err := statfsFunc(mountPath, &stat); err != nil {
		return nil, fmt.Errorf("statfs failed for path %s: %w", mountPath, err)
	}

	blockSize := uint64(stat.Bsize)
	total := stat.Blocks * blockSize
	free := stat.Bfree * blockSize
	available := stat.Bavail * blockSize
	used := total - free

	var percentUsed float64
	if total > 0 {
		percentUsed = float64(used) / float64(total) * 100
	}

	return &VolumeStats{
		TotalBytes:     total,
		UsedBytes:      used,
		AvailableBytes: available,
		PercentUsed:    percentUsed,
	}, nil
}

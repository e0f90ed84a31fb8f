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
)

// PartitionSizing holds the resize bounds of a disk's primary data
// partition: the smallest size its live data permits and the largest size
// it could be grown back to. Computed once per disk and read-only
// afterward.
type PartitionSizing struct {
	// SizeMin is the smallest byte size the partition can shrink to
	// without data loss.
	SizeMin int64
	// SizeMax is the byte size the partition could be grown back to.
	SizeMax int64
}

// Handle represents a mounted disk image. It is created by Mounter.Mount
// and consumed by the other Mounter operations.
type Handle struct {
	// DiskPath is the path of the mounted disk image file.
	DiskPath string
	// MountPoint is the filesystem path where the image's data partition
	// is accessible.
	MountPoint string

	released bool
}

// Released reports whether the handle has already been dismounted.
func (h *Handle) Released() bool {
	return h != nil && h.released
}

// Mounter attaches disk image files as filesystem volumes. Mount must
// fail distinctly when the image is already in use elsewhere; it is the
// mutual-exclusion point preventing two invocations from compacting the
// same file. Dismount must be idempotent and must not fail on a handle
// that was already released.
type Mounter interface {
	Mount(ctx context.Context, diskPath string) (*Handle, error)
	Dismount(ctx context.Context, handle *Handle) error
	SupportedPartitionSize(ctx context.Context, handle *Handle) (PartitionSizing, error)
	OptimizeVolume(ctx context.Context, handle *Handle) error
}

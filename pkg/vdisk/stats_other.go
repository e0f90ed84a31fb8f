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

//go:build !linux && !darwin

package vdisk

import "errors"

// VolumeStats contains filesystem usage statistics for a mounted volume.
type VolumeStats struct {
	TotalBytes     uint64
	UsedBytes      uint64
	AvailableBytes uint64
	PercentUsed    float64
}

// StatfsFunc is a placeholder on platforms without statfs support.
type StatfsFunc func(path string, stat any) error

var errStatsUnsupported = errors.New("volume statistics are not supported on this platform")

func volumeStats(_ StatfsFunc, _ string) (*VolumeStats, error) {
	return nil, errStatsUnsupported
}

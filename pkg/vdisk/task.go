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

// Package vdisk models virtual disk image files and the operations needed
// to mount and inspect them.
package vdisk

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const gigabyte = 1024 * 1024 * 1024

// recognizedExtensions lists the virtual disk container formats the tool
// can operate on. Keys are lowercase and include the leading dot.
var recognizedExtensions = map[string]bool{
	".vhd":  true,
	".vhdx": true,
}

// Task is one disk image file to process. It is an immutable snapshot of
// the file's metadata at discovery time; the shrink pipeline never mutates
// it.
type Task struct {
	// Path is the absolute path of the disk image file.
	Path string
	// Name is the base name of the file, including its extension.
	Name string
	// SizeBytes is the byte length of the container file.
	SizeBytes int64
	// LastAccess is the file's last access timestamp.
	LastAccess time.Time
	// LastWrite is the file's last modification timestamp.
	LastWrite time.Time
	// Extension is the lowercase filename extension, leading dot included.
	Extension string
}

// NewTask builds a Task from a path and its FileInfo.
func NewTask(path string, info os.FileInfo) Task {
	return Task{
		Path:       path,
		Name:       info.Name(),
		SizeBytes:  info.Size(),
		LastAccess: accessTime(info),
		LastWrite:  info.ModTime(),
		Extension:  strings.ToLower(filepath.Ext(info.Name())),
	}
}

// IsDiskFormat reports whether the task's extension is a recognized
// virtual disk container format.
func (t Task) IsDiskFormat() bool {
	return recognizedExtensions[t.Extension]
}

// SizeGB returns the container size in gigabytes, rounded to two decimals.
func (t Task) SizeGB() float64 {
	return BytesToGB(t.SizeBytes)
}

// Stem returns the file name without its extension. It is used to
// namespace per-disk temporary files.
func (t Task) Stem() string {
	return strings.TrimSuffix(t.Name, filepath.Ext(t.Name))
}

// MostRecentUse returns the later of the last access and last write
// timestamps. Access time alone is unreliable when disks are attached
// through differencing chains, so both are considered.
func (t Task) MostRecentUse() time.Time {
	if t.LastAccess.After(t.LastWrite) {
		return t.LastAccess
	}
	return t.LastWrite
}

// BytesToGB converts a byte count to gigabytes rounded to two decimals.
func BytesToGB(bytes int64) float64 {
	return math.Round(float64(bytes)/gigabyte*100) / 100
}

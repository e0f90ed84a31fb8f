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

package compaction

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const (
	// DefaultScriptTool is the external disk-management tool the script
	// backend drives.
	DefaultScriptTool = "diskpart"

	// successSentence is the exact line the tool emits when compaction
	// succeeded. Its presence in the output is the only success signal;
	// everything else the tool prints is noise.
	successSentence = "DiskPart successfully compacted the virtual disk file."
)

// RunFunc executes the external tool and returns its combined output as
// lines. Exposed for tests.
type RunFunc func(ctx context.Context, name string, args ...string) ([]string, error)

func defaultRun(ctx context.Context, name string, args ...string) ([]string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	var lines []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines, err
}

// ScriptBackend compacts disk images by feeding a textual control script
// to a diskpart-style tool: select the image, attach it read-only,
// compact, detach. The control file is named from the disk identity so
// concurrent invocations on different disks never collide, and it is
// removed before Compact returns on every path.
type ScriptBackend struct {
	// Tool is the executable to drive. Defaults to DefaultScriptTool.
	Tool string
	// WorkDir is where control scripts are written. Defaults to the
	// system temporary directory.
	WorkDir string

	run      RunFunc
	fileSize func(path string) (int64, error)
}

// NewScriptBackend creates a ScriptBackend with production defaults.
func NewScriptBackend(tool, workDir string) *ScriptBackend {
	if tool == "" {
		tool = DefaultScriptTool
	}
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &ScriptBackend{
		Tool:    tool,
		WorkDir: workDir,
		run:     defaultRun,
		fileSize: func(path string) (int64, error) {
			info, err := os.Stat(path)
			if err != nil {
				return 0, err
			}
			return info.Size(), nil
		},
	}
}

// NewScriptBackendWithRun creates a ScriptBackend with a custom command
// runner and file-size function. This is intended for testing.
func NewScriptBackendWithRun(tool, workDir string, run RunFunc, fileSize func(string) (int64, error)) *ScriptBackend {
	b := NewScriptBackend(tool, workDir)
	if run != nil {
		b.run = run
	}
	if fileSize != nil {
		b.fileSize = fileSize
	}
	return b
}

// Compact runs one compaction pass and returns the image's new byte
// length. A run whose output lacks the success sentence is a failure even
// when the tool exits zero.
func (b *ScriptBackend) Compact(ctx context.Context, diskPath string) (int64, error) {
	controlPath := b.ControlFilePath(diskPath)
	if err := os.WriteFile(controlPath, []byte(ControlScript(diskPath)), 0o600); err != nil {
		return 0, fmt.Errorf("writing control script %s: %w", controlPath, err)
	}
	defer func() {
		_ = os.Remove(controlPath)
	}()

	output, runErr := b.run(ctx, b.Tool, "/s", controlPath)
	if runErr != nil {
		return 0, &Error{DiskPath: diskPath, Output: output, Err: runErr}
	}
	if !containsSuccessSentence(output) {
		return 0, &Error{DiskPath: diskPath, Output: output}
	}

	newLength, err := b.fileSize(diskPath)
	if err != nil {
		return 0, fmt.Errorf("reading compacted size of %s: %w", diskPath, err)
	}
	return newLength, nil
}

// ControlFilePath returns the per-disk control script location.
func (b *ScriptBackend) ControlFilePath(diskPath string) string {
	stem := strings.TrimSuffix(filepath.Base(diskPath), filepath.Ext(diskPath))
	return filepath.Join(b.WorkDir, fmt.Sprintf("diskshrink-%s-control.txt", stem))
}

// ControlScript builds the command sequence for one disk image.
func ControlScript(diskPath string) string {
	return strings.Join([]string{
		fmt.Sprintf("select vdisk file=%q", diskPath),
		"attach vdisk readonly",
		"compact vdisk",
		"detach vdisk",
		"exit",
	}, "\n") + "\n"
}

func containsSuccessSentence(output []string) bool {
	for _, line := range output {
		if strings.TrimSpace(line) == successSentence {
			return true
		}
	}
	return false
}

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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	retry "github.com/avast/retry-go/v5"

	"github.com/vdiskops/diskshrink/internal/log"
)

// ErrCompactionFailed marks a disk whose compaction failed on every
// attempt.
var ErrCompactionFailed = errors.New("compaction failed after exhausting retries")

const (
	// DefaultMaxRetries bounds compaction attempts per disk.
	DefaultMaxRetries = 30

	// DefaultBackoff is the fixed delay between attempts.
	DefaultBackoff = time.Second
)

// Engine drives a Backend with bounded retries. The external tool is
// known to fail intermittently under contention without being truly
// broken; a fixed backoff between a bounded number of attempts absorbs
// that without blocking forever. Failed attempts leave a diagnostic file
// per attempt for postmortem.
type Engine struct {
	backend       Backend
	maxRetries    int
	backoff       time.Duration
	diagnosticDir string
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithMaxRetries bounds the number of compaction attempts.
func WithMaxRetries(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxRetries = n
		}
	}
}

// WithBackoff sets the fixed delay between attempts.
func WithBackoff(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.backoff = d
		}
	}
}

// WithDiagnosticDir sets where failed-attempt output is persisted.
func WithDiagnosticDir(dir string) EngineOption {
	return func(e *Engine) {
		if dir != "" {
			e.diagnosticDir = dir
		}
	}
}

// NewEngine creates an Engine over the given backend.
func NewEngine(backend Backend, opts ...EngineOption) *Engine {
	e := &Engine{
		backend:       backend,
		maxRetries:    DefaultMaxRetries,
		backoff:       DefaultBackoff,
		diagnosticDir: os.TempDir(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compact retries the backend until it succeeds or the attempt budget is
// spent, sleeping the configured backoff between attempts. On success it
// returns the disk's new byte length. On exhaustion it returns an error
// wrapping ErrCompactionFailed. Cancelling ctx stops the loop between
// attempts.
func (e *Engine) Compact(ctx context.Context, diskPath string) (int64, error) {
	logger := log.FromContext(ctx).WithValues("disk", diskPath)

	attempt := 0
	newLength, err := retry.NewWithData[int64](
		retry.Context(ctx),
		retry.Attempts(uint(e.maxRetries)),
		retry.Delay(e.backoff),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	).Do(func() (int64, error) {
		attempt++
		length, compactErr := e.backend.Compact(ctx, diskPath)
		if compactErr != nil {
			logger.Warning("compaction attempt failed",
				"attempt", attempt,
				"maxRetries", e.maxRetries,
				"error", compactErr)
			e.persistDiagnostics(logger, diskPath, attempt, compactErr)
			return 0, compactErr
		}
		return length, nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCompactionFailed, err)
	}

	logger.Info("disk compacted", "attempts", attempt, "newLength", newLength)
	return newLength, nil
}

// persistDiagnostics writes a failed attempt's tool output to a uniquely
// named file. Best-effort: a write failure is logged and swallowed.
func (e *Engine) persistDiagnostics(logger log.Logger, diskPath string, attempt int, compactErr error) {
	var cerr *Error
	if !errors.As(compactErr, &cerr) || len(cerr.Output) == 0 {
		return
	}

	path := e.DiagnosticFilePath(diskPath, attempt)
	if err := os.WriteFile(path, []byte(cerr.OutputText()+"\n"), 0o600); err != nil {
		logger.Warning("could not persist compaction diagnostics", "path", path, "error", err)
		return
	}
	logger.Debug("compaction diagnostics written", "path", path, "attempt", attempt)
}

// DiagnosticFilePath returns where a given attempt's output is persisted.
// The name embeds the disk identity and attempt index so concurrent runs
// on different disks never collide.
func (e *Engine) DiagnosticFilePath(diskPath string, attempt int) string {
	stem := strings.TrimSuffix(filepath.Base(diskPath), filepath.Ext(diskPath))
	return filepath.Join(e.diagnosticDir, fmt.Sprintf("diskshrink-%s-attempt%d.log", stem, attempt))
}

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

// Package shrink implements the per-disk shrink decision and execution
// pipeline: classifying a disk, computing safe resize bounds, driving the
// compaction engine, and producing exactly one outcome record per disk.
package shrink

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultRatioFreeSpace is the minimum fraction of the container that
	// must be reclaimable free space to justify a compaction pass.
	DefaultRatioFreeSpace = 0.05

	// DefaultMaxCompactionRetries is the default bound on compaction
	// attempts per disk.
	DefaultMaxCompactionRetries = 30

	// DefaultRetryBackoffSeconds is the default fixed delay between
	// compaction attempts.
	DefaultRetryBackoffSeconds = 1
)

// Config holds the recognized shrink options. The zero value selects all
// defaults; optional thresholds are disabled when zero.
type Config struct {
	// DeleteOlderThanDays deletes disks whose most recent use is older
	// than this many days. Zero disables deletion.
	DeleteOlderThanDays int `yaml:"deleteOlderThanDays"`

	// IgnoreLessThanGB skips disks smaller than this many gigabytes.
	// Zero disables the check.
	IgnoreLessThanGB int `yaml:"ignoreLessThanGB"`

	// RatioFreeSpace is the minimum reclaimable fraction required to
	// shrink. Zero selects DefaultRatioFreeSpace.
	RatioFreeSpace float64 `yaml:"ratioFreeSpace"`

	// MaxCompactionRetries bounds compaction attempts per disk. Zero
	// selects DefaultMaxCompactionRetries.
	MaxCompactionRetries int `yaml:"maxCompactionRetries"`

	// RetryBackoffSeconds is the fixed delay between compaction attempts.
	// Zero selects DefaultRetryBackoffSeconds.
	RetryBackoffSeconds int `yaml:"retryBackoffSeconds"`
}

// LoadConfig reads a Config from a YAML file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks that every configured option is within its legal
// range. All violations are reported together rather than one at a time.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}

	var err error
	if c.DeleteOlderThanDays < 0 {
		err = multierr.Append(err,
			fmt.Errorf("deleteOlderThanDays must not be negative, got %d", c.DeleteOlderThanDays))
	}
	if c.IgnoreLessThanGB < 0 {
		err = multierr.Append(err,
			fmt.Errorf("ignoreLessThanGB must not be negative, got %d", c.IgnoreLessThanGB))
	}
	if c.RatioFreeSpace < 0 || c.RatioFreeSpace >= 1 {
		err = multierr.Append(err,
			fmt.Errorf("ratioFreeSpace must be in [0,1), got %g", c.RatioFreeSpace))
	}
	if c.MaxCompactionRetries < 0 {
		err = multierr.Append(err,
			fmt.Errorf("maxCompactionRetries must not be negative, got %d", c.MaxCompactionRetries))
	}
	if c.RetryBackoffSeconds < 0 {
		err = multierr.Append(err,
			fmt.Errorf("retryBackoffSeconds must not be negative, got %d", c.RetryBackoffSeconds))
	}
	return err
}

// GetRatioFreeSpace returns the configured free-space ratio or the default.
func (c *Config) GetRatioFreeSpace() float64 {
	if c == nil || c.RatioFreeSpace <= 0 || c.RatioFreeSpace >= 1 {
		return DefaultRatioFreeSpace
	}
	return c.RatioFreeSpace
}

// GetMaxCompactionRetries returns the configured retry bound or the default.
func (c *Config) GetMaxCompactionRetries() int {
	if c == nil || c.MaxCompactionRetries <= 0 {
		return DefaultMaxCompactionRetries
	}
	return c.MaxCompactionRetries
}

// GetRetryBackoff returns the configured backoff duration or the default.
func (c *Config) GetRetryBackoff() time.Duration {
	if c == nil || c.RetryBackoffSeconds <= 0 {
		return DefaultRetryBackoffSeconds * time.Second
	}
	return time.Duration(c.RetryBackoffSeconds) * time.Second
}

// IsDeletionEnabled reports whether age-based deletion is configured.
func (c *Config) IsDeletionEnabled() bool {
	return c != nil && c.DeleteOlderThanDays > 0
}

// IsIgnoreEnabled reports whether the minimum-size check is configured.
func (c *Config) IsIgnoreEnabled() bool {
	return c != nil && c.IgnoreLessThanGB > 0
}

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

package fleet

import (
	"time"

	"github.com/robfig/cron"
)

var (
	// DefaultMaintenanceSchedule is the default cron schedule for
	// maintenance windows, in the 6-field format
	// "second minute hour day-of-month month day-of-week".
	DefaultMaintenanceSchedule = "0 0 3 * * *"

	// DefaultMaintenanceDuration is the default duration of maintenance
	// windows.
	DefaultMaintenanceDuration = 2 * time.Hour

	// cronParser parses maintenance window schedules using the 6-field
	// cron format.
	cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
)

// MaintenanceWindow restricts fleet runs to a recurring time window.
// A nil window means runs are always allowed.
type MaintenanceWindow struct {
	// Schedule is a 6-field cron expression marking window starts.
	// Empty selects DefaultMaintenanceSchedule.
	Schedule string `yaml:"schedule"`

	// Duration is how long each window stays open, as a Go duration
	// string. Empty selects DefaultMaintenanceDuration.
	Duration string `yaml:"duration"`

	// Timezone is an IANA timezone name. Empty means UTC.
	Timezone string `yaml:"timezone"`
}

// IsOpen checks whether now falls inside the window. An unparseable
// schedule closes the window rather than silently running maintenance at
// arbitrary times; an unparseable timezone or duration falls back to its
// default.
func (w *MaintenanceWindow) IsOpen(now time.Time) bool {
	if w == nil {
		return true
	}

	schedule := w.Schedule
	if schedule == "" {
		schedule = DefaultMaintenanceSchedule
	}
	cronSchedule, err := cronParser.Parse(schedule)
	if err != nil {
		return false
	}

	now = now.In(w.location())

	windowStart := findMostRecentWindowStart(cronSchedule, now, 24*time.Hour)
	if windowStart.IsZero() {
		return false
	}

	windowEnd := windowStart.Add(w.duration())
	return now.After(windowStart) && now.Before(windowEnd)
}

// Next returns the next window start after now, or nil when the schedule
// cannot produce one.
func (w *MaintenanceWindow) Next(now time.Time) *time.Time {
	if w == nil {
		return nil
	}

	schedule := w.Schedule
	if schedule == "" {
		schedule = DefaultMaintenanceSchedule
	}
	cronSchedule, err := cronParser.Parse(schedule)
	if err != nil {
		return nil
	}

	next := cronSchedule.Next(now.In(w.location()))
	if next.IsZero() {
		return nil
	}
	return &next
}

func (w *MaintenanceWindow) location() *time.Location {
	if w.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (w *MaintenanceWindow) duration() time.Duration {
	if w.Duration == "" {
		return DefaultMaintenanceDuration
	}
	d, err := time.ParseDuration(w.Duration)
	if err != nil {
		return DefaultMaintenanceDuration
	}
	return d
}

// findMostRecentWindowStart finds the most recent window start within the
// lookback period.
func findMostRecentWindowStart(schedule cron.Schedule, now time.Time, lookback time.Duration) time.Time {
	checkTime := now.Add(-lookback)

	// Bounded iteration guards against schedules that never fire
	// (e.g. Feb 31st) or never advance.
	const maxIterations = 1000

	var lastStart time.Time
	for i := 0; i < maxIterations; i++ {
		nextStart := schedule.Next(checkTime)
		if nextStart.After(now) {
			break
		}
		if !nextStart.After(checkTime) {
			break
		}
		lastStart = nextStart
		checkTime = nextStart.Add(time.Minute)
	}

	return lastStart
}

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

// Package shrink provides the "run" command that drives the shrink
// pipeline over a folder of disk images or a single image.
package shrink

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vdiskops/diskshrink/internal/log"
	"github.com/vdiskops/diskshrink/pkg/compaction"
	"github.com/vdiskops/diskshrink/pkg/fleet"
	"github.com/vdiskops/diskshrink/pkg/report"
	"github.com/vdiskops/diskshrink/pkg/shrink"
	"github.com/vdiskops/diskshrink/pkg/vdisk"
)

// OutputFormat selects how the run summary is rendered.
type OutputFormat string

const (
	// OutputFormatText renders a colored table summary.
	OutputFormatText OutputFormat = "text"
	// OutputFormatJSON renders the full run report as JSON.
	OutputFormatJSON OutputFormat = "json"
)

// fileConfig is the YAML layout of --config files: the shrink options at
// the top level plus the optional run-level maintenance window.
type fileConfig struct {
	Shrink            shrink.Config            `yaml:",inline"`
	MaintenanceWindow *fleet.MaintenanceWindow `yaml:"maintenanceWindow"`
}

type options struct {
	diskPath   string
	folder     string
	recurse    bool
	configPath string

	deleteOlderThanDays int
	ignoreLessThanGB    int
	ratioFreeSpace      float64
	maxRetries          int
	backoffSeconds      int

	csvPath         string
	metricsPath     string
	passThru        bool
	parallelism     int
	maxPassesPerDay int
	mountTool       string
	compactTool     string
	output          string
	debug           bool
}

// NewCmd creates the "run" subcommand.
func NewCmd() *cobra.Command {
	var opts options

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Shrink virtual disk images to reclaim unused space",
		Long: `Processes one disk image or every image in a folder: classifies each
disk (skip, delete, ignore, shrink), shrinks the ones worth shrinking
via the external compaction tool, and appends one audit row per disk to
the CSV sink.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, &opts)
		},
	}

	runCmd.Flags().StringVar(&opts.diskPath, "path", "", "Process a single disk image file")
	runCmd.Flags().StringVar(&opts.folder, "folder", "", "Process every disk image in this folder")
	runCmd.Flags().BoolVar(&opts.recurse, "recurse", false, "Recurse into subfolders of --folder")
	runCmd.Flags().StringVar(&opts.configPath, "config", "", "YAML config file with shrink options")

	runCmd.Flags().IntVar(&opts.deleteOlderThanDays, "delete-older-than-days", 0,
		"Delete disks not used for this many days (0 disables)")
	runCmd.Flags().IntVar(&opts.ignoreLessThanGB, "ignore-less-than-gb", 0,
		"Skip disks smaller than this many GB (0 disables)")
	runCmd.Flags().Float64Var(&opts.ratioFreeSpace, "ratio-free-space", shrink.DefaultRatioFreeSpace,
		"Minimum reclaimable fraction required to shrink")
	runCmd.Flags().IntVar(&opts.maxRetries, "max-retries", shrink.DefaultMaxCompactionRetries,
		"Maximum compaction attempts per disk")
	runCmd.Flags().IntVar(&opts.backoffSeconds, "backoff-seconds", shrink.DefaultRetryBackoffSeconds,
		"Fixed delay between compaction attempts")

	runCmd.Flags().StringVar(&opts.csvPath, "csv",
		filepath.Join(os.TempDir(), "diskshrink-results.csv"),
		"CSV file receiving one audit row per disk")
	runCmd.Flags().StringVar(&opts.metricsPath, "metrics-file", "",
		"Write run metrics in Prometheus text format to this file")
	runCmd.Flags().BoolVar(&opts.passThru, "pass-thru", false,
		"Also print each outcome row to stdout")
	runCmd.Flags().IntVar(&opts.parallelism, "parallel", 1,
		"How many disks to process at once")
	runCmd.Flags().IntVar(&opts.maxPassesPerDay, "max-passes-per-day", 0,
		"Maximum shrink passes per disk per 24 hours (0 disables)")
	runCmd.Flags().StringVar(&opts.mountTool, "mount-tool", vdisk.DefaultMountTool,
		"External tool used to attach and inspect disk images")
	runCmd.Flags().StringVar(&opts.compactTool, "compact-tool", compaction.DefaultScriptTool,
		"External tool used to compact disk images")
	runCmd.Flags().StringVarP(&opts.output, "output", "o", string(OutputFormatText),
		"Output format. One of text|json")
	runCmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	runCmd.MarkFlagsOneRequired("path", "folder")
	runCmd.MarkFlagsMutuallyExclusive("path", "folder")

	return runCmd
}

func run(cmd *cobra.Command, opts *options) error {
	logger := log.New(opts.debug)
	defer logger.Sync()
	ctx := log.IntoContext(cmd.Context(), logger)

	cfg, window, err := resolveConfig(cmd, opts)
	if err != nil {
		return err
	}

	tasks, err := gatherTasks(ctx, opts)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		logger.Info("no candidate files found")
		return nil
	}

	registry := prometheus.NewRegistry()
	metrics := shrink.NewMetrics()
	if err := metrics.Register(registry); err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	mounter := vdisk.NewExecMounter(opts.mountTool)
	engine := compaction.NewEngine(
		compaction.NewScriptBackend(opts.compactTool, ""),
		compaction.WithMaxRetries(cfg.GetMaxCompactionRetries()),
		compaction.WithBackoff(cfg.GetRetryBackoff()),
	)
	reporter := report.NewCSVReporter(opts.csvPath)
	processor := shrink.NewProcessor(mounter, engine, reporter, cfg,
		shrink.WithMetrics(metrics))

	runnerOpts := []fleet.RunnerOption{
		fleet.WithParallelism(opts.parallelism),
		fleet.WithMaintenanceWindow(window),
	}
	if opts.maxPassesPerDay > 0 {
		runnerOpts = append(runnerOpts, fleet.WithBudget(fleet.NewBudgetTracker(), opts.maxPassesPerDay))
	}
	runner := fleet.NewRunner(processor, runnerOpts...)

	runReport, err := runner.Run(ctx, tasks)
	if err != nil {
		return err
	}

	if opts.metricsPath != "" {
		if err := writeMetricsFile(registry, opts.metricsPath); err != nil {
			logger.Warning("could not write metrics file", "path", opts.metricsPath, "error", err)
		}
	}

	switch OutputFormat(opts.output) {
	case OutputFormatJSON:
		return printJSON(runReport)
	case OutputFormatText:
		printText(runReport, opts.csvPath, opts.passThru)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", opts.output)
	}
}

// resolveConfig merges the config file (when given) with flag overrides.
// A flag the user set explicitly wins over the file.
func resolveConfig(cmd *cobra.Command, opts *options) (*shrink.Config, *fleet.MaintenanceWindow, error) {
	var cfg shrink.Config
	var window *fleet.MaintenanceWindow

	if opts.configPath != "" {
		raw, err := os.ReadFile(opts.configPath)
		if err != nil {
			return nil, nil, fmt.Errorf("reading config file %s: %w", opts.configPath, err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(raw, &fc); err != nil {
			return nil, nil, fmt.Errorf("parsing config file %s: %w", opts.configPath, err)
		}
		cfg = fc.Shrink
		window = fc.MaintenanceWindow
	}

	flags := cmd.Flags()
	if flags.Changed("delete-older-than-days") {
		cfg.DeleteOlderThanDays = opts.deleteOlderThanDays
	}
	if flags.Changed("ignore-less-than-gb") {
		cfg.IgnoreLessThanGB = opts.ignoreLessThanGB
	}
	if flags.Changed("ratio-free-space") {
		cfg.RatioFreeSpace = opts.ratioFreeSpace
	}
	if flags.Changed("max-retries") {
		cfg.MaxCompactionRetries = opts.maxRetries
	}
	if flags.Changed("backoff-seconds") {
		cfg.RetryBackoffSeconds = opts.backoffSeconds
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return &cfg, window, nil
}

// writeMetricsFile renders the registry in Prometheus text format, the
// layout the node_exporter textfile collector scrapes.
func writeMetricsFile(registry *prometheus.Registry, path string) error {
	families, err := registry.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}

	var buf bytes.Buffer
	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, family); err != nil {
			return fmt.Errorf("encoding metric family %s: %w", family.GetName(), err)
		}
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// gatherTasks builds the task list from --path or --folder.
func gatherTasks(ctx context.Context, opts *options) ([]vdisk.Task, error) {
	if opts.diskPath != "" {
		absPath, err := filepath.Abs(opts.diskPath)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", opts.diskPath, err)
		}
		info, err := os.Stat(absPath)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", absPath, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory, use --folder", absPath)
		}
		return []vdisk.Task{vdisk.NewTask(absPath, info)}, nil
	}

	return vdisk.Discover(ctx, opts.folder, opts.recurse)
}

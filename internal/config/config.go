// Package config loads and validates the monitoring/collection
// configuration file, grounded in
// original_source/src/config.c and the teacher's targets.yaml loader
// (internal/common/targets.go).
package config

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"log/slog"
	"os"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
	"hpcids/internal/features"
	"hpcids/internal/util"
)

// ErrConfigUnavailable indicates the configuration file could not be read
// or parsed; per spec §7 this is tolerated, not fatal: the caller falls
// back to defaults.
var ErrConfigUnavailable = errors.New("configuration unavailable")

// ErrInvalidThresholds indicates the severity thresholds did not satisfy
// medium < high < critical.
var ErrInvalidThresholds = errors.New("severity thresholds must satisfy medium < high < critical")

// DefaultPerfEvents is the default counter set, matching spec.md §3.
var DefaultPerfEvents = []string{
	"cycles", "instructions", "branches", "branch-misses",
	"cache-references", "cache-misses",
	"L1-dcache-load-misses", "iTLB-load-misses", "dTLB-load-misses",
}

// fileConfig mirrors the on-disk YAML shape. Optional numeric fields are
// pointers so that an explicit zero (e.g. core_affinity: 0) is
// distinguishable from an absent key (spec §9, Open Question (b)).
type fileConfig struct {
	AppDirectory        string   `yaml:"app_directory"`
	BaselineDirectory   string   `yaml:"baseline_directory"`
	AlertOutputFile     string   `yaml:"alert_output_file"`
	SamplingIntervalMS  *int     `yaml:"sampling_interval_ms"`
	RunsPerApp          *int     `yaml:"runs_per_app"`
	MinSamplesPerApp    *int     `yaml:"min_samples_per_app"`
	MaxRuntimeSeconds   *int     `yaml:"max_runtime_seconds"`
	CoreAffinity        *int     `yaml:"core_affinity"`
	ThresholdMedium     *float64 `yaml:"robust_z_threshold_medium"`
	ThresholdHigh       *float64 `yaml:"robust_z_threshold_high"`
	ThresholdCritical   *float64 `yaml:"robust_z_threshold_critical"`
	AlertCooldownSecs   *int     `yaml:"alert_cooldown_seconds"`
	UseRobustStatistics *bool    `yaml:"use_robust_statistics"`
	PerfEvents          []string `yaml:"perf_events"`
}

// Config is the fully resolved, defaulted configuration used by the rest
// of the system.
type Config struct {
	AppDirectory        string
	BaselineDirectory   string
	AlertOutputFile     string
	SamplingIntervalMS  int
	RunsPerApp          int
	MinSamplesPerApp    int
	MaxRuntimeSeconds   int
	CoreAffinity        int
	ThresholdMedium     float64
	ThresholdHigh       float64
	ThresholdCritical   float64
	AlertCooldownSecs   int
	UseRobustStatistics bool
	PerfEvents          []string
}

// Default returns the configuration used when no file is present or the
// file cannot be parsed.
func Default() Config {
	return Config{
		AppDirectory:        "./apps",
		BaselineDirectory:   "./baselines",
		AlertOutputFile:     "./alerts.jsonl",
		SamplingIntervalMS:  200,
		RunsPerApp:          10,
		MinSamplesPerApp:    50,
		MaxRuntimeSeconds:   60,
		CoreAffinity:        0,
		ThresholdMedium:     3.0,
		ThresholdHigh:       4.0,
		ThresholdCritical:   5.0,
		AlertCooldownSecs:   30,
		UseRobustStatistics: true,
		PerfEvents:          DefaultPerfEvents,
	}
}

// Load reads and validates the configuration at path. A missing or
// unparsable file is logged and yields defaults with
// ErrConfigUnavailable, per spec.md §6 "Missing or unparsable file: use
// defaults and continue". A file whose values fail Validate also yields
// defaults, together with Validate's error. Callers that only want
// defaults-on-failure behavior may ignore a non-nil error here and use the
// returned Config.
func Load(path string) (Config, error) {
	cfg := Default()

	exists, err := util.FileExists(path)
	if err != nil {
		slog.Warn("configuration path is not a regular file, using defaults", slog.String("path", path), slog.String("error", err.Error()))
		return cfg, errors.Wrap(ErrConfigUnavailable, err.Error())
	}
	if !exists {
		slog.Warn("configuration file unavailable, using defaults", slog.String("path", path))
		return cfg, errors.Wrap(ErrConfigUnavailable, "no such file: "+path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("configuration file unavailable, using defaults", slog.String("path", path), slog.String("error", err.Error()))
		return cfg, errors.Wrap(ErrConfigUnavailable, err.Error())
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		slog.Warn("configuration file unparsable, using defaults", slog.String("path", path), slog.String("error", err.Error()))
		return cfg, errors.Wrap(ErrConfigUnavailable, err.Error())
	}

	cfg.applyOverrides(fc)
	if err := cfg.Validate(); err != nil {
		return Default(), err
	}
	return cfg, nil
}

func (c *Config) applyOverrides(fc fileConfig) {
	if fc.AppDirectory != "" {
		c.AppDirectory = resolvePath(fc.AppDirectory)
	}
	if fc.BaselineDirectory != "" {
		c.BaselineDirectory = resolvePath(fc.BaselineDirectory)
	}
	if fc.AlertOutputFile != "" {
		c.AlertOutputFile = resolvePath(fc.AlertOutputFile)
	}
	if fc.SamplingIntervalMS != nil {
		c.SamplingIntervalMS = *fc.SamplingIntervalMS
	}
	if fc.RunsPerApp != nil {
		c.RunsPerApp = *fc.RunsPerApp
	}
	if fc.MinSamplesPerApp != nil {
		c.MinSamplesPerApp = *fc.MinSamplesPerApp
	}
	if fc.MaxRuntimeSeconds != nil {
		c.MaxRuntimeSeconds = *fc.MaxRuntimeSeconds
	}
	if fc.CoreAffinity != nil {
		c.CoreAffinity = *fc.CoreAffinity
	}
	if fc.ThresholdMedium != nil {
		c.ThresholdMedium = *fc.ThresholdMedium
	}
	if fc.ThresholdHigh != nil {
		c.ThresholdHigh = *fc.ThresholdHigh
	}
	if fc.ThresholdCritical != nil {
		c.ThresholdCritical = *fc.ThresholdCritical
	}
	if fc.AlertCooldownSecs != nil {
		c.AlertCooldownSecs = *fc.AlertCooldownSecs
	}
	if fc.UseRobustStatistics != nil {
		c.UseRobustStatistics = *fc.UseRobustStatistics
	}
	if len(fc.PerfEvents) > 0 {
		c.PerfEvents = dedupeEvents(fc.PerfEvents)
	}
}

// resolvePath expands a leading "~" and makes p absolute, so a
// configuration file can use paths relative to the operator's home
// directory the way an interactive shell would. p is returned unchanged
// if it cannot be resolved.
func resolvePath(p string) string {
	abs, err := util.AbsPath(p)
	if err != nil {
		return p
	}
	return abs
}

// dedupeEvents drops repeated counter names from a configured event list
// while preserving the order the operator listed them in, since perf's
// CSV output position is keyed to that order.
func dedupeEvents(events []string) []string {
	seen := mapset.NewThreadUnsafeSet[string]()
	deduped := make([]string, 0, len(events))
	for _, e := range events {
		if seen.Contains(e) {
			continue
		}
		seen.Add(e)
		deduped = append(deduped, e)
	}
	return deduped
}

// Validate enforces invariants that must hold before the configuration is
// used, per spec.md §9 "enforce at config-load time, not at scoring time".
func (c Config) Validate() error {
	if !(c.ThresholdMedium < c.ThresholdHigh && c.ThresholdHigh < c.ThresholdCritical) {
		return errors.Wrap(ErrInvalidThresholds, fmt.Sprintf(
			"medium=%g high=%g critical=%g", c.ThresholdMedium, c.ThresholdHigh, c.ThresholdCritical))
	}
	if c.SamplingIntervalMS <= 0 {
		return errors.Wrap(ErrConfigUnavailable, "sampling_interval_ms must be positive")
	}
	if c.RunsPerApp <= 0 {
		return errors.Wrap(ErrConfigUnavailable, "runs_per_app must be positive")
	}
	if c.MinSamplesPerApp <= 0 {
		return errors.Wrap(ErrConfigUnavailable, "min_samples_per_app must be positive")
	}
	if c.MaxRuntimeSeconds <= 0 {
		return errors.Wrap(ErrConfigUnavailable, "max_runtime_seconds must be positive")
	}
	if c.CoreAffinity < 0 {
		return errors.Wrap(ErrConfigUnavailable, "core_affinity must be non-negative")
	}
	if c.AlertCooldownSecs < 0 {
		return errors.Wrap(ErrConfigUnavailable, "alert_cooldown_seconds must be non-negative")
	}

	warnIfNotDirectory("app_directory", c.AppDirectory)
	warnIfNotDirectory("baseline_directory", c.BaselineDirectory)
	for _, event := range c.PerfEvents {
		if !util.StringInList(event, features.RecognizedCounters) {
			slog.Warn("configured perf_events entry is not a recognized counter; it will be passed to perf but contribute nothing to the feature vector",
				slog.String("event", event))
		}
	}
	return nil
}

// warnIfNotDirectory logs, but does not fail, when a configured directory
// is absent or not a directory: both app_directory and baseline_directory
// may legitimately not exist yet (an operator can create them before the
// first collect/monitor run).
func warnIfNotDirectory(field, path string) {
	exists, err := util.DirectoryExists(path)
	if err != nil {
		slog.Warn("configured path is not a directory", slog.String("field", field), slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	if !exists {
		slog.Warn("configured directory does not exist yet", slog.String("field", field), slog.String("path", path))
	}
}

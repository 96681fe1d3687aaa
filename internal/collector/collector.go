// Package collector drives repeated Sample Source runs against a target
// application to build and persist a statistical baseline.
package collector

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"hpcids/internal/baseline"
	"hpcids/internal/features"
	"hpcids/internal/perfsource"
	"hpcids/internal/progress"
	"hpcids/internal/sample"
	"hpcids/internal/stats"
	"hpcids/internal/util"
)

// ErrAppNotExecutable indicates the named application is absent from the
// configured application directory or lacks an executable bit.
var ErrAppNotExecutable = errors.New("application not executable")

// Collector runs the Sample Source repeatedly against configured
// applications and persists the resulting baselines, grounded in
// original_source/src/baseline_collector.c.
type Collector struct {
	AppDirectory       string
	RunsPerApp         int
	MaxRuntimeSeconds  int
	MinSamplesPerApp   int
	SamplingIntervalMS int
	PerfEvents         []string
	CoreAffinity       int

	Source *perfsource.PerfStatSource
	Store  *baseline.Store

	// runFunc performs one sampling run against appPath, returning the
	// feature vectors it produced. It defaults to runOnce (launching
	// perf stat); tests substitute a fake to avoid depending on perf.
	runFunc func(ctx context.Context, appPath string) ([]features.Vector, error)
}

// New returns a Collector wired from cfg-shaped fields, reusing store for
// persistence so freshly collected baselines become immediately visible
// to a running detector.
func New(appDirectory string, runsPerApp, maxRuntimeSeconds, minSamplesPerApp, samplingIntervalMS, coreAffinity int, perfEvents []string, store *baseline.Store) *Collector {
	c := &Collector{
		AppDirectory:       appDirectory,
		RunsPerApp:         runsPerApp,
		MaxRuntimeSeconds:  maxRuntimeSeconds,
		MinSamplesPerApp:   minSamplesPerApp,
		SamplingIntervalMS: samplingIntervalMS,
		PerfEvents:         perfEvents,
		CoreAffinity:       coreAffinity,
		Source:             perfsource.NewPerfStatSource(samplingIntervalMS, perfEvents),
		Store:              store,
	}
	c.runFunc = c.runOnce
	return c
}

// Collect runs the configured number of sampling passes against appName,
// engineers features from each, and persists the resulting baseline. It
// returns the number of feature vectors the baseline was built from.
func (c *Collector) Collect(ctx context.Context, appName string) (int, error) {
	appPath := filepath.Join(c.AppDirectory, appName)
	executable, err := util.IsExecutableFile(appPath)
	if err != nil {
		return 0, errors.Wrap(err, "checking executable bit for "+appPath)
	}
	if !executable {
		return 0, errors.Wrap(ErrAppNotExecutable, appPath)
	}

	var vectors []features.Vector
	runsCompleted := 0
	for run := 0; run < c.RunsPerApp; run++ {
		if len(vectors) >= stats.MaxReasonableSamples {
			slog.Warn("feature sample buffer reached its cap, stopping further collection runs",
				slog.String("app", appName), slog.Int("cap", stats.MaxReasonableSamples))
			break
		}
		runVectors, err := c.runFunc(ctx, appPath)
		if err != nil {
			slog.Warn("collection run failed, skipping", slog.String("app", appName), slog.Int("run", run), slog.String("error", err.Error()))
			continue
		}
		if room := stats.MaxReasonableSamples - len(vectors); len(runVectors) > room {
			runVectors = runVectors[:room]
		}
		vectors = append(vectors, runVectors...)
		runsCompleted++
	}

	if len(vectors) < c.MinSamplesPerApp {
		return len(vectors), errors.Wrap(stats.ErrInsufficientSamples, fmt.Sprintf(
			"collected %d feature samples for %s, need %d", len(vectors), appName, c.MinSamplesPerApp))
	}

	b, err := baseline.FromFeatures(vectors)
	if err != nil {
		return len(vectors), err
	}

	meta := baseline.Metadata{
		ApplicationName:    appName,
		RunsExecuted:       runsCompleted,
		SampleCount:        len(vectors),
		CounterEvents:      c.PerfEvents,
		SamplingIntervalMS: c.SamplingIntervalMS,
		CoreAffinity:       c.CoreAffinity,
	}
	dest := filepath.Join(c.Store.Dir(), "baseline_"+appName+".json")
	if err := baseline.SaveProfile(dest, meta, b); err != nil {
		return len(vectors), err
	}
	c.Store.Put(appName, b)

	return len(vectors), nil
}

// runOnce launches one bounded Sample Source session against appPath and
// returns every well-formed feature vector it produced.
func (c *Collector) runOnce(ctx context.Context, appPath string) ([]features.Vector, error) {
	runCtx, cancel := context.WithTimeout(ctx, time.Duration(c.MaxRuntimeSeconds)*time.Second)
	defer cancel()

	session, err := c.Source.Open(runCtx, perfsource.PathTarget(appPath))
	if err != nil {
		return nil, err
	}
	defer session.Close()

	grouper := sample.NewIntervalGrouper(len(c.PerfEvents))
	var vectors []features.Vector

	for {
		s, err := session.Next()
		if err != nil {
			break
		}
		if interval, closed := grouper.Add(s); closed && interval != nil {
			if v, err := features.Engineer(interval); err == nil {
				vectors = append(vectors, v)
			}
		}
	}
	for _, interval := range grouper.Flush() {
		if v, err := features.Engineer(interval); err == nil {
			vectors = append(vectors, v)
		}
	}
	return vectors, nil
}

// CollectAll enumerates regular, executable files in the application
// directory and collects a baseline for each, reporting per-app progress
// through a MultiSpinner in the teacher's style. Per-app failures are
// recorded but do not abort the batch.
func (c *Collector) CollectAll(ctx context.Context) (succeeded int, failures map[string]error) {
	failures = make(map[string]error)

	entries, err := os.ReadDir(c.AppDirectory)
	if err != nil {
		failures["*"] = errors.Wrap(err, "reading application directory")
		return 0, failures
	}

	spinner := progress.NewMultiSpinner()
	var apps []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		executable, err := util.IsExecutableFile(filepath.Join(c.AppDirectory, entry.Name()))
		if err != nil || !executable {
			continue
		}
		apps = append(apps, entry.Name())
		_ = spinner.AddSpinner(entry.Name())
	}

	spinner.Start()
	defer spinner.Finish()

	for _, app := range apps {
		_ = spinner.Status(app, "collecting")
		n, err := c.Collect(ctx, app)
		if err != nil {
			failures[app] = err
			_ = spinner.Status(app, "failed: "+err.Error())
			continue
		}
		succeeded++
		_ = spinner.Status(app, fmt.Sprintf("done (%d samples)", n))
	}

	return succeeded, failures
}

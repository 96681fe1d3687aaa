package collector

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hpcids/internal/baseline"
	"hpcids/internal/features"
)

func writeExecutable(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))
	return path
}

func scenarioVector() features.Vector {
	return features.Vector{IPC: 2.0, BranchMissRate: 0.01, CacheMissRate: 0.05, L1DMPKI: 2.0, ITLBMPKI: 0.01, DTLBMPKI: 0.02}
}

func newTestCollector(t *testing.T, appDir string, minSamples int) (*Collector, *baseline.Store) {
	t.Helper()
	baselineDir := t.TempDir()
	store, err := baseline.NewStore(baselineDir)
	require.NoError(t, err)

	c := New(appDir, 3, 5, minSamples, 200, 0, features.FeatureNames, store)
	return c, store
}

func TestCollectRejectsNonExecutableApp(t *testing.T) {
	appDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(appDir, "myapp"), []byte("data"), 0o644))

	c, _ := newTestCollector(t, appDir, 1)
	_, err := c.Collect(context.Background(), "myapp")
	assert.ErrorIs(t, err, ErrAppNotExecutable)
}

func TestCollectRejectsMissingApp(t *testing.T) {
	appDir := t.TempDir()
	c, _ := newTestCollector(t, appDir, 1)
	_, err := c.Collect(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, ErrAppNotExecutable)
}

func TestCollectFailsInsufficientSamples(t *testing.T) {
	appDir := t.TempDir()
	writeExecutable(t, appDir, "myapp")
	c, _ := newTestCollector(t, appDir, 100)

	c.runFunc = func(ctx context.Context, appPath string) ([]features.Vector, error) {
		return []features.Vector{scenarioVector()}, nil
	}

	n, err := c.Collect(context.Background(), "myapp")
	assert.Error(t, err)
	assert.Equal(t, 3, n) // 3 runs x 1 vector each
}

func TestCollectPersistsBaselineAndPopulatesStore(t *testing.T) {
	appDir := t.TempDir()
	writeExecutable(t, appDir, "myapp")
	c, store := newTestCollector(t, appDir, 2)

	c.runFunc = func(ctx context.Context, appPath string) ([]features.Vector, error) {
		return []features.Vector{scenarioVector(), scenarioVector()}, nil
	}

	n, err := c.Collect(context.Background(), "myapp")
	require.NoError(t, err)
	assert.Equal(t, 6, n) // 3 runs x 2 vectors each

	b, kind, ok := store.Resolve("myapp")
	require.True(t, ok)
	assert.Equal(t, "per_app", string(kind))
	assert.Equal(t, 2.0, b.IPC.Median)

	_, err = os.Stat(filepath.Join(store.Dir(), "baseline_myapp.json"))
	assert.NoError(t, err)
}

func TestCollectSkipsFailedRunsButContinues(t *testing.T) {
	appDir := t.TempDir()
	writeExecutable(t, appDir, "myapp")
	c, _ := newTestCollector(t, appDir, 2)

	calls := 0
	c.runFunc = func(ctx context.Context, appPath string) ([]features.Vector, error) {
		calls++
		if calls == 1 {
			return nil, assert.AnError
		}
		return []features.Vector{scenarioVector(), scenarioVector()}, nil
	}

	n, err := c.Collect(context.Background(), "myapp")
	require.NoError(t, err)
	assert.Equal(t, 4, n) // 2 successful runs out of 3
}

func TestCollectAllSkipsNonExecutableAndReportsFailures(t *testing.T) {
	appDir := t.TempDir()
	writeExecutable(t, appDir, "good")
	require.NoError(t, os.WriteFile(filepath.Join(appDir, "notexec"), []byte("x"), 0o644))

	c, _ := newTestCollector(t, appDir, 1)
	c.runFunc = func(ctx context.Context, appPath string) ([]features.Vector, error) {
		return []features.Vector{scenarioVector()}, nil
	}

	succeeded, failures := c.CollectAll(context.Background())
	assert.Equal(t, 1, succeeded)
	assert.Empty(t, failures)
}

func TestCollectAllContinuesPastPerAppFailure(t *testing.T) {
	appDir := t.TempDir()
	writeExecutable(t, appDir, "good")
	writeExecutable(t, appDir, "bad")

	c, _ := newTestCollector(t, appDir, 100)
	c.runFunc = func(ctx context.Context, appPath string) ([]features.Vector, error) {
		if filepath.Base(appPath) == "bad" {
			return nil, assert.AnError
		}
		vectors := make([]features.Vector, 100)
		for i := range vectors {
			vectors[i] = scenarioVector()
		}
		return vectors, nil
	}

	succeeded, failures := c.CollectAll(context.Background())
	assert.Equal(t, 1, succeeded)
	assert.Len(t, failures, 1)
	assert.Contains(t, failures, "bad")
}

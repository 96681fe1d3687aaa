package baseline

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hpcids/internal/alert"
	"hpcids/internal/features"
)

func sampleBaseline() Baseline {
	var b Baseline
	vectors := []features.Vector{
		{IPC: 1.9, BranchMissRate: 0.01, CacheMissRate: 0.05, L1DMPKI: 2.0, ITLBMPKI: 0.01, DTLBMPKI: 0.02},
		{IPC: 2.0, BranchMissRate: 0.011, CacheMissRate: 0.048, L1DMPKI: 2.1, ITLBMPKI: 0.011, DTLBMPKI: 0.019},
		{IPC: 2.1, BranchMissRate: 0.009, CacheMissRate: 0.052, L1DMPKI: 1.9, ITLBMPKI: 0.009, DTLBMPKI: 0.021},
	}
	b, err := FromFeatures(vectors)
	if err != nil {
		panic(err)
	}
	return b
}

func TestFromFeaturesPopulatesAllSixFeatures(t *testing.T) {
	b := sampleBaseline()
	for _, name := range features.FeatureNames {
		s := b.Get(name)
		assert.Equal(t, 3, s.Samples)
	}
}

func TestSaveAndLoadProfileRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "baseline_myapp.json")
	b := sampleBaseline()

	require.NoError(t, SaveProfile(path, Metadata{ApplicationName: "myapp"}, b))
	loaded, err := LoadProfile(path)
	require.NoError(t, err)

	for _, name := range features.FeatureNames {
		want, got := b.Get(name), loaded.Get(name)
		assert.InDelta(t, want.Median, got.Median, 1e-12)
		assert.InDelta(t, want.MAD, got.MAD, 1e-12)
		assert.InDelta(t, want.Min, got.Min, 1e-12)
		assert.InDelta(t, want.Max, got.Max, 1e-12)
		assert.Equal(t, want.Samples, got.Samples)
	}
}

func TestLoadProfileMissingFile(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "does_not_exist.json"))
	assert.ErrorIs(t, err, ErrBaselineMissing)
}

func TestLoadProfileCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := LoadProfile(path)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrBaselineMissing)
}

func TestStoreResolveFallsBackToGlobal(t *testing.T) {
	dir := t.TempDir()
	global := sampleBaseline()
	require.NoError(t, SaveProfile(filepath.Join(dir, GlobalFileName), Metadata{}, global))

	store, err := NewStore(dir)
	require.NoError(t, err)

	b, kind, ok := store.Resolve("unknown-app")
	require.True(t, ok)
	assert.Equal(t, alert.KindGlobal, kind)
	assert.Equal(t, global.IPC.Median, b.IPC.Median)
}

func TestStoreResolvePrefersPerApp(t *testing.T) {
	dir := t.TempDir()
	global := sampleBaseline()
	require.NoError(t, SaveProfile(filepath.Join(dir, GlobalFileName), Metadata{}, global))

	perApp := sampleBaseline()
	perApp.IPC.Median = 9.0
	require.NoError(t, SaveProfile(filepath.Join(dir, "baseline_myapp.json"), Metadata{ApplicationName: "myapp"}, perApp))

	store, err := NewStore(dir)
	require.NoError(t, err)

	b, kind, ok := store.Resolve("myapp")
	require.True(t, ok)
	assert.Equal(t, alert.KindPerApp, kind)
	assert.Equal(t, 9.0, b.IPC.Median)
}

func TestStoreResolveWithoutGlobalIsSafeNoOp(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, _, ok := store.Resolve("anything")
	assert.False(t, ok)
}

func TestStorePutMakesBaselineImmediatelyVisible(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	fresh := sampleBaseline()
	store.Put("newapp", fresh)

	b, kind, ok := store.Resolve("newapp")
	require.True(t, ok)
	assert.Equal(t, alert.KindPerApp, kind)
	assert.Equal(t, fresh.IPC.Median, b.IPC.Median)
}
